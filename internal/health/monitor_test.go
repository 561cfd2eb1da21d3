package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/model-router/router/internal/providers"
	"github.com/model-router/router/pkg/types"
	"github.com/model-router/router/pkg/utils"
)

func mockAdapter(name string) *providers.MockAdapter {
	return providers.NewMock(&types.ProviderDescriptor{
		Name:     name,
		Kind:     "mock",
		Endpoint: "http://" + name + ".local",
	})
}

func TestProbeNow(t *testing.T) {
	t.Run("HealthyProbe", func(t *testing.T) {
		adapter := mockAdapter("up")
		monitor := NewMonitor([]providers.Adapter{adapter}, time.Second, utils.NewTestLogger())

		monitor.ProbeNow(context.Background())

		assert.True(t, adapter.Descriptor().Health.Healthy())
		assert.False(t, adapter.Descriptor().Health.LastCheck().IsZero())
	})

	t.Run("FailedProbeFlipsImmediately", func(t *testing.T) {
		adapter := mockAdapter("down")
		adapter.Descriptor().Health.MarkHealthy(time.Now())
		adapter.SetProbeFailing(true)

		monitor := NewMonitor([]providers.Adapter{adapter}, time.Second, utils.NewTestLogger())
		monitor.ProbeNow(context.Background())

		assert.False(t, adapter.Descriptor().Health.Healthy())
		assert.Equal(t, 1, adapter.Descriptor().Health.ConsecutiveFails())
	})

	t.Run("RecoveryResetsFailStreak", func(t *testing.T) {
		adapter := mockAdapter("flaky")
		adapter.SetProbeFailing(true)

		monitor := NewMonitor([]providers.Adapter{adapter}, time.Second, utils.NewTestLogger())
		monitor.ProbeNow(context.Background())
		monitor.ProbeNow(context.Background())
		require.Equal(t, 2, adapter.Descriptor().Health.ConsecutiveFails())

		adapter.SetProbeFailing(false)
		monitor.ProbeNow(context.Background())

		assert.True(t, adapter.Descriptor().Health.Healthy())
		assert.Equal(t, 0, adapter.Descriptor().Health.ConsecutiveFails())
	})
}

func TestHTTPProbes(t *testing.T) {
	newHTTPAdapter := func(t *testing.T, endpoint string) providers.Adapter {
		t.Helper()
		cfg := &types.ProviderConfig{Name: "upstream", Kind: "openai", Endpoint: endpoint}
		desc := &types.ProviderDescriptor{Name: "upstream", Kind: "openai", Endpoint: endpoint}
		adapter, err := providers.New(cfg, desc, &http.Client{}, utils.NewTestLogger())
		require.NoError(t, err)
		return adapter
	}

	t.Run("Status200IsHealthy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		adapter := newHTTPAdapter(t, server.URL)
		monitor := NewMonitor([]providers.Adapter{adapter}, time.Second, utils.NewTestLogger())
		monitor.ProbeNow(context.Background())

		assert.True(t, adapter.Descriptor().Health.Healthy())
	})

	t.Run("Status500IsUnhealthy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		adapter := newHTTPAdapter(t, server.URL)
		monitor := NewMonitor([]providers.Adapter{adapter}, time.Second, utils.NewTestLogger())
		monitor.ProbeNow(context.Background())

		assert.False(t, adapter.Descriptor().Health.Healthy())
	})

	t.Run("TimeoutIsUnhealthy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		adapter := newHTTPAdapter(t, server.URL)
		monitor := NewMonitor([]providers.Adapter{adapter}, 20*time.Millisecond, utils.NewTestLogger())
		monitor.ProbeNow(context.Background())

		assert.False(t, adapter.Descriptor().Health.Healthy())
	})
}

func TestStartStop(t *testing.T) {
	t.Run("PeriodicProbing", func(t *testing.T) {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		cfg := &types.ProviderConfig{Name: "upstream", Kind: "openai", Endpoint: server.URL}
		desc := &types.ProviderDescriptor{Name: "upstream", Kind: "openai", Endpoint: server.URL}
		adapter, err := providers.New(cfg, desc, &http.Client{}, utils.NewTestLogger())
		require.NoError(t, err)

		monitor := NewMonitor([]providers.Adapter{adapter}, time.Second, utils.NewTestLogger())
		monitor.Start(30 * time.Millisecond)

		assert.Eventually(t, func() bool { return hits.Load() >= 2 }, time.Second, 10*time.Millisecond)
		monitor.Stop()
	})

	t.Run("StopIsIdempotent", func(t *testing.T) {
		monitor := NewMonitor(nil, time.Second, utils.NewTestLogger())
		monitor.Start(time.Hour)
		monitor.Stop()
		monitor.Stop()
	})

	t.Run("StartTwiceIsNoOp", func(t *testing.T) {
		monitor := NewMonitor(nil, time.Second, utils.NewTestLogger())
		monitor.Start(time.Hour)
		monitor.Start(time.Hour)
		monitor.Stop()
	})
}

func TestProbeProvider(t *testing.T) {
	adapter := mockAdapter("solo")
	monitor := NewMonitor([]providers.Adapter{adapter}, time.Second, utils.NewTestLogger())

	assert.True(t, monitor.ProbeProvider(context.Background(), "solo"))
	assert.True(t, adapter.Descriptor().Health.Healthy())

	assert.False(t, monitor.ProbeProvider(context.Background(), "nonexistent"))
}

func TestMarkFailure(t *testing.T) {
	adapter := mockAdapter("degrading")
	adapter.Descriptor().Health.MarkHealthy(time.Now())

	monitor := NewMonitor([]providers.Adapter{adapter}, time.Second, utils.NewTestLogger())
	monitor.MarkFailure("degrading")

	assert.False(t, adapter.Descriptor().Health.Healthy())

	// Unknown names are ignored
	monitor.MarkFailure("nonexistent")
}
