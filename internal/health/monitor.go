// Package health implements periodic provider health probing
package health

import (
	"context"
	"sync"
	"time"

	"github.com/model-router/router/internal/providers"
	"github.com/model-router/router/pkg/utils"
)

// Monitor probes every registered provider's health endpoint on a
// fixed interval and flips the descriptor's health state. Probing runs
// in the background and never blocks request handling; the selector
// always reads the latest known state.
type Monitor struct {
	adapters []providers.Adapter
	timeout  time.Duration
	logger   *utils.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewMonitor creates a monitor over the given adapters. The probe
// timeout bounds each individual health call so one slow provider
// cannot stall the tick for the others.
func NewMonitor(adapters []providers.Adapter, probeTimeout time.Duration, logger *utils.Logger) *Monitor {
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	return &Monitor{
		adapters: adapters,
		timeout:  probeTimeout,
		logger:   logger,
	}
}

// Start begins the probing cycle. An initial round runs immediately so
// the router does not start with an all-unknown health view. Calling
// Start on a running monitor is a no-op.
func (m *Monitor) Start(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	go func() {
		defer close(m.done)

		m.probeAll(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.probeAll(ctx)
			}
		}
	}()

	m.logger.WithField("interval", interval.String()).Info("Health monitor started")
}

// Stop cancels the probing cycle and waits for the current tick to
// finish. Safe to call multiple times.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.cancel()
	done := m.done
	m.mu.Unlock()

	<-done
	m.logger.Info("Health monitor stopped")
}

// ProbeNow runs one probe round synchronously, outside the ticker.
// Used by the admin surface for immediate checks.
func (m *Monitor) ProbeNow(ctx context.Context) {
	m.probeAll(ctx)
}

// ProbeProvider probes a single provider by name, returning false when
// no such provider is monitored.
func (m *Monitor) ProbeProvider(ctx context.Context, name string) bool {
	for _, a := range m.adapters {
		if a.Name() == name {
			m.probeOne(ctx, a)
			return true
		}
	}
	return false
}

// MarkFailure degrades a provider's health out of cycle. The
// dispatcher calls this on every failed attempt so the health view
// self-heals faster than the polling interval in the failure
// direction; recovery still requires a successful probe tick.
func (m *Monitor) MarkFailure(name string) {
	for _, a := range m.adapters {
		if a.Name() != name {
			continue
		}
		desc := a.Descriptor()
		wasHealthy := desc.Health.Healthy()
		desc.Health.MarkUnhealthy(time.Now().UTC())
		if wasHealthy {
			m.logger.LogHealthTransition(name, false, desc.Health.ConsecutiveFails())
		}
		return
	}
}

// probeAll probes every provider concurrently with a per-call timeout.
// Probes are read-only, so concurrent rounds are safe.
func (m *Monitor) probeAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, a := range m.adapters {
		wg.Add(1)
		go func(a providers.Adapter) {
			defer wg.Done()
			m.probeOne(ctx, a)
		}(a)
	}
	wg.Wait()
}

func (m *Monitor) probeOne(ctx context.Context, a providers.Adapter) {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	desc := a.Descriptor()
	wasHealthy := desc.Health.Healthy()

	if err := a.Probe(probeCtx); err != nil {
		desc.Health.MarkUnhealthy(time.Now().UTC())
		if wasHealthy || desc.Health.ConsecutiveFails() == 1 {
			m.logger.WithProvider(a.Name()).WithError(err).Warn("Health probe failed")
			m.logger.LogHealthTransition(a.Name(), false, desc.Health.ConsecutiveFails())
		}
		return
	}

	desc.Health.MarkHealthy(time.Now().UTC())
	if !wasHealthy {
		m.logger.LogHealthTransition(a.Name(), true, 0)
	}
}
