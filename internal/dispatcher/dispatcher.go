// Package dispatcher implements provider calls with fallback
package dispatcher

import (
	"context"
	"time"

	"github.com/model-router/router/internal/providers"
	"github.com/model-router/router/internal/selector"
	"github.com/model-router/router/pkg/errors"
	"github.com/model-router/router/pkg/types"
	"github.com/model-router/router/pkg/utils"
)

// HealthMarker degrades a provider's health view after a failed
// dispatch attempt. Implemented by the health monitor.
type HealthMarker interface {
	MarkFailure(name string)
}

// Recorder persists a dispatch outcome. Implemented by the request
// log repository; recording is best effort and never blocks or fails
// the response.
type Recorder interface {
	Record(ctx context.Context, entry *DispatchRecord)
}

// DispatchRecord captures one completed dispatch for the request log.
type DispatchRecord struct {
	RequestID string
	CallerID  string
	TaskType  string
	Provider  string
	Attempts  int
	Success   bool
	Error     string
	LatencyMs int64
}

// Dispatcher walks the fallback chain for one request: select, adapt,
// call with a bounded timeout, normalize; on failure degrade the
// failed provider's health, exclude it, and re-select.
type Dispatcher struct {
	selector *selector.Selector
	adapters map[string]providers.Adapter
	health   HealthMarker
	recorder Recorder
	config   *types.DispatchConfig
	logger   *utils.Logger
}

// New creates a dispatcher. recorder may be nil.
func New(sel *selector.Selector, adapters []providers.Adapter, health HealthMarker, recorder Recorder, config *types.DispatchConfig, logger *utils.Logger) *Dispatcher {
	byName := make(map[string]providers.Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name()] = a
	}
	if config == nil {
		config = &types.DispatchConfig{DefaultTimeout: 60 * time.Second}
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = 60 * time.Second
	}
	return &Dispatcher{
		selector: sel,
		adapters: byName,
		health:   health,
		recorder: recorder,
		config:   config,
		logger:   logger,
	}
}

// Dispatch routes the request through the fallback chain until one
// provider succeeds or every eligible provider has failed. Transport
// failures from individual providers are never surfaced to the caller;
// only exhaustion is.
func (d *Dispatcher) Dispatch(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	start := time.Now()
	exclude := make(map[string]bool)
	var attempts []errors.Attempt

	for {
		desc, err := d.selector.Select(req, exclude)
		if err != nil {
			// An empty eligible set becomes exhaustion (with whatever
			// attempts were made, possibly none). Pin lookups that fail
			// outright (unknown name, strict-pin refusal) surface as-is.
			if err == errors.ErrNoProviderAvailable {
				exhausted := &errors.ExhaustionError{Attempts: attempts}
				d.record(ctx, req, "", len(attempts), false, exhausted.Error(), start)
				return nil, exhausted
			}
			d.record(ctx, req, "", len(attempts), false, err.Error(), start)
			return nil, err
		}

		adapter, ok := d.adapters[desc.Name]
		if !ok {
			// Registered descriptor without an adapter is a wiring bug;
			// treat it like a failed attempt so the chain continues.
			attempts = append(attempts, errors.Attempt{Provider: desc.Name, Reason: "no adapter registered"})
			exclude[desc.Name] = true
			continue
		}

		attempt := len(attempts) + 1
		d.logger.LogDispatchAttempt(req.ID, desc.Name, attempt)

		callCtx, cancel := context.WithTimeout(ctx, d.config.TimeoutFor(req.EffectiveTaskType()))
		result, err := adapter.Generate(callCtx, req)
		cancel()

		if err == nil {
			d.record(ctx, req, desc.Name, attempt, true, "", start)
			return result, nil
		}

		// Fail-fast degradation: the failed provider drops out of the
		// health view immediately, same policy as a failed probe.
		d.logger.LogDispatchFailure(req.ID, desc.Name, attempt, err)
		d.health.MarkFailure(desc.Name)
		attempts = append(attempts, errors.Attempt{Provider: desc.Name, Reason: err.Error()})
		exclude[desc.Name] = true

		if ctx.Err() != nil {
			exhausted := &errors.ExhaustionError{Attempts: attempts}
			d.record(ctx, req, "", len(attempts), false, exhausted.Error(), start)
			return nil, exhausted
		}
	}
}

func (d *Dispatcher) record(ctx context.Context, req *types.GenerationRequest, provider string, attempts int, success bool, errMsg string, start time.Time) {
	if d.recorder == nil {
		return
	}
	d.recorder.Record(ctx, &DispatchRecord{
		RequestID: req.ID,
		CallerID:  req.CallerID,
		TaskType:  req.EffectiveTaskType(),
		Provider:  provider,
		Attempts:  attempts,
		Success:   success,
		Error:     errMsg,
		LatencyMs: time.Since(start).Milliseconds(),
	})
}
