// Package types defines core types and interfaces for the model router
package types

import (
	"sync"
	"time"
)

// TaskTypeGeneral is the task type assumed when a request declares none.
const TaskTypeGeneral = "general"

// ModelSelection expresses how a request wants its provider chosen:
// either pinned to a named provider or left to the selector.
type ModelSelection struct {
	pinned string
}

// Automatic returns a selection that lets the selector choose.
func Automatic() ModelSelection {
	return ModelSelection{}
}

// Pinned returns a selection pinned to the named provider.
func Pinned(name string) ModelSelection {
	return ModelSelection{pinned: name}
}

// SelectionFromModel maps the wire-level "model" field to a selection.
// An empty string or the literal "auto" means automatic selection.
func SelectionFromModel(model string) ModelSelection {
	if model == "" || model == "auto" {
		return Automatic()
	}
	return Pinned(model)
}

// IsPinned reports whether the selection names a specific provider.
func (s ModelSelection) IsPinned() (string, bool) {
	return s.pinned, s.pinned != ""
}

// GenerationRequest is the canonical request shape routed to providers.
type GenerationRequest struct {
	ID          string
	Prompt      string
	TaskType    string
	Selection   ModelSelection
	MaxTokens   *int
	Temperature *float64
	TopP        *float64
	CallerID    string
	Timestamp   time.Time
}

// EffectiveTaskType returns the declared task type or the default.
func (r *GenerationRequest) EffectiveTaskType() string {
	if r.TaskType == "" {
		return TaskTypeGeneral
	}
	return r.TaskType
}

// GenerationResult is the normalized response from any provider.
type GenerationResult struct {
	Content  string                 `json:"content"`
	Provider string                 `json:"provider"`
	Usage    map[string]interface{} `json:"usage,omitempty"`
	Created  time.Time              `json:"created"`
}

// HealthState tracks a provider's liveness. It is the only mutable part
// of a ProviderDescriptor; the health monitor and the dispatcher write
// it, the selector reads it.
type HealthState struct {
	mu               sync.RWMutex
	healthy          bool
	lastCheck        time.Time
	consecutiveFails int
}

// Healthy reports the last known liveness.
func (h *HealthState) Healthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.healthy
}

// LastCheck returns the time of the last state change.
func (h *HealthState) LastCheck() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastCheck
}

// ConsecutiveFails returns the current failure streak.
func (h *HealthState) ConsecutiveFails() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.consecutiveFails
}

// MarkHealthy records a successful probe and resets the failure streak.
func (h *HealthState) MarkHealthy(at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.healthy = true
	h.lastCheck = at
	h.consecutiveFails = 0
}

// MarkUnhealthy records a failure. The provider is excluded from
// primary selection immediately; there is no failure threshold.
func (h *HealthState) MarkUnhealthy(at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.healthy = false
	h.lastCheck = at
	h.consecutiveFails++
}

// HealthSnapshot is an immutable copy of a provider's health state.
type HealthSnapshot struct {
	Healthy          bool      `json:"healthy"`
	LastCheck        time.Time `json:"last_check"`
	ConsecutiveFails int       `json:"consecutive_fails"`
}

// Snapshot returns a race-free copy of the state.
func (h *HealthState) Snapshot() HealthSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HealthSnapshot{
		Healthy:          h.healthy,
		LastCheck:        h.lastCheck,
		ConsecutiveFails: h.consecutiveFails,
	}
}

// ProviderDescriptor describes one registered backend. Everything but
// Health is immutable after registration.
type ProviderDescriptor struct {
	Name           string
	Kind           string
	Endpoint       string
	HealthEndpoint string
	Capabilities   []string
	MaxTokens      int
	Temperature    float64
	TopP           float64
	Priority       int
	Fallback       bool

	Health HealthState
}

// HasCapability reports whether the descriptor declares the task type.
func (d *ProviderDescriptor) HasCapability(taskType string) bool {
	for _, c := range d.Capabilities {
		if c == taskType {
			return true
		}
	}
	return false
}
