// Package selector implements score-based provider selection
package selector

import (
	"github.com/model-router/router/internal/registry"
	"github.com/model-router/router/pkg/errors"
	"github.com/model-router/router/pkg/types"
	"github.com/model-router/router/pkg/utils"
)

// Score weights. A capability match dominates, affinity tunes
// deployment-specific preferences, the capacity heuristic nudges long
// prompts toward high-capacity providers and short ones toward faster
// low-capacity providers, and every healthy candidate carries a flat
// base score.
const (
	scoreCapability = 20
	scoreAffinity   = 10
	scoreCapacity   = 5
	scoreHealthy    = 5

	longPromptChars  = 1000
	shortPromptChars = 500
	highCapacityMin  = 4096
	lowCapacityMax   = 2048
)

// Selector picks the best provider for a request from the registry's
// current health view. It holds no state of its own; scores are
// recomputed per call.
type Selector struct {
	registry *registry.Registry
	config   *types.SelectorConfig
	logger   *utils.Logger
}

// New creates a selector over the given registry.
func New(reg *registry.Registry, config *types.SelectorConfig, logger *utils.Logger) *Selector {
	if config == nil {
		config = &types.SelectorConfig{}
	}
	return &Selector{
		registry: reg,
		config:   config,
		logger:   logger,
	}
}

// Select returns the best provider for the request, skipping any
// provider named in exclude (the dispatcher passes its already-failed
// set here so a fallback loop never re-attempts a provider).
//
// A healthy pinned provider bypasses scoring entirely. A pinned but
// unhealthy provider either fails (strict_pin) or falls back to
// automatic selection.
func (s *Selector) Select(req *types.GenerationRequest, exclude map[string]bool) (*types.ProviderDescriptor, error) {
	if name, pinned := req.Selection.IsPinned(); pinned {
		if exclude[name] {
			if s.config.StrictPin {
				return nil, errors.NewWithDetails(errors.ErrNoHealthyProvider,
					"pinned provider failed", name)
			}
		} else {
			desc, err := s.registry.Get(name)
			if err != nil {
				return nil, err
			}
			if desc.Health.Healthy() {
				return desc, nil
			}
			if s.config.StrictPin {
				return nil, errors.NewWithDetails(errors.ErrNoHealthyProvider,
					"pinned provider is unhealthy", name)
			}
			// Documented fallback: treat the request as unpinned.
			s.logger.WithProvider(name).Debug("Pinned provider unhealthy, falling back to automatic selection")
		}
	}

	best := s.pickBest(req, exclude)
	if best != nil {
		return best, nil
	}

	// Last resort: fallback-eligible providers are consulted even when
	// unhealthy, but only once no healthy candidate exists at all.
	if last := s.pickFallback(exclude); last != nil {
		s.logger.WithProvider(last.Name).Warn("No healthy provider, using fallback-eligible provider")
		return last, nil
	}

	return nil, errors.ErrNoProviderAvailable
}

// pickBest scores healthy, non-excluded providers and returns the
// winner, or nil when none qualify. Ties break on lowest priority
// value, then registration order (the iteration order already is
// registration order, so strict inequality keeps the earlier winner).
func (s *Selector) pickBest(req *types.GenerationRequest, exclude map[string]bool) *types.ProviderDescriptor {
	var best *types.ProviderDescriptor
	bestScore := -1

	for _, desc := range s.registry.List() {
		if exclude[desc.Name] || !desc.Health.Healthy() {
			continue
		}

		score := s.score(req, desc)
		if score > bestScore || (score == bestScore && best != nil && desc.Priority < best.Priority) {
			best = desc
			bestScore = score
		}
	}

	return best
}

// pickFallback returns the preferred fallback-eligible provider
// regardless of health, or nil when none is configured.
func (s *Selector) pickFallback(exclude map[string]bool) *types.ProviderDescriptor {
	var best *types.ProviderDescriptor
	for _, desc := range s.registry.List() {
		if exclude[desc.Name] || !desc.Fallback {
			continue
		}
		if best == nil || desc.Priority < best.Priority {
			best = desc
		}
	}
	return best
}

// score computes the request/provider match score.
func (s *Selector) score(req *types.GenerationRequest, desc *types.ProviderDescriptor) int {
	score := scoreHealthy
	taskType := req.EffectiveTaskType()

	if desc.HasCapability(taskType) {
		score += scoreCapability
	}

	if bonuses, ok := s.config.Affinity[desc.Name]; ok {
		if bonus, ok := bonuses[taskType]; ok {
			if bonus == 0 {
				bonus = scoreAffinity
			}
			score += bonus
		}
	}

	promptLen := len(req.Prompt)
	switch {
	case promptLen > longPromptChars && desc.MaxTokens >= highCapacityMin:
		score += scoreCapacity
	case promptLen < shortPromptChars && promptLen > 0 && desc.MaxTokens > 0 && desc.MaxTokens <= lowCapacityMax:
		score += scoreCapacity
	}

	return score
}
