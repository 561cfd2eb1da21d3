// Package registry implements the provider registry
package registry

import (
	"sync"

	"github.com/model-router/router/pkg/errors"
	"github.com/model-router/router/pkg/types"
	"github.com/model-router/router/pkg/utils"
)

// Registry holds the registered provider descriptors. Registration
// order is preserved because the selector uses it for deterministic
// tie-breaking.
type Registry struct {
	byName map[string]*types.ProviderDescriptor
	order  []*types.ProviderDescriptor
	mu     sync.RWMutex
	logger *utils.Logger
}

// New creates an empty registry
func New(logger *utils.Logger) *Registry {
	return &Registry{
		byName: make(map[string]*types.ProviderDescriptor),
		logger: logger,
	}
}

// Register adds a provider descriptor. Registering a duplicate name or
// a descriptor without name/endpoint fails; the composition root treats
// these as fatal configuration errors.
func (r *Registry) Register(desc *types.ProviderDescriptor) error {
	if desc == nil || desc.Name == "" {
		return errors.New(errors.ErrInvalidRequest, "provider descriptor requires a name")
	}
	if desc.Endpoint == "" {
		return errors.NewWithDetails(errors.ErrInvalidRequest, "provider descriptor requires an endpoint", desc.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[desc.Name]; exists {
		return errors.NewWithDetails(errors.ErrDuplicateProvider, "provider already registered", desc.Name)
	}

	r.byName[desc.Name] = desc
	r.order = append(r.order, desc)
	r.logger.WithProvider(desc.Name).Info("Provider registered")

	return nil
}

// Get returns a provider descriptor by name
func (r *Registry) Get(name string) (*types.ProviderDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, exists := r.byName[name]
	if !exists {
		return nil, errors.NewWithDetails(errors.ErrProviderNotFound, "provider not found", name)
	}
	return desc, nil
}

// List returns all descriptors in registration order
func (r *Registry) List() []*types.ProviderDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*types.ProviderDescriptor, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered providers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
