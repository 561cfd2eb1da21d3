// Package providers implements the mock adapter used in tests and dev
package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/model-router/router/pkg/errors"
	"github.com/model-router/router/pkg/types"
)

// MockAdapter implements the Adapter contract with canned behavior.
// Production adapters speak a real wire protocol; this one stands in
// for them in tests and development deployments.
type MockAdapter struct {
	desc *types.ProviderDescriptor

	mu         sync.Mutex
	failing    bool
	probeFail  bool
	calls      int
	content    string
	lastPrompt string
}

func newMockAdapter(desc *types.ProviderDescriptor) *MockAdapter {
	return &MockAdapter{
		desc:    desc,
		content: fmt.Sprintf("mock response from %s", desc.Name),
	}
}

// NewMock builds a mock adapter directly from a descriptor.
func NewMock(desc *types.ProviderDescriptor) *MockAdapter {
	return newMockAdapter(desc)
}

func (m *MockAdapter) Name() string {
	return m.desc.Name
}

func (m *MockAdapter) Descriptor() *types.ProviderDescriptor {
	return m.desc
}

// SetFailing makes subsequent Generate calls fail.
func (m *MockAdapter) SetFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = failing
}

// SetProbeFailing makes subsequent Probe calls fail.
func (m *MockAdapter) SetProbeFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probeFail = failing
}

// SetContent overrides the canned response content.
func (m *MockAdapter) SetContent(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content = content
}

// Calls returns the number of Generate calls observed.
func (m *MockAdapter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastPrompt returns the prompt of the most recent Generate call.
func (m *MockAdapter) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrompt
}

func (m *MockAdapter) Generate(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	m.mu.Lock()
	m.calls++
	m.lastPrompt = req.Prompt
	failing := m.failing
	content := m.content
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrUpstreamTimeout, "mock call cancelled", err)
	}
	if failing {
		return nil, errors.NewWithDetails(errors.ErrUpstreamProtocol, "mock provider failure", m.desc.Name)
	}

	return &types.GenerationResult{
		Content:  content,
		Provider: m.desc.Name,
		Usage: map[string]interface{}{
			"prompt_tokens":     len(req.Prompt) / 4,
			"completion_tokens": len(content) / 4,
		},
		Created: time.Now().UTC(),
	}, nil
}

func (m *MockAdapter) Probe(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.probeFail {
		return fmt.Errorf("mock probe failure for %s", m.desc.Name)
	}
	return nil
}
