// Package providers implements the per-provider wire adapters
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/model-router/router/pkg/errors"
	"github.com/model-router/router/pkg/types"
	"github.com/model-router/router/pkg/utils"
)

// Adapter translates canonical generation requests into one provider's
// wire format and normalizes the response back. All adapters share the
// same dispatch path; only the request builder and response parser
// differ per kind.
type Adapter interface {
	Name() string
	Descriptor() *types.ProviderDescriptor
	Generate(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error)
	Probe(ctx context.Context) error
}

// wireFormat is the table-driven translation for one provider kind.
type wireFormat struct {
	path  string
	build func(a *httpAdapter, req *types.GenerationRequest) (interface{}, error)
	parse func(a *httpAdapter, body []byte) (*types.GenerationResult, error)
}

// httpAdapter is the shared HTTP implementation behind every non-mock
// provider kind.
type httpAdapter struct {
	desc   *types.ProviderDescriptor
	wire   wireFormat
	model  string
	apiKey string
	client *http.Client
	logger *utils.Logger
}

// New builds an adapter for a configured provider. Unknown kinds and
// missing credentials are configuration errors, fatal at registration
// time rather than request time.
func New(cfg *types.ProviderConfig, desc *types.ProviderDescriptor, client *http.Client, logger *utils.Logger) (Adapter, error) {
	if cfg.Kind == "mock" {
		return newMockAdapter(desc), nil
	}

	wire, ok := wireFormats[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown provider kind %q for provider %s", cfg.Kind, cfg.Name)
	}

	apiKey := ""
	if cfg.APIKeyEnvVar != "" {
		apiKey = os.Getenv(cfg.APIKeyEnvVar)
		if apiKey == "" {
			return nil, fmt.Errorf("provider %s: credential env var %s is not set", cfg.Name, cfg.APIKeyEnvVar)
		}
	}

	return &httpAdapter{
		desc:   desc,
		wire:   wire,
		model:  cfg.Model,
		apiKey: apiKey,
		client: client,
		logger: logger,
	}, nil
}

// wireFormats maps provider kind to its translation table entry.
var wireFormats = map[string]wireFormat{
	"openai": {path: "/chat/completions", build: buildOpenAIRequest, parse: parseOpenAIResponse},
	"runpod": {path: "/runsync", build: buildRunPodRequest, parse: parseRunPodResponse},
}

func (a *httpAdapter) Name() string {
	return a.desc.Name
}

func (a *httpAdapter) Descriptor() *types.ProviderDescriptor {
	return a.desc
}

// Generate performs one bounded call against the provider. Transport
// failures come back as RouterErrors with upstream codes so the
// dispatcher can convert them into a fallback trigger.
func (a *httpAdapter) Generate(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, error) {
	payload, err := a.wire.build(a, req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrUpstreamProtocol, "failed to build provider request", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(errors.ErrUpstreamProtocol, "failed to marshal provider request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.desc.Endpoint+a.wire.path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(errors.ErrUpstreamProtocol, "failed to create provider request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	start := time.Now()
	resp, err := a.client.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.Wrap(errors.ErrUpstreamTimeout, "provider call timed out", err)
		}
		return nil, errors.Wrap(errors.ErrUpstreamProtocol, "provider call failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrUpstreamProtocol, "failed to read provider response", err)
	}

	a.logger.WithProvider(a.desc.Name).
		WithField("status_code", resp.StatusCode).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Debug("Provider call completed")

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewWithDetails(errors.ErrUpstreamProtocol,
			fmt.Sprintf("provider returned HTTP %d", resp.StatusCode), truncate(respBody, 512))
	}

	result, err := a.wire.parse(a, respBody)
	if err != nil {
		return nil, errors.Wrap(errors.ErrUpstreamProtocol, "failed to parse provider response", err)
	}
	result.Provider = a.desc.Name
	result.Created = time.Now().UTC()
	return result, nil
}

// Probe issues a lightweight health request against the provider's
// health endpoint. Any non-2xx status counts as a failure.
func (a *httpAdapter) Probe(ctx context.Context) error {
	endpoint := a.desc.HealthEndpoint
	if endpoint == "" {
		endpoint = a.desc.Endpoint + "/health"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health endpoint returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// effectiveMaxTokens applies request overrides on top of the descriptor
// default.
func (a *httpAdapter) effectiveMaxTokens(req *types.GenerationRequest) int {
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		return *req.MaxTokens
	}
	return a.desc.MaxTokens
}

func (a *httpAdapter) effectiveTemperature(req *types.GenerationRequest) float64 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	return a.desc.Temperature
}

func (a *httpAdapter) effectiveTopP(req *types.GenerationRequest) float64 {
	if req.TopP != nil {
		return *req.TopP
	}
	return a.desc.TopP
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
