// Package providers implements the RunPod-style job wire format
package providers

import (
	"encoding/json"
	"fmt"

	"github.com/model-router/router/pkg/types"
)

// RunPod-style serverless endpoints wrap everything in an "input"
// envelope and answer with a job status plus an "output" payload. The
// same shape is common for self-hosted inference servers.
type runpodRequest struct {
	Input runpodInput `json:"input"`
}

type runpodInput struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}

type runpodResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Output runpodOutput `json:"output"`
	Error  string       `json:"error,omitempty"`
}

type runpodOutput struct {
	Text   string                 `json:"text"`
	Tokens int                    `json:"tokens,omitempty"`
	Extra  map[string]interface{} `json:"extra,omitempty"`
}

func buildRunPodRequest(a *httpAdapter, req *types.GenerationRequest) (interface{}, error) {
	return &runpodRequest{
		Input: runpodInput{
			Prompt:      req.Prompt,
			MaxTokens:   a.effectiveMaxTokens(req),
			Temperature: a.effectiveTemperature(req),
			TopP:        a.effectiveTopP(req),
		},
	}, nil
}

func parseRunPodResponse(a *httpAdapter, body []byte) (*types.GenerationResult, error) {
	var resp runpodResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("job failed: %s", resp.Error)
	}
	if resp.Status != "" && resp.Status != "COMPLETED" {
		return nil, fmt.Errorf("job ended in status %s", resp.Status)
	}

	usage := map[string]interface{}{}
	if resp.Output.Tokens > 0 {
		usage["total_tokens"] = resp.Output.Tokens
	}
	for k, v := range resp.Output.Extra {
		usage[k] = v
	}

	return &types.GenerationResult{
		Content: resp.Output.Text,
		Usage:   usage,
	}, nil
}
