// Package providers implements the OpenAI-compatible wire format
package providers

import (
	"encoding/json"
	"fmt"

	"github.com/model-router/router/pkg/types"
)

// OpenAI-compatible API structures. This shape also covers hosted
// aggregators (OpenRouter and friends) that speak the same protocol.
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	TopP        float64         `json:"top_p,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
}

type openAIChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	FinishReason *string       `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func buildOpenAIRequest(a *httpAdapter, req *types.GenerationRequest) (interface{}, error) {
	model := a.model
	if model == "" {
		model = a.desc.Name
	}
	return &openAIRequest{
		Model: model,
		Messages: []openAIMessage{
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens:   a.effectiveMaxTokens(req),
		Temperature: a.effectiveTemperature(req),
		TopP:        a.effectiveTopP(req),
	}, nil
}

func parseOpenAIResponse(a *httpAdapter, body []byte) (*types.GenerationResult, error) {
	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("response contained no choices")
	}

	return &types.GenerationResult{
		Content: resp.Choices[0].Message.Content,
		Usage: map[string]interface{}{
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
			"total_tokens":      resp.Usage.TotalTokens,
		},
	}, nil
}
