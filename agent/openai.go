package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI-compatible completion endpoint
// (OpenAI, LM Studio, vLLM, DashScope compatible mode, ...).
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OpenAIClient implements Completer with go-openai.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient returns a client for any OpenAI-compatible endpoint.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	switch {
	case cfg.HTTPClient != nil:
		c.HTTPClient = cfg.HTTPClient
	case cfg.Timeout > 0:
		c.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(c)}
}

func (c *OpenAIClient) Complete(ctx context.Context, r CompletionRequest) (*CompletionResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:       r.Model,
		Messages:    toOpenAIMessages(r.Messages),
		Temperature: float32(r.Temperature),
	}
	// go-openai drops a zero temperature from the payload
	if req.Temperature == 0 {
		req.Temperature = math.SmallestNonzeroFloat32
	}
	for _, d := range r.Tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	if len(req.Tools) > 0 && r.ToolChoice != "" {
		req.ToolChoice = r.ToolChoice
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("openai api error (%d): %s: %w", apiErr.HTTPStatusCode, apiErr.Message, err)
		}
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: response has no choices")
	}

	choice := resp.Choices[0]
	out := &CompletionResponse{
		FinishReason: string(choice.FinishReason),
		Content:      choice.Message.Content,
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:   tc.ID,
			Type: string(tc.Type),
			Function: FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			typ := openai.ToolType(tc.Type)
			if typ == "" {
				typ = openai.ToolTypeFunction
			}
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: typ,
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}
