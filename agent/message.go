package agent

import (
	"context"

	"github.com/gliderlab/scholarscout/tools"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// FinishReasonToolCalls is the stop reason signalling tool-call intent.
const FinishReasonToolCalls = "tool_calls"

// Message is one entry of a transcript. Tool messages carry the id of the
// assistant tool call they answer.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a model request to run a tool; Arguments is raw JSON text.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// Signature identifies identical calls for repeat detection.
func (c ToolCall) Signature() string {
	return c.Function.Name + ":" + c.Function.Arguments
}

// CompletionRequest is what the agent sends to the completion endpoint.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Tools       []tools.Descriptor
	ToolChoice  string
	Temperature float64
}

// CompletionResponse is the first choice of a completion.
type CompletionResponse struct {
	FinishReason string
	Content      string
	ToolCalls    []ToolCall
}

// Completer is the chat completion endpoint contract.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return f(ctx, req)
}

func cloneMessages(in []Message, extra int) []Message {
	out := make([]Message, len(in), len(in)+extra)
	copy(out, in)
	return out
}
