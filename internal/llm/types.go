// Package llm provides the model provider client.
package llm

import "log/slog"

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Message represents a chat message for the model.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool responses
}

// ToolCall represents a tool call requested by the model.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the tool and carries its arguments exactly as the
// provider sent them. Argument parsing happens at the dispatch boundary.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Options tune a single chat call. A nil Temperature means provider
// default; zero MaxOutputTokens means no explicit cap.
type Options struct {
	Temperature     *float32
	MaxOutputTokens int
}

// Temp returns a pointer to t, for building Options literals.
func Temp(t float32) *float32 {
	return &t
}

// ChatResponse is the provider-neutral response shape. Wire format
// conversion happens at the provider boundary (openai.go).
type ChatResponse struct {
	Model   string
	Message Message

	// Token usage as billed by the provider.
	PromptTokens     int
	CompletionTokens int
}
