package llm

import "context"

// Client is the interface the agent loop and editor call models through.
type Client interface {
	// Chat sends a chat completion request and returns the response.
	// Tool specs use the standard function-calling JSON shape.
	Chat(ctx context.Context, model string, messages []Message, tools []map[string]any, opts Options) (*ChatResponse, error)

	// Ping checks if the provider is reachable with the configured key.
	Ping(ctx context.Context) error
}
