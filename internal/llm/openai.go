package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/speaks999/memorytest/internal/httpkit"
)

// OpenAIClient talks to the OpenAI chat completions API, or any
// compatible server via a base URL override.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	client     *openai.Client
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIClient creates a client. An empty baseURL means the
// official endpoint. The timeout bounds each whole request; model
// calls can take a while, so pass something generous.
func NewOpenAIClient(apiKey, baseURL string, timeout time.Duration, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}

	// Completions can think for a long time before the first header
	// byte arrives.
	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 120 * time.Second

	httpClient := httpkit.NewClient(
		httpkit.WithTimeout(timeout),
		httpkit.WithTransport(t),
	)

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = httpClient

	return &OpenAIClient{
		apiKey:     apiKey,
		baseURL:    cfg.BaseURL,
		client:     openai.NewClientWithConfig(cfg),
		httpClient: httpClient,
		logger:     logger.With("provider", "openai"),
	}
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any, opts Options) (*ChatResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("no OpenAI API key configured")
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertToOpenAI(messages),
		Tools:    convertToolsToOpenAI(tools),
	}
	if opts.MaxOutputTokens > 0 {
		req.MaxTokens = opts.MaxOutputTokens
	}
	if opts.Temperature != nil {
		temp := *opts.Temperature
		if temp == 0 {
			// The SDK omits a zero Temperature from the wire request,
			// which would fall back to the provider default. The
			// smallest positive float32 survives omitempty and is
			// indistinguishable from zero in effect.
			temp = math.SmallestNonzeroFloat32
		}
		req.Temperature = temp
	}

	c.logger.Debug("preparing request",
		"model", model,
		"messages", len(req.Messages),
		"tools", len(req.Tools),
	)
	if payload, err := json.Marshal(req); err == nil {
		c.logger.Log(ctx, LevelTrace, "request payload", "json", string(payload))
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	result := convertFromOpenAI(&resp)

	c.logger.Debug("response received",
		"model", result.Model,
		"prompt_tokens", result.PromptTokens,
		"completion_tokens", result.CompletionTokens,
		"tool_calls", len(result.Message.ToolCalls),
	)
	c.logger.Log(ctx, LevelTrace, "response content", "content", result.Message.Content)

	return result, nil
}

// Ping checks that the API is reachable and the key is accepted. It
// hits the models listing endpoint directly; a chat call would cost
// tokens.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	if c.apiKey == "" {
		return fmt.Errorf("no OpenAI API key configured")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("invalid API key")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		return fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, c.baseURL, errBody)
	}
	httpkit.DrainAndClose(resp.Body, 4096)
	return nil
}

// convertToOpenAI converts internal messages to the SDK's wire shape.
func convertToOpenAI(messages []Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		out := openai.ChatCompletionMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		result = append(result, out)
	}
	return result
}

// convertToolsToOpenAI converts registry tool specs to SDK tool
// definitions. Specs use the function-calling shape already, so this
// is a re-typing, not a reshaping.
func convertToolsToOpenAI(tools []map[string]any) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}

	var result []openai.Tool
	for _, tool := range tools {
		fn, ok := tool["function"].(map[string]any)
		if !ok {
			continue
		}

		name, _ := fn["name"].(string)
		desc, _ := fn["description"].(string)
		params := fn["parameters"]
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}

		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        name,
				Description: desc,
				Parameters:  params,
			},
		})
	}
	return result
}

// convertFromOpenAI converts an SDK response to the internal shape.
func convertFromOpenAI(resp *openai.ChatCompletionResponse) *ChatResponse {
	choice := resp.Choices[0]

	msg := Message{
		Role:    openai.ChatMessageRoleAssistant,
		Content: choice.Message.Content,
	}
	for _, tc := range choice.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID: tc.ID,
			Function: FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}

	return &ChatResponse{
		Model:            resp.Model,
		Message:          msg,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
}
