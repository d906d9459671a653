// Package agent implements the core agent loop.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/speaks999/memorytest/internal/config"
	"github.com/speaks999/memorytest/internal/llm"
	"github.com/speaks999/memorytest/internal/prompts"
	"github.com/speaks999/memorytest/internal/tools"
	"github.com/speaks999/memorytest/internal/usage"
)

// ErrLoopExceeded reports that the model kept requesting tools past the
// round limit without producing a final answer.
var ErrLoopExceeded = errors.New("tool loop exceeded maximum rounds")

// initCallID marks the fabricated profile read at the start of a new
// conversation. A fixed id keeps replayed transcripts stable.
const initCallID = "call_init_read_business_profile"

// Message represents one chat message in an incoming request.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Request represents an incoming agent request.
type Request struct {
	Messages       []Message `json:"messages"`
	ConversationID string    `json:"conversationId,omitempty"`
}

// Response represents the agent's reply.
type Response struct {
	Message    string         `json:"message"`
	Cost       usage.CostInfo `json:"cost"`
	DocumentID string         `json:"documentId,omitempty"`
}

// Loop is the core agent execution loop.
type Loop struct {
	logger    *slog.Logger
	llm       llm.Client
	tools     *tools.Registry
	model     string
	maxRounds int
	maxTokens int
	pricing   config.PricingConfig
}

// NewLoop creates a new agent loop.
func NewLoop(logger *slog.Logger, client llm.Client, registry *tools.Registry, cfg config.AgentConfig, pricing config.PricingConfig) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		logger:    logger.With("component", "agent"),
		llm:       client,
		tools:     registry,
		model:     cfg.Model,
		maxRounds: cfg.MaxIterations,
		maxTokens: cfg.MaxOutputTokens,
		pricing:   pricing,
	}
}

// Run executes the agent loop for one request:
// 1. Assemble the transcript (system prompt, profile seeding, history)
// 2. Call the model with the tool catalog
// 3. Execute any requested tools and feed results back
// 4. Repeat until the model answers in plain text
func (l *Loop) Run(ctx context.Context, req *Request) (*Response, error) {
	convID := req.ConversationID
	if convID == "" {
		convID = "default"
	}

	logger := l.logger.With("conversation", convID)
	logger.Info("agent loop started", "messages", len(req.Messages), "model", l.model)

	msgs := l.buildMessages(ctx, req)
	ledger := usage.NewLedger(l.pricing)

	var documentID string

	for round := 0; round < l.maxRounds; round++ {
		resp, err := l.llm.Chat(ctx, l.model, msgs, l.tools.List(), llm.Options{
			MaxOutputTokens: l.maxTokens,
		})
		if err != nil {
			logger.Error("model call failed", "round", round, "error", err)
			return nil, fmt.Errorf("model call: %w", err)
		}

		call := ledger.Add(resp.Model, resp.PromptTokens, resp.CompletionTokens)
		logger.Debug("model round",
			"round", round,
			"tool_calls", len(resp.Message.ToolCalls),
			"prompt_tokens", resp.PromptTokens,
			"completion_tokens", resp.CompletionTokens,
			"cost", call.Cost,
		)

		msgs = append(msgs, resp.Message)

		if len(resp.Message.ToolCalls) == 0 {
			content := resp.Message.Content
			if strings.TrimSpace(content) == "" {
				logger.Warn("model returned empty content", "round", round)
				content = prompts.EmptyResponseFallback
			}

			info := ledger.Info()
			logger.Info("agent loop completed",
				"rounds", round+1,
				"model_calls", len(info.Calls),
				"total_cost", info.TotalCost,
			)
			return &Response{
				Message:    content,
				Cost:       info,
				DocumentID: documentID,
			}, nil
		}

		for _, tc := range resp.Message.ToolCalls {
			logger.Info("executing tool", "tool", tc.Function.Name, "call_id", tc.ID)
			result := l.tools.Execute(ctx, tc.Function.Name, tc.Function.Arguments)
			if id := documentIDFromResult(tc.Function.Name, result); id != "" {
				documentID = id
			}
			msgs = append(msgs, llm.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: tc.ID,
			})
		}
	}

	logger.Error("agent loop gave up", "rounds", l.maxRounds)
	return nil, fmt.Errorf("%w (%d rounds)", ErrLoopExceeded, l.maxRounds)
}

// buildMessages assembles the transcript sent to the model.
func (l *Loop) buildMessages(ctx context.Context, req *Request) []llm.Message {
	msgs := []llm.Message{{Role: "system", Content: prompts.BaseSystemPrompt()}}

	// A brand-new conversation gets the business profile preloaded as
	// a completed tool exchange, so the model's first answer is
	// grounded without spending a round on the obvious first call.
	if len(req.Messages) == 1 && req.Messages[0].Role == "user" {
		profileJSON := l.tools.Execute(ctx, "read_business_profile", "{}")
		msgs = append(msgs,
			llm.Message{
				Role: "assistant",
				ToolCalls: []llm.ToolCall{{
					ID:       initCallID,
					Function: llm.FunctionCall{Name: "read_business_profile", Arguments: "{}"},
				}},
			},
			llm.Message{
				Role:       "tool",
				Content:    profileJSON,
				ToolCallID: initCallID,
			},
		)
	}

	for _, m := range req.Messages {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	return msgs
}

// documentIDFromResult pulls the document id out of a document tool
// result so the response can point at the latest document touched.
func documentIDFromResult(tool, result string) string {
	switch tool {
	case "create_html_document", "generate_html_with_llm":
		var doc struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal([]byte(result), &doc); err == nil {
			return doc.ID
		}
	case "edit_html_document":
		var envelope struct {
			Success  bool `json:"success"`
			Document struct {
				ID string `json:"id"`
			} `json:"document"`
		}
		if err := json.Unmarshal([]byte(result), &envelope); err == nil && envelope.Success {
			return envelope.Document.ID
		}
	}
	return ""
}
