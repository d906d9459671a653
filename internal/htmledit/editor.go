// Package htmledit rewrites HTML documents through the model.
//
// An edit asks the model for a full rewrite at temperature zero, then
// reduces the rewrite to a patch against the original. Applying the
// patch back to the original and validating the result catches the
// cases where the model mangled the document; the raw rewrite is the
// fallback, and a ValidationError the last resort.
package htmledit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/speaks999/memorytest/internal/llm"
	"github.com/speaks999/memorytest/internal/prompts"
)

const (
	// Edits must be deterministic and minimal.
	editTemperature float32 = 0
	// Generation wants some creative range.
	generateTemperature float32 = 0.9
)

// UsageFunc receives the token counts of each model call the editor
// makes. source is "editor" or "generator".
type UsageFunc func(source, model string, promptTokens, completionTokens int)

// Editor runs edit and generate calls against the model.
type Editor struct {
	client    llm.Client
	model     string
	maxTokens int
	logger    *slog.Logger
	onUsage   UsageFunc
}

// NewEditor creates an Editor. onUsage may be nil.
func NewEditor(client llm.Client, model string, maxTokens int, logger *slog.Logger, onUsage UsageFunc) *Editor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		logger:    logger.With("component", "htmledit"),
		onUsage:   onUsage,
	}
}

// Edit applies instruction to originalHTML and returns the updated
// document plus the text patch that transforms the original into it.
// When neither the patched result nor the raw rewrite validates, the
// error is a *ValidationError.
func (e *Editor) Edit(ctx context.Context, originalHTML, instruction string) (string, string, error) {
	e.logger.Debug("edit requested",
		"original_len", len(originalHTML),
		"instruction_len", len(instruction),
	)

	messages := []llm.Message{
		{Role: "system", Content: prompts.EditSystem},
		{Role: "user", Content: prompts.EditUserMessage(originalHTML, instruction)},
	}

	resp, err := e.client.Chat(ctx, e.model, messages, nil, llm.Options{
		Temperature:     llm.Temp(editTemperature),
		MaxOutputTokens: e.maxTokens,
	})
	if err != nil {
		return "", "", fmt.Errorf("edit call: %w", err)
	}
	e.recordUsage("editor", resp)

	rewritten := stripFences(resp.Message.Content)

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(originalHTML, rewritten, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	patches := dmp.PatchMake(originalHTML, diffs)
	patchText := dmp.PatchToText(patches)

	candidate, applied := dmp.PatchApply(patches, originalHTML)
	if allApplied(applied) {
		if err := Validate(candidate); err == nil {
			e.logger.Debug("edit complete", "patched", true, "updated_len", len(candidate))
			return candidate, patchText, nil
		}
	}

	// The patched form did not survive; fall back to the rewrite as
	// the model produced it.
	if err := Validate(rewritten); err != nil {
		e.logger.Debug("edit rejected", "error", err)
		return "", "", err
	}

	e.logger.Debug("edit complete", "patched", false, "updated_len", len(rewritten))
	return rewritten, patchText, nil
}

// Generate asks the model for a new document matching description.
func (e *Editor) Generate(ctx context.Context, description string) (string, error) {
	e.logger.Debug("generate requested", "description_len", len(description))

	messages := []llm.Message{
		{Role: "system", Content: prompts.GenerateSystem},
		{Role: "user", Content: description},
	}

	resp, err := e.client.Chat(ctx, e.model, messages, nil, llm.Options{
		Temperature:     llm.Temp(generateTemperature),
		MaxOutputTokens: e.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generate call: %w", err)
	}
	e.recordUsage("generator", resp)

	doc := stripFences(resp.Message.Content)
	e.logger.Debug("generate complete", "doc_len", len(doc))
	return doc, nil
}

func (e *Editor) recordUsage(source string, resp *llm.ChatResponse) {
	if e.onUsage == nil {
		return
	}
	model := resp.Model
	if model == "" {
		model = e.model
	}
	e.onUsage(source, model, resp.PromptTokens, resp.CompletionTokens)
}

func allApplied(applied []bool) bool {
	for _, ok := range applied {
		if !ok {
			return false
		}
	}
	return true
}

// stripFences removes a wrapping markdown code fence, with or without
// a language tag, and trims surrounding whitespace.
func stripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
