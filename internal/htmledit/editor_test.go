package htmledit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/speaks999/memorytest/internal/llm"
)

type mockCall struct {
	model    string
	messages []llm.Message
	opts     llm.Options
}

// mockLLM returns scripted responses in order and records every call.
type mockLLM struct {
	responses []llm.ChatResponse
	err       error
	calls     []mockCall
}

func (m *mockLLM) Chat(ctx context.Context, model string, messages []llm.Message, tools []map[string]any, opts llm.Options) (*llm.ChatResponse, error) {
	m.calls = append(m.calls, mockCall{model: model, messages: messages, opts: opts})
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return nil, fmt.Errorf("mock: no scripted response for call %d", len(m.calls))
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return &resp, nil
}

func (m *mockLLM) Ping(ctx context.Context) error { return nil }

func textResponse(content string) llm.ChatResponse {
	return llm.ChatResponse{
		Model:            "gpt-4o-mini",
		Message:          llm.Message{Role: "assistant", Content: content},
		PromptTokens:     100,
		CompletionTokens: 50,
	}
}

const originalDoc = `<!DOCTYPE html>
<html>
<head><title>Brightline</title></head>
<body>
<h1>Welcome</h1>
<p>We build websites.</p>
</body>
</html>`

func TestEdit_AppliesPatch(t *testing.T) {
	updatedDoc := strings.Replace(originalDoc, "Welcome", "Hello there", 1)
	mock := &mockLLM{responses: []llm.ChatResponse{textResponse(updatedDoc)}}
	e := NewEditor(mock, "gpt-4o-mini", 8192, nil, nil)

	got, patch, err := e.Edit(context.Background(), originalDoc, "Change the heading to say Hello there")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if got != updatedDoc {
		t.Errorf("updated HTML = %q, want the rewrite", got)
	}
	if patch == "" {
		t.Error("expected a non-empty patch")
	}

	// The returned patch must transform the original into the returned
	// document exactly.
	dmp := diffmatchpatch.New()
	patches, perr := dmp.PatchFromText(patch)
	if perr != nil {
		t.Fatalf("patch text does not parse: %v", perr)
	}
	replayed, applied := dmp.PatchApply(patches, originalDoc)
	for i, ok := range applied {
		if !ok {
			t.Errorf("patch hunk %d failed to apply", i)
		}
	}
	if replayed != got {
		t.Errorf("replayed patch = %q, want %q", replayed, got)
	}
}

func TestEdit_UsesTemperatureZero(t *testing.T) {
	mock := &mockLLM{responses: []llm.ChatResponse{textResponse(originalDoc)}}
	e := NewEditor(mock, "gpt-4o-mini", 8192, nil, nil)

	if _, _, err := e.Edit(context.Background(), originalDoc, "no-op"); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	if len(mock.calls) != 1 {
		t.Fatalf("expected 1 model call, got %d", len(mock.calls))
	}
	temp := mock.calls[0].opts.Temperature
	if temp == nil || *temp != 0 {
		t.Errorf("edit temperature = %v, want 0", temp)
	}
}

func TestEdit_NoChange(t *testing.T) {
	mock := &mockLLM{responses: []llm.ChatResponse{textResponse(originalDoc)}}
	e := NewEditor(mock, "gpt-4o-mini", 8192, nil, nil)

	got, patch, err := e.Edit(context.Background(), originalDoc, "leave it alone")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if got != originalDoc {
		t.Errorf("no-op edit changed the document")
	}
	if patch != "" {
		t.Errorf("no-op edit produced patch %q", patch)
	}
}

func TestEdit_StripsFences(t *testing.T) {
	updatedDoc := strings.Replace(originalDoc, "Welcome", "Hi", 1)
	fenced := "```html\n" + updatedDoc + "\n```"
	mock := &mockLLM{responses: []llm.ChatResponse{textResponse(fenced)}}
	e := NewEditor(mock, "gpt-4o-mini", 8192, nil, nil)

	got, _, err := e.Edit(context.Background(), originalDoc, "Change the heading to Hi")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if strings.Contains(got, "```") {
		t.Errorf("fences survived: %q", got)
	}
	if got != updatedDoc {
		t.Errorf("updated = %q, want %q", got, updatedDoc)
	}
}

func TestEdit_InvalidBothForms(t *testing.T) {
	mock := &mockLLM{responses: []llm.ChatResponse{textResponse("<div><span>broken</div>")}}
	e := NewEditor(mock, "gpt-4o-mini", 8192, nil, nil)

	_, _, err := e.Edit(context.Background(), originalDoc, "break it")
	if err == nil {
		t.Fatal("expected validation error for unparseable rewrite")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if verr.Msg == "" {
		t.Error("validation error carries no message")
	}
}

func TestEdit_TransportError(t *testing.T) {
	mock := &mockLLM{err: fmt.Errorf("connection refused")}
	e := NewEditor(mock, "gpt-4o-mini", 8192, nil, nil)

	_, _, err := e.Edit(context.Background(), originalDoc, "anything")
	if err == nil {
		t.Fatal("expected error when the model call fails")
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		t.Error("transport failure must not masquerade as a validation error")
	}
}

func TestEdit_RecordsUsage(t *testing.T) {
	mock := &mockLLM{responses: []llm.ChatResponse{textResponse(originalDoc)}}
	var gotSource string
	var gotPrompt, gotCompletion int
	e := NewEditor(mock, "gpt-4o-mini", 8192, nil, func(source, model string, prompt, completion int) {
		gotSource = source
		gotPrompt = prompt
		gotCompletion = completion
	})

	if _, _, err := e.Edit(context.Background(), originalDoc, "no-op"); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if gotSource != "editor" {
		t.Errorf("usage source = %q, want editor", gotSource)
	}
	if gotPrompt != 100 || gotCompletion != 50 {
		t.Errorf("usage tokens = %d/%d, want 100/50", gotPrompt, gotCompletion)
	}
}

func TestGenerate(t *testing.T) {
	doc := "<!DOCTYPE html>\n<html><body><h1>Landing</h1></body></html>"
	mock := &mockLLM{responses: []llm.ChatResponse{textResponse("```html\n" + doc + "\n```")}}
	var gotSource string
	e := NewEditor(mock, "gpt-4o-mini", 8192, nil, func(source, model string, prompt, completion int) {
		gotSource = source
	})

	got, err := e.Generate(context.Background(), "a landing page")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != doc {
		t.Errorf("generated = %q, want fences stripped", got)
	}
	if gotSource != "generator" {
		t.Errorf("usage source = %q, want generator", gotSource)
	}

	temp := mock.calls[0].opts.Temperature
	if temp == nil || *temp != generateTemperature {
		t.Errorf("generate temperature = %v, want %v", temp, generateTemperature)
	}
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"no fences", "<p>plain</p>", "<p>plain</p>"},
		{"whitespace trimmed", "  <p>x</p>\n", "<p>x</p>"},
		{"html fence", "```html\n<p>x</p>\n```", "<p>x</p>"},
		{"bare fence", "```\n<p>x</p>\n```", "<p>x</p>"},
		{"missing closing fence", "```html\n<p>x</p>", "<p>x</p>"},
		{"fence only line", "```", "```"},
		{"multiline body", "```html\n<div>\n<p>x</p>\n</div>\n```", "<div>\n<p>x</p>\n</div>"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := stripFences(tc.in); got != tc.want {
				t.Errorf("stripFences(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		doc   string
		valid bool
	}{
		{"full document", originalDoc, true},
		{"fragment", "<div><p>hello</p></div>", true},
		{"plain text", "just words, no markup", true},
		{"empty", "", true},
		{"unclosed p is implied", "<p>one<p>two", true},
		{"list without li closes", "<ul><li>a<li>b</ul>", true},
		{"void elements", `<div><img src="x.png"><br><hr></div>`, true},
		{"unclosed div", "<div><p>dangling", false},
		{"crossed tags", "<div><span>broken</div>", false},
		{"stray close", "</div>", false},
		{"mismatched close", "<section>text</article>", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.doc)
			if tc.valid && err != nil {
				t.Errorf("Validate(%q) = %v, want nil", tc.doc, err)
			}
			if !tc.valid && err == nil {
				t.Errorf("Validate(%q) = nil, want error", tc.doc)
			}
		})
	}
}

func TestValidate_ErrorType(t *testing.T) {
	err := Validate("<div><span></div>")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if !strings.Contains(verr.Error(), "invalid HTML") {
		t.Errorf("error string = %q", verr.Error())
	}
}
