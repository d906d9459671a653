// Package api implements the HTTP API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/yuin/goldmark"

	"github.com/speaks999/memorytest/internal/agent"
	"github.com/speaks999/memorytest/internal/buildinfo"
	"github.com/speaks999/memorytest/internal/config"
	"github.com/speaks999/memorytest/internal/documents"
	"github.com/speaks999/memorytest/internal/profile"
	"github.com/speaks999/memorytest/internal/usage"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response,
// which is not actionable but worth tracking for debugging.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP API server.
type Server struct {
	cfg        *config.Config
	loop       *agent.Loop
	documents  *documents.Store
	profile    profile.BusinessProfile
	usageStore *usage.Store
	logger     *slog.Logger
	server     *http.Server
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, loop *agent.Loop, docs *documents.Store, prof profile.BusinessProfile, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		loop:      loop,
		documents: docs,
		profile:   prof,
		logger:    logger.With("component", "api"),
	}
}

// SetUsageStore configures the store behind the usage endpoints. Left
// unset, usage reporting returns 503 and chat requests skip recording.
func (s *Server) SetUsageStore(us *usage.Store) {
	s.usageStore = us
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Core endpoints
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/chat", s.handleChat)

	// Document endpoints
	mux.HandleFunc("GET /api/documents", s.handleDocumentList)
	mux.HandleFunc("GET /api/document/{id}", s.handleDocumentGet)
	mux.HandleFunc("GET /api/document/{id}/qr", s.handleDocumentQR)

	// Business profile
	mux.HandleFunc("GET /api/profile", s.handleProfile)
	mux.HandleFunc("GET /api/profile.vcf", s.handleProfileVCard)

	// Usage reporting
	mux.HandleFunc("GET /api/usage/summary", s.handleUsageSummary)

	// Service info
	mux.HandleFunc("GET /api/version", s.handleVersion)
	mux.HandleFunc("GET /", s.handleRoot)

	return mux
}

// Start begins serving HTTP requests.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.withLogging(s.routes()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Chat requests span several model rounds
	}

	s.logger.Info("starting API server", "listen", s.cfg.Listen)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    "invalid_request_error",
			"code":    code,
		},
	}, s.logger)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    buildinfo.Name,
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"build":   buildinfo.BuildInfo(),
		"runtime": buildinfo.RuntimeInfo(),
	}, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "ok"}, s.logger)
}

// ChatRequest is the chat endpoint request body. Messages stays raw
// until the handler can reject non-array shapes with a 400.
type ChatRequest struct {
	Messages       json.RawMessage `json:"messages"`
	ConversationID string          `json:"conversationId,omitempty"`
}

// ChatResponse is the chat endpoint response body.
type ChatResponse struct {
	Message     string         `json:"message"`
	MessageHTML string         `json:"messageHtml,omitempty"`
	Cost        usage.CostInfo `json:"cost"`
	DocumentID  string         `json:"documentId,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var msgs []agent.Message
	if len(req.Messages) > 0 {
		if err := json.Unmarshal(req.Messages, &msgs); err != nil {
			s.errorResponse(w, http.StatusBadRequest, "messages must be an array of {role, content}")
			return
		}
	}
	if msgs == nil {
		s.errorResponse(w, http.StatusBadRequest, "messages must be an array of {role, content}")
		return
	}

	// Fail before any model work when the key is absent; the provider
	// would reject every round anyway.
	if s.cfg.OpenAI.APIKey == "" {
		s.errorResponse(w, http.StatusInternalServerError, "no OpenAI API key configured")
		return
	}

	resp, err := s.loop.Run(r.Context(), &agent.Request{
		Messages:       msgs,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		s.logger.Error("agent loop failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "agent error: "+err.Error())
		return
	}

	s.recordUsage(r.Context(), req.ConversationID, resp.Cost)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ChatResponse{
		Message:     resp.Message,
		MessageHTML: s.renderMarkdown(resp.Message),
		Cost:        resp.Cost,
		DocumentID:  resp.DocumentID,
	}, s.logger)
}

// renderMarkdown converts the assistant's markdown reply to an HTML
// fragment for clients that render rich text. Failures degrade to an
// empty fragment rather than failing the request.
func (s *Server) renderMarkdown(md string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		s.logger.Debug("markdown rendering failed", "error", err)
		return ""
	}
	return buf.String()
}

// recordUsage persists the per-call costs of one chat request. Failures
// are logged, not surfaced; usage history is best-effort bookkeeping.
func (s *Server) recordUsage(ctx context.Context, conversationID string, cost usage.CostInfo) {
	if s.usageStore == nil {
		return
	}

	requestID := uuid.New().String()
	for _, call := range cost.Calls {
		err := s.usageStore.Record(ctx, usage.Record{
			RequestID:        requestID,
			ConversationID:   conversationID,
			Model:            call.Model,
			Source:           "chat",
			PromptTokens:     call.PromptTokens,
			CompletionTokens: call.CompletionTokens,
			CostUSD:          call.Cost,
		})
		if err != nil {
			s.logger.Warn("failed to record usage", "error", err)
		}
	}
}

func (s *Server) handleDocumentList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"documents": s.documents.All(),
	}, s.logger)
}

func (s *Server) handleDocumentGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, ok := s.documents.Get(id)
	if !ok {
		s.errorResponse(w, http.StatusNotFound, "document not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"document": doc}, s.logger)
}

func (s *Server) handleDocumentQR(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.documents.Get(id); !ok {
		s.errorResponse(w, http.StatusNotFound, "document not found")
		return
	}

	url := s.cfg.PublicBaseURL + "/api/document/" + id
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		s.logger.Error("QR encoding failed", "error", err, "id", id)
		s.errorResponse(w, http.StatusInternalServerError, "failed to encode QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(png); err != nil {
		s.logger.Debug("failed to write QR response", "error", err)
	}
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, s.profile, s.logger)
}

func (s *Server) handleProfileVCard(w http.ResponseWriter, r *http.Request) {
	card, err := s.profile.VCard()
	if err != nil {
		s.logger.Error("vCard encoding failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to encode vCard")
		return
	}

	w.Header().Set("Content-Type", "text/vcard; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="contact.vcf"`)
	if _, err := w.Write(card); err != nil {
		s.logger.Debug("failed to write vCard response", "error", err)
	}
}

func (s *Server) handleUsageSummary(w http.ResponseWriter, r *http.Request) {
	if s.usageStore == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "usage tracking not configured")
		return
	}

	// Window defaults to all recorded history.
	var from time.Time
	to := time.Now().UTC().Add(24 * time.Hour)

	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		parsed, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "invalid from time: "+err.Error())
			return
		}
		from = parsed
	}
	if toStr := r.URL.Query().Get("to"); toStr != "" {
		parsed, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "invalid to time: "+err.Error())
			return
		}
		to = parsed
	}

	summary, err := s.usageStore.Summary(from, to)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "usage summary: "+err.Error())
		return
	}
	byModel, err := s.usageStore.SummaryByModel(from, to)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "usage by model: "+err.Error())
		return
	}
	bySource, err := s.usageStore.SummaryBySource(from, to)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "usage by source: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"summary":  summary,
		"byModel":  byModel,
		"bySource": bySource,
	}, s.logger)
}
