// Package httpapi exposes conversations and extraction over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/crystaldolphin/chatkeeper/internal/conversation"
	"github.com/crystaldolphin/chatkeeper/internal/extraction"
	"github.com/crystaldolphin/chatkeeper/internal/observability"
)

const maxBatchSize = 100

type Server struct {
	convs    *conversation.Manager
	pipeline *extraction.Pipeline
	metrics  *observability.Metrics
}

func New(convs *conversation.Manager, pipeline *extraction.Pipeline, metrics *observability.Metrics) *Server {
	return &Server{convs: convs, pipeline: pipeline, metrics: metrics}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.metrics.Handler().ServeHTTP(w, r)
	})
	r.Get("/v1/schema", s.handleSchema)

	r.Post("/v1/conversations", s.handleCreateConversation)
	r.Route("/v1/conversations/{id}", func(r chi.Router) {
		r.Post("/turns", s.handleAppendTurn)
		r.Get("/history", s.handleHistory)
		r.Get("/stats", s.handleStats)
		r.Post("/end", s.handleEndConversation)
	})

	r.Post("/v1/extract", s.handleExtract)
	r.Post("/v1/extract/batch", s.handleExtractBatch)

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	slog.Info("http api listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"conversations": s.convs.Len(),
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.pipeline.Schema().Declaration())
}

type createConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, _ *http.Request) {
	c := s.convs.Create()
	respondJSON(w, http.StatusCreated, createConversationResponse{ConversationID: c.ID()})
}

type appendTurnRequest struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type appendTurnResponse struct {
	Turn    conversation.Turn `json:"turn"`
	Visible int               `json:"visible_turns"`
	Warning string            `json:"warning,omitempty"`
}

func (s *Server) handleAppendTurn(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req appendTurnRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	speaker := conversation.Speaker(strings.TrimSpace(req.Speaker))
	if speaker != conversation.SpeakerUser && speaker != conversation.SpeakerAssistant {
		respondError(w, http.StatusBadRequest, "invalid_speaker", `speaker must be "user" or "assistant"`)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}

	turn, err := c.Record(r.Context(), speaker, req.Text)
	if errors.Is(err, conversation.ErrClosed) {
		respondError(w, http.StatusConflict, "conversation_closed", err.Error())
		return
	}
	resp := appendTurnResponse{Turn: turn, Visible: c.Len()}
	if err != nil {
		resp.Warning = err.Error()
	}
	respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"conversation_id": c.ID(),
		"turns":           c.VisibleHistory(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, c.Stats())
}

func (s *Server) handleEndConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.convs.End(r.Context(), id)
	if errors.Is(err, conversation.ErrNotFound) {
		respondError(w, http.StatusNotFound, "conversation_not_found", err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "archive_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*conversation.Conversation, bool) {
	c, err := s.convs.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "conversation_not_found", err.Error())
		return nil, false
	}
	return c, true
}

type extractRequest struct {
	Text string `json:"text"`
}

type extractBatchRequest struct {
	Texts []string `json:"texts"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}

	res, err := s.pipeline.Extract(r.Context(), req.Text)
	var malformed *extraction.MalformedResponseError
	var timeout *extraction.TimeoutError
	switch {
	case errors.As(err, &malformed):
		respondError(w, http.StatusBadGateway, "malformed_response", err.Error())
	case errors.As(err, &timeout):
		respondError(w, http.StatusGatewayTimeout, "timeout", err.Error())
	case err != nil:
		respondError(w, http.StatusBadGateway, "extraction_failed", err.Error())
	default:
		respondJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleExtractBatch(w http.ResponseWriter, r *http.Request) {
	var req extractBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.Texts) == 0 || len(req.Texts) > maxBatchSize {
		respondError(w, http.StatusBadRequest, "invalid_request", "texts must hold 1 to 100 entries")
		return
	}
	respondJSON(w, http.StatusOK, s.pipeline.ExtractBatch(r.Context(), req.Texts))
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
