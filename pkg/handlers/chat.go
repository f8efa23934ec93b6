package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/askdb-io/askdb-engine/pkg/apperrors"
	"github.com/askdb-io/askdb-engine/pkg/models"
	"github.com/askdb-io/askdb-engine/pkg/services"
)

// AskRequest for POST chat body.
type AskRequest struct {
	ServiceName string `json:"service_name"`
	Question    string `json:"question"`
}

// QueryRequest for POST query body: a raw statement with positional
// parameters, run without generation.
type QueryRequest struct {
	ServiceName string `json:"service_name"`
	Statement   string `json:"statement"`
	Params      []any  `json:"params,omitempty"`
}

// ChatHandler handles conversation HTTP requests.
type ChatHandler struct {
	orchestrator services.ConversationOrchestrator
	logger       *zap.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(orchestrator services.ConversationOrchestrator, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{orchestrator: orchestrator, logger: logger}
}

// RegisterRoutes registers the chat handler's routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/users/{uid}/chat", h.Ask)
	mux.HandleFunc("GET /api/users/{uid}/chat", h.History)
	mux.HandleFunc("POST /api/users/{uid}/query", h.Query)
}

// Ask handles POST /api/users/{uid}/chat. A turn that exhausts its attempts
// still returns the assistant message recording the failure, with 422.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "uid")
	if !ok {
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	msg, err := h.orchestrator.Ask(r.Context(), userID, req.ServiceName, req.Question)
	if err != nil {
		if errors.Is(err, apperrors.ErrAttemptsExhausted) && msg != nil {
			_ = WriteJSON(w, http.StatusUnprocessableEntity, msg)
			return
		}
		writeServiceError(w, h.logger, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, msg)
}

// Query handles POST /api/users/{uid}/query. The statement passes the same
// guard as generated SQL; a rejected statement returns 403.
func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "uid")
	if !ok {
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	result, err := h.orchestrator.Query(r.Context(), userID, req.ServiceName, req.Statement, req.Params)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, result)
}

// History handles GET /api/users/{uid}/chat?limit=N.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "uid")
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = parsed
	}

	messages, err := h.orchestrator.History(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if messages == nil {
		messages = []*models.ChatMessage{}
	}

	_ = WriteJSON(w, http.StatusOK, map[string]any{"messages": messages})
}
