package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askdb-io/askdb-engine/pkg/services"
)

// CreateUserRequest for POST body.
type CreateUserRequest struct {
	Email string `json:"email"`
}

// UsersHandler handles user account HTTP requests.
type UsersHandler struct {
	userService services.UserService
	logger      *zap.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(userService services.UserService, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{userService: userService, logger: logger}
}

// RegisterRoutes registers the users handler's routes on the given mux.
func (h *UsersHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/users", h.Create)
	mux.HandleFunc("GET /api/users/{uid}", h.Get)
	mux.HandleFunc("DELETE /api/users/{uid}", h.Delete)
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	user, err := h.userService.Create(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, user)
}

// Get handles GET /api/users/{uid}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "uid")
	if !ok {
		return
	}

	user, err := h.userService.Get(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, user)
}

// Delete handles DELETE /api/users/{uid}. Credentials and chat history are
// removed with the account.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "uid")
	if !ok {
		return
	}

	if err := h.userService.Delete(r.Context(), userID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// pathUUID parses a UUID path value, writing a 400 response when invalid.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_id", "invalid "+name+" path parameter")
		return uuid.Nil, false
	}
	return id, true
}
