package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/askdb-io/askdb-engine/pkg/adapters/datasource"
	"github.com/askdb-io/askdb-engine/pkg/models"
	"github.com/askdb-io/askdb-engine/pkg/services"
)

// CredentialRequest carries a service name and the connection descriptor to
// encrypt. The secret only ever travels inbound; responses never include it.
type CredentialRequest struct {
	ServiceName string                      `json:"service_name"`
	Connection  models.ConnectionDescriptor `json:"connection"`
}

// CredentialsHandler handles credential vault HTTP requests.
type CredentialsHandler struct {
	vault  services.CredentialVault
	logger *zap.Logger
}

// NewCredentialsHandler creates a new credentials handler.
func NewCredentialsHandler(vault services.CredentialVault, logger *zap.Logger) *CredentialsHandler {
	return &CredentialsHandler{vault: vault, logger: logger}
}

// RegisterRoutes registers the credentials handler's routes on the given mux.
func (h *CredentialsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/users/{uid}/credentials", h.Create)
	mux.HandleFunc("GET /api/users/{uid}/credentials", h.List)
	mux.HandleFunc("PUT /api/users/{uid}/credentials/{service}", h.Update)
	mux.HandleFunc("DELETE /api/users/{uid}/credentials/{service}", h.Delete)
	mux.HandleFunc("GET /api/datasource-types", h.ListTypes)
}

// Create handles POST /api/users/{uid}/credentials.
func (h *CredentialsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "uid")
	if !ok {
		return
	}

	var req CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	cred, err := h.vault.Store(r.Context(), userID, req.ServiceName, &req.Connection)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, cred)
}

// List handles GET /api/users/{uid}/credentials. Entries carry metadata only.
func (h *CredentialsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "uid")
	if !ok {
		return
	}

	creds, err := h.vault.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if creds == nil {
		creds = []*models.Credential{}
	}

	_ = WriteJSON(w, http.StatusOK, map[string]any{"credentials": creds})
}

// Update handles PUT /api/users/{uid}/credentials/{service}.
func (h *CredentialsHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "uid")
	if !ok {
		return
	}
	serviceName := r.PathValue("service")

	var req CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	if err := h.vault.Update(r.Context(), userID, serviceName, &req.Connection); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/users/{uid}/credentials/{service}.
func (h *CredentialsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "uid")
	if !ok {
		return
	}

	if err := h.vault.Delete(r.Context(), userID, r.PathValue("service")); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListTypes handles GET /api/datasource-types.
func (h *CredentialsHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	_ = WriteJSON(w, http.StatusOK, map[string]any{
		"types": datasource.RegisteredAdapters(),
	})
}
