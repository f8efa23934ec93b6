package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/askdb-io/askdb-engine/pkg/adapters/datasource"
	"github.com/askdb-io/askdb-engine/pkg/apperrors"
	"github.com/askdb-io/askdb-engine/pkg/llm"
	"github.com/askdb-io/askdb-engine/pkg/logging"
	sqlguard "github.com/askdb-io/askdb-engine/pkg/sql"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeServiceError maps service-layer errors onto HTTP responses. Raw error
// text goes to the log, sanitized; the client sees only stable error codes.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var rejection *sqlguard.RejectionError
	if errors.As(err, &rejection) {
		_ = ErrorResponse(w, http.StatusForbidden, "statement_rejected", rejection.Error())
		return
	}

	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		logger.Error("model provider failed", zap.String("error", logging.SanitizeError(err)))
		_ = ErrorResponse(w, http.StatusBadGateway, "model_unavailable",
			"the model provider could not be reached")
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrValidation):
		_ = ErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperrors.ErrDuplicateService):
		_ = ErrorResponse(w, http.StatusConflict, "duplicate_service", err.Error())
	case errors.Is(err, apperrors.ErrCredentialsKeyMismatch):
		_ = ErrorResponse(w, http.StatusInternalServerError, "credentials_key_mismatch",
			"stored credential cannot be decrypted with the current key")
	case errors.Is(err, datasource.ErrAuthenticationFailed):
		_ = ErrorResponse(w, http.StatusBadGateway, "database_auth_failed",
			"the database rejected the stored credentials")
	case errors.Is(err, datasource.ErrNetworkUnreachable):
		_ = ErrorResponse(w, http.StatusBadGateway, "database_unreachable",
			"the database could not be reached")
	case errors.Is(err, datasource.ErrConnectTimeout):
		_ = ErrorResponse(w, http.StatusGatewayTimeout, "connect_timeout",
			"connecting to the database timed out")
	case errors.Is(err, datasource.ErrUnsupportedType):
		_ = ErrorResponse(w, http.StatusBadRequest, "unsupported_type", err.Error())
	default:
		logger.Error("request failed", zap.String("error", logging.SanitizeError(err)))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error",
			"an internal error occurred")
	}
}
