package handler

import (
	"errors"
	"net/http"

	"github.com/dtroode/cardbook-server/internal/api/http/response"
	"github.com/dtroode/cardbook-server/internal/logger"
	"github.com/dtroode/cardbook-server/internal/model"
)

// Envelope messages for the session endpoints.
const (
	msgInvalidCredentials = "invalid username or password"
	msgAccountDisabled    = "account disabled"
	msgUnauthorized       = "unauthorized"
	msgMalformedBody      = "malformed request body"
	msgNotFound           = "not found"
	msgStorageDisabled    = "file storage is not available"
	msgInternal           = "internal server error"
)

// writeError maps err to an envelope. Unexpected errors are logged and
// answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger *logger.Logger) {
	var validationErr *model.ValidationError

	switch {
	case errors.As(err, &validationErr):
		response.Error(w, http.StatusUnprocessableEntity, validationErr.Error())
	case errors.Is(err, model.ErrInvalidCredentials):
		response.Error(w, http.StatusUnauthorized, msgInvalidCredentials)
	case errors.Is(err, model.ErrAccountDisabled):
		response.Error(w, http.StatusForbidden, msgAccountDisabled)
	case errors.Is(err, model.ErrUnauthorized), errors.Is(err, model.ErrInvalidToken):
		response.Error(w, http.StatusUnauthorized, msgUnauthorized)
	case errors.Is(err, model.ErrNotFound):
		response.Error(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, model.ErrStorageDisabled):
		response.Error(w, http.StatusServiceUnavailable, msgStorageDisabled)
	default:
		logger.Error("HTTP handler: request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err.Error())
		response.Error(w, http.StatusInternalServerError, msgInternal)
	}
}
