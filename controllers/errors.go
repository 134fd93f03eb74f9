package controllers

import (
	"errors"
	"net/http"

	"user-admin/services"

	restful "github.com/emicklei/go-restful/v3"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func writeError(response *restful.Response, status int, message string) {
	_ = response.WriteHeaderAndJson(status, ErrorResponse{Message: message}, restful.MIME_JSON)
}

// handleServiceError translates service errors to HTTP responses.
func handleServiceError(response *restful.Response, log *zap.Logger, err error) {
	var verr *services.ValidationError
	switch {
	case errors.Is(err, services.ErrForbidden):
		writeError(response, http.StatusForbidden, "Forbidden")
	case errors.Is(err, services.ErrNotFound):
		writeError(response, http.StatusNotFound, "User not found")
	case errors.As(err, &verr):
		_ = response.WriteHeaderAndJson(http.StatusUnprocessableEntity,
			ErrorResponse{Message: "The given data was invalid.", Errors: verr.Fields}, restful.MIME_JSON)
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(response, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, services.ErrAccountDisabled):
		writeError(response, http.StatusForbidden, "Account is disabled")
	default:
		log.Error("Unhandled service error", zap.Error(err))
		writeError(response, http.StatusInternalServerError, "An internal error occurred")
	}
}
