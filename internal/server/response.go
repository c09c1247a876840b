package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"forwardlab/internal/gate"
	"forwardlab/internal/session"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// respondDomainError maps session and gate errors onto HTTP statuses.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		RespondError(c, http.StatusNotFound, "session_not_found", err)
	case errors.Is(err, gate.ErrUnknownStep):
		RespondError(c, http.StatusNotFound, "unknown_step", err)
	case errors.Is(err, gate.ErrInvalidStepTransition):
		RespondError(c, http.StatusConflict, "invalid_step_transition", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
