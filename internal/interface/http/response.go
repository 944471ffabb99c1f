package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alem-hub/learnhub/internal/domain/shared"
	"github.com/alem-hub/learnhub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// Successful responses carry the resource itself; errors use the envelope below.
// ══════════════════════════════════════════════════════════════════════════════

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success   bool     `json:"success"`
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// abortWithError writes the error envelope and stops the chain.
func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Success:   false,
		Error:     APIError{Code: code, Message: message},
		RequestID: c.GetString(ctxKeyRequestID),
	})
}

// errorMapping describes how one kind of domain error is reported.
type errorMapping struct {
	kind   error
	status int
	code   string
}

// errorMappings is checked in order; the first matching kind wins.
// ErrStorageUnavailable precedes ErrStorage because it wraps it.
var errorMappings = []errorMapping{
	{shared.ErrNotCompleted, http.StatusBadRequest, "lesson_not_completed"},
	{shared.ErrFreeCourse, http.StatusBadRequest, "free_course"},
	{shared.ErrAlreadyPurchased, http.StatusConflict, "already_purchased"},
	{shared.ErrAlreadyExists, http.StatusConflict, "already_exists"},
	{shared.ErrNotFound, http.StatusNotFound, "not_found"},
	{shared.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{shared.ErrForbidden, http.StatusForbidden, "forbidden"},
	{shared.ErrStorageUnavailable, http.StatusServiceUnavailable, "storage_error"},
	{shared.ErrStorage, http.StatusInternalServerError, "storage_error"},
}

// respondError maps err to a status and writes the error envelope.
// Server-side failures are logged and reported with a generic message.
func (s *Server) respondError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal_error"

	switch {
	case shared.IsValidation(err):
		status, code = http.StatusBadRequest, "validation_error"
	default:
		for _, m := range errorMappings {
			if errors.Is(err, m.kind) {
				status, code = m.status, m.code
				break
			}
		}
	}

	message := errorMessage(err)
	if status >= http.StatusInternalServerError {
		s.logger.WithTrace(c.Request.Context()).Error("request failed",
			logger.String("path", c.Request.URL.Path),
			logger.String("request_id", c.GetString(ctxKeyRequestID)),
			logger.Err(err),
		)
		message = http.StatusText(status)
	}

	abortWithError(c, status, code, message)
}

// errorMessage returns the human-readable part of a domain error.
func errorMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}
