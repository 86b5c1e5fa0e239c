package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stoik/leaddesk/services/dashboard-service/internal/auth"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/dashboard"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/upload"
	"github.com/stoik/leaddesk/services/dashboard-service/internal/webhook"
)

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, upload.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, upload.ErrDisallowedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, upload.ErrEmptyFile),
		errors.Is(err, upload.ErrMissingName),
		errors.Is(err, dashboard.ErrInvalidInput),
		errors.Is(err, dashboard.ErrNothingSelected),
		errors.Is(err, dashboard.ErrUnknownTable):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, dashboard.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, webhook.ErrUpstream),
		errors.Is(err, webhook.ErrNotConfigured):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs server side failures and writes the error body
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
