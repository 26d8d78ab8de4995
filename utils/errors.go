package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the JSON body of every non-2xx reply.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// RespondWithError writes an ErrorResponse, tagging it with the request ID
// set by the request ID middleware when present.
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details any) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		RequestID: c.GetString("request_id"),
		Details:   details,
	})
}

func RespondWithBadRequest(c *gin.Context, message string, details any) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

func RespondWithForbidden(c *gin.Context, message string) {
	RespondWithError(c, http.StatusForbidden, "forbidden", message, nil)
}

// RespondWithTooLarge sends a 413; details may carry the configured cap.
func RespondWithTooLarge(c *gin.Context, details any) {
	RespondWithError(c, http.StatusRequestEntityTooLarge, "request_too_large", "Request body exceeds maximum size", details)
}

func RespondWithInternalError(c *gin.Context, message string, details any) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}
