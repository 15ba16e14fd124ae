// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response envelope shared by every endpoint and the
// helpers that write it. Success and failure use the same shape so clients
// branch on `success` and, for failures, on the stable `code`.
//
// Conventions:
//   - `fail()` writes a failure envelope and logs 5xx responses with the
//     request-scoped logger.
//   - `ok()` wraps a payload in a success envelope.
//
// Example error response:
//
//	HTTP/1.1 429 Too Many Requests
//	Retry-After: 86400
//	{
//	  "success": false,
//	  "code": "restricted",
//	  "message": "connection requests to this post are restricted until 2025-06-02T12:00:00Z",
//	  "restricted_until": "2025-06-02T12:00:00Z",
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000"
//	}
//
// Example success response:
//
//	HTTP/1.1 201 Created
//	{ "success": true, "data": { "id": "…", "status": "pending" } }
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/skillswap-connections/internal/http/middleware"
)

// Envelope is the response body returned by all endpoints.
type Envelope struct {
	Success bool `json:"success" example:"false"`
	// Human-readable message (safe to show to users)
	Message string `json:"message,omitempty" example:"connection not found"`
	Data    any    `json:"data,omitempty"`
	// Set on 429 cooldown responses and on successful rejections.
	RestrictedUntil *time.Time `json:"restricted_until,omitempty" example:"2025-06-02T12:00:00Z"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code,omitempty" example:"not_found"`
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
}

// fail aborts the request with a failure envelope. Server errors (>=500) are
// logged using the request-scoped logger from middleware.
func fail(c *gin.Context, status int, code, msg string) {
	failWith(c, status, Envelope{Code: code, Message: msg}, nil)
}

// failWith is fail with extra envelope fields (data, restricted_until). cause
// is logged for 5xx responses and never sent to the client.
func failWith(c *gin.Context, status int, env Envelope, cause error) {
	env.Success = false
	env.RequestID = c.Writer.Header().Get("X-Request-ID")
	middleware.SetErrorCode(c, env.Code)

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Err(cause).
			Int("status", status).
			Str("code", env.Code).
			Str("message", env.Message).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, env)
}

// Fail is the exported variant of fail() for router-level handlers
// (NoRoute, NoMethod).
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success envelope carrying data.
func ok(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

// okMessage writes a success envelope with only a message.
func okMessage(c *gin.Context, status int, msg string) {
	c.JSON(status, Envelope{Success: true, Message: msg})
}
