// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them. Each
// service error kind maps to exactly one code (see respondError).
//
// Example response:
//
//	{
//	  "success": false,
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "conflict",
//	  "message": "connection request already pending",
//	  "data": { "reason": "duplicate", "status": "pending" }
//	}
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Lifecycle-specific:
	ErrCodeInvalidState     = "invalid_state"
	ErrCodeInvalidOperation = "invalid_operation"
	ErrCodeRestricted       = "restricted"
	ErrCodeTransient        = "transient"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
