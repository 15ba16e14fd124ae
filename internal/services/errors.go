// Package services implements the connection request lifecycle: sending,
// accepting, rejecting and cancelling requests, the cooldown restrictions
// created by rejection, and the messaging gate that only opens on accepted
// connections.
//
// Failures are reported with a small set of sentinel kinds. Callers use
// errors.Is to pick the kind and errors.As to read the typed details
// (ConflictError, RestrictedError, StateError, ...). Translation into HTTP
// statuses happens in the handler layer.
package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "modernc.org/sqlite/lib"

	"github.com/tbourn/skillswap-connections/internal/domain"
)

// Failure kinds.
var (
	// ErrNotFound indicates that the referenced post, user or connection does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidOperation is returned for requests that can never succeed,
	// such as connecting to oneself.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrInvalidInput is returned when request data fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when a uniqueness rule between connections
	// blocks the request.
	ErrConflict = errors.New("conflict")

	// ErrRestricted is returned while a rejection cooldown is in force.
	ErrRestricted = errors.New("restricted")

	// ErrForbidden is returned when the actor lacks the role for the action.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState is returned when the connection (or post) is not in the
	// status the action requires.
	ErrInvalidState = errors.New("invalid state")

	// ErrTransient wraps storage failures the caller may retry, such as a
	// locked database.
	ErrTransient = errors.New("temporarily unavailable")
)

// kindError carries a human-readable message for a bare kind.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func errorf(kind error, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// NotFoundError names the missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// OperationError describes a request that is not allowed regardless of state.
type OperationError struct {
	Reason string
}

func (e *OperationError) Error() string { return e.Reason }
func (e *OperationError) Unwrap() error { return ErrInvalidOperation }

// ConflictReason identifies which uniqueness rule fired.
type ConflictReason string

const (
	// ReasonAlreadyConnected: the two users already share an accepted
	// connection on some post.
	ReasonAlreadyConnected ConflictReason = "already_connected"
	// ReasonDuplicate: the sender already has a connection on this post.
	ReasonDuplicate ConflictReason = "duplicate"
	// ReasonPendingWithUser: the sender has a pending request to the same
	// owner on another post.
	ReasonPendingWithUser ConflictReason = "pending_with_user"
)

// ConflictError reports the blocking connection. Status is the status of
// that connection and selects the message for duplicates.
type ConflictError struct {
	Reason       ConflictReason
	Status       domain.ConnectionStatus
	ConnectionID string
}

func (e *ConflictError) Error() string {
	switch e.Reason {
	case ReasonAlreadyConnected:
		return "already connected to this user"
	case ReasonPendingWithUser:
		return "a request to this user is already pending"
	}
	switch e.Status {
	case domain.StatusPending:
		return "connection request already pending"
	case domain.StatusAccepted:
		return "already connected to owner"
	case domain.StatusRejected:
		return "previous request rejected"
	}
	return "connection already exists"
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// RestrictedError carries the instant the cooldown ends.
type RestrictedError struct {
	Until time.Time
}

func (e *RestrictedError) Error() string {
	return "connection requests to this post are restricted until " + e.Until.UTC().Format(time.RFC3339)
}

func (e *RestrictedError) Unwrap() error { return ErrRestricted }

// StateError reports the current status of the connection the action was
// attempted on. Current is empty when the state belongs to the post.
type StateError struct {
	Current domain.ConnectionStatus
	Reason  string
}

func (e *StateError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("connection is %s", e.Current)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

// transient marks lock/busy storage errors as ErrTransient and returns every
// other error unchanged.
func transient(err error) error {
	if err == nil || errors.Is(err, ErrTransient) || !isBusy(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// sqliteCoder is implemented by the SQLite driver's error type.
type sqliteCoder interface{ Code() int }

// isBusy detects SQLite lock contention. Extended result codes keep the
// primary code in the low byte.
func isBusy(err error) bool {
	var ce sqliteCoder
	if errors.As(err, &ce) {
		switch ce.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
