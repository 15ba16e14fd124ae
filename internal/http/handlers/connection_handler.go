// Connection HTTP handlers.
//
// This file exposes REST endpoints for the connection request lifecycle:
//   - POST   /posts/{postId}/connections   (send a request)
//   - POST   /connections/{id}/accept      (receiver accepts)
//   - POST   /connections/{id}/reject      (receiver rejects; starts a cooldown)
//   - DELETE /connections/{id}/cancel      (sender withdraws a pending request)
//   - GET    /connections/pending          (requests awaiting the caller)
//   - GET    /connections/accepted         (caller's accepted connections)
//   - GET    /connections                  (sent and received, ETag support)
//   - GET    /connections/restrictions     (caller's active cooldowns)
//
// Handlers are transport-thin: they read the authenticated actor, validate
// input, call application services, and map typed service errors onto the
// response envelope.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/skillswap-connections/internal/domain"
	"github.com/tbourn/skillswap-connections/internal/http/middleware"
	"github.com/tbourn/skillswap-connections/internal/repo"
	"github.com/tbourn/skillswap-connections/internal/services"
)

//
// Service contracts (context-aware)
//

// ConnectionService defines the lifecycle operations consumed by HTTP
// handlers. The actor is always the authenticated caller.
type ConnectionService interface {
	Send(ctx context.Context, actor, postID string, message *string) (*domain.Connection, error)
	Accept(ctx context.Context, actor, connectionID string) (*domain.Connection, error)
	Reject(ctx context.Context, actor, connectionID string) (*services.RejectResult, error)
	Cancel(ctx context.Context, actor, connectionID string) error

	Pending(ctx context.Context, userID string) ([]domain.Connection, error)
	Accepted(ctx context.Context, userID string) ([]domain.Connection, error)
	All(ctx context.Context, userID string) (*services.Overview, error)
	Restrictions(ctx context.Context, userID string) ([]domain.ConnectionRestriction, error)
}

// MessageService defines the messaging gate operations.
type MessageService interface {
	Send(ctx context.Context, actor, connectionID, content string) (*domain.Message, error)
	ListPage(ctx context.Context, actor, connectionID string, page, pageSize int) ([]domain.Message, int64, error)
}

//
// Handler wiring
//

// Options carries the optional persistence used for idempotent replays and
// conditional GETs. A nil DB disables both.
type Options struct {
	DB             *gorm.DB
	IdempotencyTTL time.Duration
}

// Handlers groups HTTP endpoints for connections and messages.
type Handlers struct {
	conns   ConnectionService
	msgs    MessageService
	db      *gorm.DB
	idemTTL time.Duration
	now     func() time.Time
}

// New constructs a Handlers instance bound to the given services.
func New(conns ConnectionService, msgs MessageService, opts Options) *Handlers {
	ttl := opts.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Handlers{conns: conns, msgs: msgs, db: opts.DB, idemTTL: ttl, now: time.Now}
}

// actorOf returns the authenticated user id, writing 401 when absent.
func actorOf(c *gin.Context) (string, bool) {
	actor, found := middleware.ActorFrom(c)
	if !found {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
	}
	return actor, found
}

// connectionID reads and validates the :id path parameter.
func connectionID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "connection id must be a UUID")
		return "", false
	}
	return id, true
}

//
// DTOs
//

// SendConnectionRequest is the optional JSON payload for a connection request.
type SendConnectionRequest struct {
	// Message is an optional note to the post owner (max 1000 characters).
	Message *string `json:"message" example:"Hi! I'd love to swap guitar lessons for Spanish practice."`
}

// ConflictDetail is carried in `data` on conflict responses.
type ConflictDetail struct {
	Reason string `json:"reason" example:"duplicate"`
	Status string `json:"status,omitempty" example:"pending"`
}

//
// Error mapping
//

// respondError maps a service error onto the envelope. Kinds are matched with
// errors.Is; typed details are pulled out with errors.As.
func (h *Handlers) respondError(c *gin.Context, err error) {
	var (
		restricted *services.RestrictedError
		conflict   *services.ConflictError
	)
	switch {
	case errors.As(err, &restricted):
		until := restricted.Until.UTC()
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(until, h.now())))
		failWith(c, http.StatusTooManyRequests, Envelope{
			Code:            ErrCodeRestricted,
			Message:         err.Error(),
			RestrictedUntil: &until,
		}, nil)
	case errors.As(err, &conflict):
		failWith(c, http.StatusBadRequest, Envelope{
			Code:    ErrCodeConflict,
			Message: err.Error(),
			Data:    ConflictDetail{Reason: string(conflict.Reason), Status: string(conflict.Status)},
		}, nil)
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, services.ErrConflict):
		fail(c, http.StatusBadRequest, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrInvalidState):
		fail(c, http.StatusBadRequest, ErrCodeInvalidState, err.Error())
	case errors.Is(err, services.ErrInvalidOperation):
		fail(c, http.StatusBadRequest, ErrCodeInvalidOperation, err.Error())
	case errors.Is(err, services.ErrInvalidInput):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrRestricted):
		fail(c, http.StatusTooManyRequests, ErrCodeRestricted, err.Error())
	case errors.Is(err, services.ErrTransient):
		c.Header("Retry-After", "1")
		failWith(c, http.StatusServiceUnavailable, Envelope{
			Code:    ErrCodeTransient,
			Message: "storage is busy, retry shortly",
		}, err)
	default:
		failWith(c, http.StatusInternalServerError, Envelope{
			Code:    ErrCodeInternal,
			Message: "internal error",
		}, err)
	}
}

// retryAfterSeconds rounds the wait until `until` up to whole seconds, at
// least 1.
func retryAfterSeconds(until, now time.Time) int {
	secs := int(math.Ceil(until.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

//
// Handlers
//

// SendConnection godoc
// @ID          sendConnection
// @Summary     Request a connection on a post
// @Description Sends a connection request from the caller to the owner of the post.
// @Description Supports idempotency via the Idempotency-Key header (same key and post → same connection).
// @Tags        Connections
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       postId           path    string  true  "Post ID"
// @Param       body             body    handlers.SendConnectionRequest  false  "Optional note"
//
// @Success     201  {object}  handlers.Envelope{data=domain.Connection}  "Request created"
// @Success     200  {object}  handlers.Envelope{data=domain.Connection}  "Idempotent replay"
// @Failure     400  {object}  handlers.Envelope  "Validation, conflict or invalid state"
// @Failure     404  {object}  handlers.Envelope  "Post or owner not found"
// @Failure     429  {object}  handlers.Envelope  "Restricted by cooldown"
// @Failure     503  {object}  handlers.Envelope  "Storage busy"
// @Router      /posts/{postId}/connections [post]
func (h *Handlers) SendConnection(c *gin.Context) {
	ctx := c.Request.Context()
	actor, found := actorOf(c)
	if !found {
		return
	}
	postID := strings.TrimSpace(c.Param("postId"))
	if postID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "post id is required")
		return
	}

	var req SendConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	idemKey, _ := middleware.GetIdempotencyKey(c)
	if prev := h.replay(ctx, actor, postID, idemKey); prev != nil {
		c.Header("Idempotency-Replayed", "true")
		ok(c, http.StatusOK, prev)
		return
	}

	conn, err := h.conns.Send(ctx, actor, postID, req.Message)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if idemKey != "" && h.db != nil {
		if _, err := repo.CreateIdempotency(ctx, h.db, actor, postID, idemKey, conn.ID, http.StatusCreated, h.idemTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			middleware.LoggerFrom(c).Warn().Err(err).Str("connection_id", conn.ID).Msg("idempotency record not stored")
		}
	}

	ok(c, http.StatusCreated, conn)
}

// replay returns the connection recorded for (actor, postID, key), or nil
// when there is none or it no longer exists.
func (h *Handlers) replay(ctx context.Context, actor, postID, key string) *domain.Connection {
	if key == "" || h.db == nil {
		return nil
	}
	rec, err := repo.GetIdempotency(ctx, h.db, actor, postID, key, h.now().UTC())
	if err != nil {
		return nil
	}
	conn, err := repo.GetConnection(ctx, h.db, rec.ResourceID)
	if err != nil || conn.SenderID != actor {
		return nil
	}
	return conn
}

// AcceptConnection godoc
// @ID          acceptConnection
// @Summary     Accept a pending request
// @Description Only the receiver may accept, and only while the request is pending.
// @Tags        Connections
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  string  true  "Connection ID (UUID)"  format(uuid)
// @Success     200  {object}  handlers.Envelope{data=domain.Connection}
// @Failure     400  {object}  handlers.Envelope  "Not pending or already connected"
// @Failure     403  {object}  handlers.Envelope  "Caller is not the receiver"
// @Failure     404  {object}  handlers.Envelope  "Connection not found"
// @Router      /connections/{id}/accept [post]
func (h *Handlers) AcceptConnection(c *gin.Context) {
	actor, found := actorOf(c)
	if !found {
		return
	}
	id, valid := connectionID(c)
	if !valid {
		return
	}
	conn, err := h.conns.Accept(c.Request.Context(), actor, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, conn)
}

// RejectConnection godoc
// @ID          rejectConnection
// @Summary     Reject a pending request
// @Description Only the receiver may reject. The sender is blocked from requesting the same post until restricted_until.
// @Tags        Connections
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  string  true  "Connection ID (UUID)"  format(uuid)
// @Success     200  {object}  handlers.Envelope{data=services.RejectResult}
// @Failure     400  {object}  handlers.Envelope  "Not pending"
// @Failure     403  {object}  handlers.Envelope  "Caller is not the receiver"
// @Failure     404  {object}  handlers.Envelope  "Connection not found"
// @Router      /connections/{id}/reject [post]
func (h *Handlers) RejectConnection(c *gin.Context) {
	actor, found := actorOf(c)
	if !found {
		return
	}
	id, valid := connectionID(c)
	if !valid {
		return
	}
	res, err := h.conns.Reject(c.Request.Context(), actor, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	until := res.RestrictedUntil.UTC()
	c.JSON(http.StatusOK, Envelope{Success: true, Data: res, RestrictedUntil: &until})
}

// CancelConnection godoc
// @ID          cancelConnection
// @Summary     Cancel a pending request
// @Description Only the sender may cancel, and only while the request is pending. The request is removed.
// @Tags        Connections
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  string  true  "Connection ID (UUID)"  format(uuid)
// @Success     200  {object}  handlers.Envelope
// @Failure     400  {object}  handlers.Envelope  "Not pending"
// @Failure     403  {object}  handlers.Envelope  "Caller is not the sender"
// @Failure     404  {object}  handlers.Envelope  "Connection not found"
// @Router      /connections/{id}/cancel [delete]
func (h *Handlers) CancelConnection(c *gin.Context) {
	actor, found := actorOf(c)
	if !found {
		return
	}
	id, valid := connectionID(c)
	if !valid {
		return
	}
	if err := h.conns.Cancel(c.Request.Context(), actor, id); err != nil {
		h.respondError(c, err)
		return
	}
	okMessage(c, http.StatusOK, "connection request cancelled")
}

// ListPending godoc
// @ID          listPendingConnections
// @Summary     Pending requests received
// @Tags        Connections
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.Envelope{data=[]domain.Connection}
// @Router      /connections/pending [get]
func (h *Handlers) ListPending(c *gin.Context) {
	actor, found := actorOf(c)
	if !found {
		return
	}
	items, err := h.conns.Pending(c.Request.Context(), actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, nonNil(items))
}

// ListAccepted godoc
// @ID          listAcceptedConnections
// @Summary     Accepted connections
// @Tags        Connections
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.Envelope{data=[]domain.Connection}
// @Router      /connections/accepted [get]
func (h *Handlers) ListAccepted(c *gin.Context) {
	actor, found := actorOf(c)
	if !found {
		return
	}
	items, err := h.conns.Accepted(c.Request.Context(), actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, nonNil(items))
}

// ListAll godoc
// @ID          listConnections
// @Summary     All connections of the caller
// @Description Returns sent and received connections in every status. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Connections
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false  "ETag from a previous response"
// @Success     200  {object}  handlers.Envelope{data=services.Overview}
// @Success     304  "Not Modified"
// @Router      /connections [get]
func (h *Handlers) ListAll(c *gin.Context) {
	ctx := c.Request.Context()
	actor, found := actorOf(c)
	if !found {
		return
	}

	// ETag pre-check (best effort).
	if h.db != nil {
		if count, maxTS, err := repo.ConnectionsStats(ctx, h.db, actor); err == nil {
			etag := weakETag("connections", actor, count, maxTS)
			c.Header("ETag", etag)
			if etagMatches(c.GetHeader("If-None-Match"), etag) {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	ov, err := h.conns.All(ctx, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ov.Sent = nonNil(ov.Sent)
	ov.Received = nonNil(ov.Received)
	ok(c, http.StatusOK, ov)
}

// ListRestrictions godoc
// @ID          listRestrictions
// @Summary     Active cooldowns of the caller
// @Description Lists posts the caller may not request again yet, with the expiry of each cooldown.
// @Tags        Connections
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.Envelope{data=[]domain.ConnectionRestriction}
// @Router      /connections/restrictions [get]
func (h *Handlers) ListRestrictions(c *gin.Context) {
	actor, found := actorOf(c)
	if !found {
		return
	}
	items, err := h.conns.Restrictions(c.Request.Context(), actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, nonNil(items))
}

//
// Helpers
//

// nonNil turns a nil slice into an empty one so lists encode as [].
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// weakETag builds W/"<kind>:<id>:<count>:<latest update in ns>".
func weakETag(kind, id string, count int64, latest *time.Time) string {
	var ts int64
	if latest != nil {
		ts = latest.UnixNano()
	}
	return fmt.Sprintf(`W/"%s:%s:%d:%d"`, kind, id, count, ts)
}

// etagMatches reports whether an If-None-Match value names etag or "*".
func etagMatches(ifNoneMatch, etag string) bool {
	for _, v := range strings.Split(ifNoneMatch, ",") {
		v = strings.TrimSpace(v)
		if v == "*" || v == etag {
			return true
		}
	}
	return false
}
