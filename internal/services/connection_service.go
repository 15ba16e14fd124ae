// Package services – ConnectionService
//
// ConnectionService orchestrates the connection request lifecycle:
//
//	(none) --Send--> pending --Accept--> accepted (terminal)
//	                         --Reject--> rejected (terminal, plus cooldown)
//	                         --Cancel--> deleted
//
// Every operation takes the acting user explicitly. Rule checks and the
// mutation they guard run inside one transaction; the unique indexes on the
// connections table settle races the checks cannot see.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/skillswap-connections/internal/domain"
	"github.com/tbourn/skillswap-connections/internal/observability"
	"github.com/tbourn/skillswap-connections/internal/policy"
	"github.com/tbourn/skillswap-connections/internal/repo"
)

// DefaultMaxRequestMessageRunes caps the optional note sent with a request.
const DefaultMaxRequestMessageRunes = 1000

// ConnectionRepo defines the repository contract required by
// ConnectionService. All methods accept the handle to run on so they
// participate in the caller's transaction. Missing rows are reported as
// gorm.ErrRecordNotFound.
type ConnectionRepo interface {
	RestrictionRepo

	// FindConnection fetches a connection by id.
	FindConnection(ctx context.Context, db *gorm.DB, id string) (*domain.Connection, error)
	// FindConnectionForPair fetches the sender's connection on a post, any status.
	FindConnectionForPair(ctx context.Context, db *gorm.DB, senderID, postID string) (*domain.Connection, error)
	// FindAcceptedBetween fetches an accepted connection between two users, either direction.
	FindAcceptedBetween(ctx context.Context, db *gorm.DB, a, b string) (*domain.Connection, error)
	// FindPendingBetween fetches the pending connection sender -> receiver on any post.
	FindPendingBetween(ctx context.Context, db *gorm.DB, senderID, receiverID string) (*domain.Connection, error)

	// CreateConnection inserts a new connection.
	CreateConnection(ctx context.Context, db *gorm.DB, c *domain.Connection) error
	// SetStatus moves a connection from one status to another.
	SetStatus(ctx context.Context, db *gorm.DB, id string, from, to domain.ConnectionStatus, now time.Time) error
	// DeleteConnection hard-deletes a connection still in the given status.
	DeleteConnection(ctx context.Context, db *gorm.DB, id string, status domain.ConnectionStatus) error

	ListPendingForReceiver(ctx context.Context, db *gorm.DB, userID string) ([]domain.Connection, error)
	ListAcceptedForUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Connection, error)
	ListSent(ctx context.Context, db *gorm.DB, userID string) ([]domain.Connection, error)
	ListReceived(ctx context.Context, db *gorm.DB, userID string) ([]domain.Connection, error)
}

// ConnectionService implements the lifecycle operations and read queries.
type ConnectionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the connection and restriction repository.
	Repo ConnectionRepo
	// Directory resolves post owners and activity.
	Directory Directory
	// Cooldowns evaluates and writes restrictions.
	Cooldowns *RestrictionService
	// Now is the clock; nil means time.Now.
	Now func() time.Time

	// MaxMessageRunes caps the request note; <= 0 disables the check.
	MaxMessageRunes int
}

// NewConnectionService wires a service with the wall clock, the given
// cooldown and the default message cap.
func NewConnectionService(db *gorm.DB, r ConnectionRepo, dir Directory, cooldown time.Duration) *ConnectionService {
	return &ConnectionService{
		DB:              db,
		Repo:            r,
		Directory:       dir,
		Cooldowns:       NewRestrictionService(db, r, cooldown),
		Now:             time.Now,
		MaxMessageRunes: DefaultMaxRequestMessageRunes,
	}
}

// RejectResult is the outcome of a rejection.
type RejectResult struct {
	Connection      *domain.Connection `json:"connection"`
	RestrictedUntil time.Time          `json:"restricted_until"`
}

// Overview splits a user's connections by direction.
type Overview struct {
	Sent     []domain.Connection `json:"sent"`
	Received []domain.Connection `json:"received"`
}

func (s *ConnectionService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *ConnectionService) restrictions() *RestrictionService {
	if s.Cooldowns == nil {
		s.Cooldowns = &RestrictionService{DB: s.DB, Repo: s.Repo, Now: s.Now, Cooldown: DefaultCooldown}
	}
	return s.Cooldowns
}

// Send creates a pending request from actor to the owner of postID.
//
// Checks run in this order and the first failure is returned:
//  1. the post exists and its owner is a known user (ErrNotFound)
//  2. actor is not the owner (ErrInvalidOperation)
//  3. the post is active (ErrInvalidState)
//  4. no active cooldown on (actor, post) (ErrRestricted, *RestrictedError)
//  5. no accepted connection between actor and owner on any post (ErrConflict, already_connected)
//  6. no connection of any status on (actor, post) (ErrConflict, duplicate)
//  7. no pending request actor -> owner on another post (ErrConflict, pending_with_user)
//
// message is trimmed and NFC-normalized; blank becomes nil and an over-long
// note is ErrInvalidInput.
func (s *ConnectionService) Send(ctx context.Context, actor, postID string, message *string) (conn *domain.Connection, err error) {
	ctx, span := otel.Tracer("services/ConnectionService").Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("user.id", actor),
			attribute.String("post.id", postID),
		),
	)
	defer func() { s.finish(ctx, span, "send", err) }()

	note, err := s.normalizeMessage(message)
	if err != nil {
		return nil, err
	}

	owner, err := s.resolveOwner(ctx, postID)
	if err != nil {
		return nil, err
	}
	if owner == actor {
		return nil, &OperationError{Reason: "cannot send a connection request to yourself"}
	}
	active, err := s.Directory.ListingIsActive(ctx, postID)
	if err != nil {
		return nil, transient(err)
	}
	if !active {
		return nil, &StateError{Reason: "post is not accepting connection requests"}
	}

	now := s.now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		restricted, until, err := s.restrictions().IsRestricted(ctx, tx, actor, postID)
		if err != nil {
			return err
		}
		if restricted {
			return &RestrictedError{Until: until}
		}
		if err := s.checkPair(ctx, tx, actor, owner, postID); err != nil {
			return err
		}

		c := &domain.Connection{
			SenderID:   actor,
			ReceiverID: owner,
			PostID:     postID,
			Message:    note,
			Status:     domain.StatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.Repo.CreateConnection(ctx, tx, c); err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		if repo.IsUniqueViolation(err) {
			// Lost a race with a concurrent writer: report the rule it tripped.
			return nil, s.explainConflict(ctx, actor, owner, postID)
		}
		return nil, transient(err)
	}

	logFor(ctx).Info().
		Str("connection_id", conn.ID).
		Str("sender_id", actor).
		Str("receiver_id", owner).
		Str("post_id", postID).
		Msg("connection requested")
	return conn, nil
}

// resolveOwner maps a post to an owner that exists in the directory.
func (s *ConnectionService) resolveOwner(ctx context.Context, postID string) (string, error) {
	if strings.TrimSpace(postID) == "" {
		return "", &NotFoundError{Resource: "post", ID: postID}
	}
	owner, ok, err := s.Directory.ListingOwner(ctx, postID)
	if err != nil {
		return "", transient(err)
	}
	if !ok || owner == "" {
		return "", &NotFoundError{Resource: "post", ID: postID}
	}
	exists, err := s.Directory.UserExists(ctx, owner)
	if err != nil {
		return "", transient(err)
	}
	if !exists {
		return "", &NotFoundError{Resource: "post owner", ID: owner}
	}
	return owner, nil
}

// checkPair runs rules 5–7 of Send against db.
func (s *ConnectionService) checkPair(ctx context.Context, db *gorm.DB, actor, owner, postID string) error {
	if c, err := s.Repo.FindAcceptedBetween(ctx, db, actor, owner); err == nil {
		return &ConflictError{Reason: ReasonAlreadyConnected, Status: c.Status, ConnectionID: c.ID}
	} else if !isNotFound(err) {
		return err
	}

	if c, err := s.Repo.FindConnectionForPair(ctx, db, actor, postID); err == nil {
		return &ConflictError{Reason: ReasonDuplicate, Status: c.Status, ConnectionID: c.ID}
	} else if !isNotFound(err) {
		return err
	}

	if c, err := s.Repo.FindPendingBetween(ctx, db, actor, owner); err == nil {
		return &ConflictError{Reason: ReasonPendingWithUser, Status: c.Status, ConnectionID: c.ID}
	} else if !isNotFound(err) {
		return err
	}
	return nil
}

// explainConflict re-reads committed state after a unique violation.
func (s *ConnectionService) explainConflict(ctx context.Context, actor, owner, postID string) error {
	err := s.checkPair(ctx, s.DB.WithContext(ctx), actor, owner, postID)
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce
	}
	if err != nil {
		return transient(err)
	}
	// The winning row is already gone again; report the generic duplicate.
	return &ConflictError{Reason: ReasonDuplicate, Status: domain.StatusPending}
}

func (s *ConnectionService) normalizeMessage(message *string) (*string, error) {
	if message == nil {
		return nil, nil
	}
	m := norm.NFC.String(strings.TrimSpace(*message))
	if m == "" {
		return nil, nil
	}
	if !utf8.ValidString(m) {
		return nil, errorf(ErrInvalidInput, "message must be valid UTF-8")
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(m) > s.MaxMessageRunes {
		return nil, errorf(ErrInvalidInput, "message must be at most %d characters", s.MaxMessageRunes)
	}
	return &m, nil
}

// load fetches a connection for a mutation and applies the guard.
func (s *ConnectionService) load(ctx context.Context, tx *gorm.DB, actor, id string, action policy.Action) (*domain.Connection, error) {
	c, err := s.Repo.FindConnection(ctx, tx, id)
	if isNotFound(err) {
		return nil, &NotFoundError{Resource: "connection", ID: id}
	}
	if err != nil {
		return nil, err
	}

	var allowed bool
	switch action {
	case policy.Cancel:
		// Role first: a non-sender is Forbidden whatever the status.
		allowed = policy.IsSender(actor, c)
	default:
		allowed = policy.Permit(actor, action, c)
	}
	if !allowed {
		return nil, errorf(ErrForbidden, "only the %s can %s this request", roleFor(action), action)
	}

	switch {
	case !c.Status.Valid():
		return nil, fmt.Errorf("connection %s has unknown status %q", c.ID, c.Status)
	case c.Status.Terminal():
		return nil, &StateError{
			Current: c.Status,
			Reason:  "only pending requests can be " + pastTense(action) + "; current status is " + string(c.Status),
		}
	}
	return c, nil
}

// Accept marks a pending request as accepted. Only the receiver may accept.
func (s *ConnectionService) Accept(ctx context.Context, actor, connectionID string) (conn *domain.Connection, err error) {
	ctx, span := otel.Tracer("services/ConnectionService").Start(ctx, "Accept",
		trace.WithAttributes(
			attribute.String("user.id", actor),
			attribute.String("connection.id", connectionID),
		),
	)
	defer func() { s.finish(ctx, span, "accept", err) }()

	now := s.now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.load(ctx, tx, actor, connectionID, policy.Accept)
		if err != nil {
			return err
		}
		if other, err := s.Repo.FindAcceptedBetween(ctx, tx, c.SenderID, c.ReceiverID); err == nil && other.ID != c.ID {
			return &ConflictError{Reason: ReasonAlreadyConnected, Status: other.Status, ConnectionID: other.ID}
		} else if err != nil && !isNotFound(err) {
			return err
		}
		if err := s.setStatus(ctx, tx, c, domain.StatusAccepted, now); err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		if repo.IsUniqueViolation(err) {
			return nil, &ConflictError{Reason: ReasonAlreadyConnected, Status: domain.StatusAccepted}
		}
		return nil, transient(err)
	}

	logFor(ctx).Info().
		Str("connection_id", conn.ID).
		Str("sender_id", conn.SenderID).
		Str("post_id", conn.PostID).
		Msg("connection accepted")
	return conn, nil
}

// Reject marks a pending request as rejected and starts the cooldown on
// (sender, post). Both writes commit together. Only the receiver may reject.
func (s *ConnectionService) Reject(ctx context.Context, actor, connectionID string) (res *RejectResult, err error) {
	ctx, span := otel.Tracer("services/ConnectionService").Start(ctx, "Reject",
		trace.WithAttributes(
			attribute.String("user.id", actor),
			attribute.String("connection.id", connectionID),
		),
	)
	defer func() { s.finish(ctx, span, "reject", err) }()

	now := s.now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.load(ctx, tx, actor, connectionID, policy.Reject)
		if err != nil {
			return err
		}
		r, err := s.restrictions().Restrict(ctx, tx, c.SenderID, c.PostID)
		if err != nil {
			return err
		}
		if err := s.setStatus(ctx, tx, c, domain.StatusRejected, now); err != nil {
			return err
		}
		res = &RejectResult{Connection: c, RestrictedUntil: r.RestrictedUntil}
		return nil
	})
	if err != nil {
		return nil, transient(err)
	}

	observability.ObserveRestriction()
	logFor(ctx).Info().
		Str("connection_id", res.Connection.ID).
		Str("sender_id", res.Connection.SenderID).
		Str("post_id", res.Connection.PostID).
		Time("restricted_until", res.RestrictedUntil).
		Msg("connection rejected")
	return res, nil
}

// Cancel deletes a pending request, freeing the (sender, post) slot. Only
// the sender may cancel.
func (s *ConnectionService) Cancel(ctx context.Context, actor, connectionID string) (err error) {
	ctx, span := otel.Tracer("services/ConnectionService").Start(ctx, "Cancel",
		trace.WithAttributes(
			attribute.String("user.id", actor),
			attribute.String("connection.id", connectionID),
		),
	)
	defer func() { s.finish(ctx, span, "cancel", err) }()

	var cancelled *domain.Connection
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.load(ctx, tx, actor, connectionID, policy.Cancel)
		if err != nil {
			return err
		}
		if err := s.Repo.DeleteConnection(ctx, tx, c.ID, domain.StatusPending); err != nil {
			return s.staleOr(ctx, tx, c, err)
		}
		cancelled = c
		return nil
	})
	if err != nil {
		return transient(err)
	}

	logFor(ctx).Info().
		Str("connection_id", cancelled.ID).
		Str("sender_id", cancelled.SenderID).
		Str("post_id", cancelled.PostID).
		Msg("connection request cancelled")
	return nil
}

// setStatus applies a pending -> to transition on c in place.
func (s *ConnectionService) setStatus(ctx context.Context, tx *gorm.DB, c *domain.Connection, to domain.ConnectionStatus, now time.Time) error {
	if err := s.Repo.SetStatus(ctx, tx, c.ID, domain.StatusPending, to, now); err != nil {
		return s.staleOr(ctx, tx, c, err)
	}
	c.Status = to
	c.UpdatedAt = now
	return nil
}

// staleOr maps repository outcomes of a conditional write onto service kinds.
func (s *ConnectionService) staleOr(ctx context.Context, tx *gorm.DB, c *domain.Connection, err error) error {
	switch {
	case isNotFound(err):
		return &NotFoundError{Resource: "connection", ID: c.ID}
	case errors.Is(err, repo.ErrStaleStatus):
		fresh, ferr := s.Repo.FindConnection(ctx, tx, c.ID)
		if isNotFound(ferr) {
			return &NotFoundError{Resource: "connection", ID: c.ID}
		}
		if ferr == nil && fresh.Status.Terminal() {
			return &StateError{Current: fresh.Status}
		}
		return &StateError{Current: c.Status}
	}
	return err
}

// Pending lists requests awaiting userID's answer, newest first.
func (s *ConnectionService) Pending(ctx context.Context, userID string) ([]domain.Connection, error) {
	ctx, span := otel.Tracer("services/ConnectionService").Start(ctx, "Pending",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	out, err := s.Repo.ListPendingForReceiver(ctx, s.DB, userID)
	return out, transient(err)
}

// Accepted lists userID's accepted connections in either direction.
func (s *ConnectionService) Accepted(ctx context.Context, userID string) ([]domain.Connection, error) {
	ctx, span := otel.Tracer("services/ConnectionService").Start(ctx, "Accepted",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	out, err := s.Repo.ListAcceptedForUser(ctx, s.DB, userID)
	return out, transient(err)
}

// All returns every connection userID sent or received.
func (s *ConnectionService) All(ctx context.Context, userID string) (*Overview, error) {
	ctx, span := otel.Tracer("services/ConnectionService").Start(ctx, "All",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	sent, err := s.Repo.ListSent(ctx, s.DB, userID)
	if err != nil {
		return nil, transient(err)
	}
	received, err := s.Repo.ListReceived(ctx, s.DB, userID)
	if err != nil {
		return nil, transient(err)
	}
	return &Overview{Sent: sent, Received: received}, nil
}

// Restrictions lists userID's cooldowns still in force.
func (s *ConnectionService) Restrictions(ctx context.Context, userID string) ([]domain.ConnectionRestriction, error) {
	return s.restrictions().Active(ctx, userID)
}

// finish closes the span and records the transition metric.
func (s *ConnectionService) finish(ctx context.Context, span trace.Span, action string, err error) {
	defer span.End()
	switch kind := KindOf(err); kind {
	case "":
		observability.ObserveTransition(action, observability.OutcomeOK)
	case "internal", "transient":
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.ObserveTransition(action, observability.OutcomeError)
	default:
		span.SetAttributes(attribute.String("refusal", kind))
		observability.ObserveRefusal(action, kind)
		logFor(ctx).Debug().Str("action", action).Str("kind", kind).Err(err).Msg("connection action refused")
	}
}

// KindOf names the failure kind of err, "" for nil and "internal" for
// anything unclassified.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidOperation):
		return "invalid_operation"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrRestricted):
		return "restricted"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrTransient):
		return "transient"
	}
	return "internal"
}

func roleFor(a policy.Action) string {
	if a == policy.Cancel {
		return "sender"
	}
	return "receiver"
}

func pastTense(a policy.Action) string {
	switch a {
	case policy.Accept:
		return "accepted"
	case policy.Reject:
		return "rejected"
	case policy.Cancel:
		return "cancelled"
	}
	return string(a) + "ed"
}

// isNotFound treats repo-level not found sentinels as "not found".
func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// logFor returns the request-scoped logger when one is attached to ctx and
// the global logger otherwise.
func logFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
