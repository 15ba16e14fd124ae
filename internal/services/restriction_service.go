package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/skillswap-connections/internal/domain"
)

// DefaultCooldown is how long a rejection blocks the same sender from
// requesting the same post again.
const DefaultCooldown = 24 * time.Hour

// RestrictionRepo is the persistence contract for cooldown restrictions.
type RestrictionRepo interface {
	FindActiveRestriction(ctx context.Context, db *gorm.DB, senderID, postID string, now time.Time) (*domain.ConnectionRestriction, error)
	UpsertRestriction(ctx context.Context, db *gorm.DB, senderID, postID string, until, now time.Time) (*domain.ConnectionRestriction, error)
	ListActiveRestrictions(ctx context.Context, db *gorm.DB, senderID string, now time.Time) ([]domain.ConnectionRestriction, error)
	PurgeExpiredRestrictions(ctx context.Context, db *gorm.DB, senderID string, now time.Time) (int64, error)
}

// RestrictionService evaluates and writes per-(sender, post) cooldowns.
// Expiry is lazy: a restriction is active iff restricted_until is strictly
// after the current clock reading.
type RestrictionService struct {
	DB       *gorm.DB
	Repo     RestrictionRepo
	Now      func() time.Time
	Cooldown time.Duration
}

// NewRestrictionService returns a service using the wall clock and cooldown
// (DefaultCooldown when cooldown <= 0).
func NewRestrictionService(db *gorm.DB, r RestrictionRepo, cooldown time.Duration) *RestrictionService {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &RestrictionService{DB: db, Repo: r, Now: time.Now, Cooldown: cooldown}
}

func (s *RestrictionService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *RestrictionService) handle(db *gorm.DB) *gorm.DB {
	if db != nil {
		return db
	}
	return s.DB
}

// IsRestricted reports whether senderID is currently blocked from requesting
// postID and, if so, until when. db may be a transaction; nil uses s.DB.
func (s *RestrictionService) IsRestricted(ctx context.Context, db *gorm.DB, senderID, postID string) (bool, time.Time, error) {
	now := s.now()
	r, err := s.Repo.FindActiveRestriction(ctx, s.handle(db), senderID, postID, now)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, time.Time{}, nil
	}
	if err != nil {
		return false, time.Time{}, transient(err)
	}
	if !r.ActiveAt(now) {
		return false, time.Time{}, nil
	}
	return true, r.RestrictedUntil, nil
}

// Upsert creates or overwrites the restriction on (senderID, postID).
func (s *RestrictionService) Upsert(ctx context.Context, db *gorm.DB, senderID, postID string, until time.Time) (*domain.ConnectionRestriction, error) {
	r, err := s.Repo.UpsertRestriction(ctx, s.handle(db), senderID, postID, until.UTC(), s.now())
	return r, transient(err)
}

// Restrict starts a fresh cooldown on (senderID, postID) from now and drops
// senderID's expired rows on the way.
func (s *RestrictionService) Restrict(ctx context.Context, db *gorm.DB, senderID, postID string) (*domain.ConnectionRestriction, error) {
	now := s.now()
	if _, err := s.Repo.PurgeExpiredRestrictions(ctx, s.handle(db), senderID, now); err != nil {
		return nil, transient(err)
	}
	return s.Upsert(ctx, db, senderID, postID, now.Add(s.Cooldown))
}

// Active lists userID's restrictions still in force, soonest expiry first.
func (s *RestrictionService) Active(ctx context.Context, userID string) ([]domain.ConnectionRestriction, error) {
	ctx, span := otel.Tracer("services/RestrictionService").Start(ctx, "Active",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	out, err := s.Repo.ListActiveRestrictions(ctx, s.DB, userID, s.now())
	return out, transient(err)
}
