package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/skillswap-connections/internal/domain"
)

// Store exposes the connection and restriction functions of this package as
// methods, satisfying services.ConnectionRepo. It holds no state; every call
// runs on the handle it is given.
type Store struct{}

func (Store) FindConnection(ctx context.Context, db *gorm.DB, id string) (*domain.Connection, error) {
	return GetConnection(ctx, db, id)
}

func (Store) FindConnectionForPair(ctx context.Context, db *gorm.DB, senderID, postID string) (*domain.Connection, error) {
	return FindConnectionForPair(ctx, db, senderID, postID)
}

func (Store) FindAcceptedBetween(ctx context.Context, db *gorm.DB, a, b string) (*domain.Connection, error) {
	return FindAcceptedBetween(ctx, db, a, b)
}

func (Store) FindPendingBetween(ctx context.Context, db *gorm.DB, senderID, receiverID string) (*domain.Connection, error) {
	return FindPendingBetween(ctx, db, senderID, receiverID)
}

func (Store) CreateConnection(ctx context.Context, db *gorm.DB, c *domain.Connection) error {
	return CreateConnection(ctx, db, c)
}

func (Store) SetStatus(ctx context.Context, db *gorm.DB, id string, from, to domain.ConnectionStatus, now time.Time) error {
	return SetStatus(ctx, db, id, from, to, now)
}

func (Store) DeleteConnection(ctx context.Context, db *gorm.DB, id string, status domain.ConnectionStatus) error {
	return DeleteConnection(ctx, db, id, status)
}

func (Store) ListPendingForReceiver(ctx context.Context, db *gorm.DB, userID string) ([]domain.Connection, error) {
	return ListPendingForReceiver(ctx, db, userID)
}

func (Store) ListAcceptedForUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Connection, error) {
	return ListAcceptedForUser(ctx, db, userID)
}

func (Store) ListSent(ctx context.Context, db *gorm.DB, userID string) ([]domain.Connection, error) {
	return ListSent(ctx, db, userID)
}

func (Store) ListReceived(ctx context.Context, db *gorm.DB, userID string) ([]domain.Connection, error) {
	return ListReceived(ctx, db, userID)
}

func (Store) FindActiveRestriction(ctx context.Context, db *gorm.DB, senderID, postID string, now time.Time) (*domain.ConnectionRestriction, error) {
	return FindActiveRestriction(ctx, db, senderID, postID, now)
}

func (Store) UpsertRestriction(ctx context.Context, db *gorm.DB, senderID, postID string, until, now time.Time) (*domain.ConnectionRestriction, error) {
	return UpsertRestriction(ctx, db, senderID, postID, until, now)
}

func (Store) ListActiveRestrictions(ctx context.Context, db *gorm.DB, senderID string, now time.Time) ([]domain.ConnectionRestriction, error) {
	return ListActiveRestrictions(ctx, db, senderID, now)
}

func (Store) PurgeExpiredRestrictions(ctx context.Context, db *gorm.DB, senderID string, now time.Time) (int64, error) {
	return PurgeExpiredRestrictions(ctx, db, senderID, now)
}
