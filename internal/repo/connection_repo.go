// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Connection
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business rules, only persistence and query composition. The
// lifecycle rules live in services.ConnectionService; the unique indexes
// created by AutoMigrate are the final arbiter when two writers race.
//
// Error semantics:
//   - Missing rows yield gorm.ErrRecordNotFound (exported as ErrNotFound).
//   - A conditional status update or delete that matches no row yields
//     ErrStaleStatus: the row exists but left the expected status.
//   - Other DB errors (constraint violations, busy database) are returned raw.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/skillswap-connections/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrStaleStatus is returned by conditional writes when the connection is no
// longer in the status the caller observed.
var ErrStaleStatus = errors.New("connection status changed")

// CreateConnection inserts c. A missing ID is filled with a UUID and missing
// timestamps with the current UTC time.
func CreateConnection(ctx context.Context, db *gorm.DB, c *domain.Connection) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = domain.StatusPending
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	return db.WithContext(ctx).Create(c).Error
}

// GetConnection fetches a connection by id, or ErrNotFound.
func GetConnection(ctx context.Context, db *gorm.DB, id string) (*domain.Connection, error) {
	var c domain.Connection
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindConnectionForPair returns the connection senderID holds on postID, in
// any status, or ErrNotFound.
func FindConnectionForPair(ctx context.Context, db *gorm.DB, senderID, postID string) (*domain.Connection, error) {
	var c domain.Connection
	err := db.WithContext(ctx).
		Where("sender_id = ? AND post_id = ?", senderID, postID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindAcceptedBetween returns an accepted connection between a and b in either
// direction, on any post, or ErrNotFound.
func FindAcceptedBetween(ctx context.Context, db *gorm.DB, a, b string) (*domain.Connection, error) {
	var c domain.Connection
	err := db.WithContext(ctx).
		Where("status = ?", domain.StatusAccepted).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindPendingBetween returns the pending connection from senderID to
// receiverID, on any post, or ErrNotFound. Direction matters.
func FindPendingBetween(ctx context.Context, db *gorm.DB, senderID, receiverID string) (*domain.Connection, error) {
	var c domain.Connection
	err := db.WithContext(ctx).
		Where("status = ? AND sender_id = ? AND receiver_id = ?", domain.StatusPending, senderID, receiverID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SetStatus moves connection id from one status to another, touching
// updated_at. The write only applies while the row is still in from;
// otherwise ErrStaleStatus (or ErrNotFound when the row is gone).
func SetStatus(ctx context.Context, db *gorm.DB, id string, from, to domain.ConnectionStatus, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Connection{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return missingOrStale(ctx, db, id)
	}
	return nil
}

// DeleteConnection hard-deletes connection id while it is still in status.
func DeleteConnection(ctx context.Context, db *gorm.DB, id string, status domain.ConnectionStatus) error {
	res := db.WithContext(ctx).
		Where("id = ? AND status = ?", id, status).
		Delete(&domain.Connection{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return missingOrStale(ctx, db, id)
	}
	return nil
}

func missingOrStale(ctx context.Context, db *gorm.DB, id string) error {
	var n int64
	if err := db.WithContext(ctx).Model(&domain.Connection{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrStaleStatus
}

// ListPendingForReceiver returns pending requests addressed to userID,
// newest first.
func ListPendingForReceiver(ctx context.Context, db *gorm.DB, userID string) ([]domain.Connection, error) {
	out := []domain.Connection{}
	err := db.WithContext(ctx).
		Where("receiver_id = ? AND status = ?", userID, domain.StatusPending).
		Order("created_at desc").
		Order("id").
		Find(&out).Error
	return out, err
}

// ListAcceptedForUser returns accepted connections where userID is either
// party, most recently accepted first.
func ListAcceptedForUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Connection, error) {
	out := []domain.Connection{}
	err := db.WithContext(ctx).
		Where("status = ?", domain.StatusAccepted).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("updated_at desc").
		Order("id").
		Find(&out).Error
	return out, err
}

// ListSent returns every connection userID initiated, newest first.
func ListSent(ctx context.Context, db *gorm.DB, userID string) ([]domain.Connection, error) {
	out := []domain.Connection{}
	err := db.WithContext(ctx).
		Where("sender_id = ?", userID).
		Order("created_at desc").
		Order("id").
		Find(&out).Error
	return out, err
}

// ListReceived returns every connection addressed to userID, newest first.
func ListReceived(ctx context.Context, db *gorm.DB, userID string) ([]domain.Connection, error) {
	out := []domain.Connection{}
	err := db.WithContext(ctx).
		Where("receiver_id = ?", userID).
		Order("created_at desc").
		Order("id").
		Find(&out).Error
	return out, err
}

// ConnectionState is the slice of a connection the messaging gate needs.
type ConnectionState struct {
	Status     domain.ConnectionStatus
	SenderID   string
	ReceiverID string
}

// StatusOf returns the status and parties of connection id, or ErrNotFound.
func StatusOf(ctx context.Context, db *gorm.DB, id string) (*ConnectionState, error) {
	var st ConnectionState
	res := db.WithContext(ctx).
		Model(&domain.Connection{}).
		Select("status", "sender_id", "receiver_id").
		Where("id = ?", id).
		Limit(1).
		Scan(&st)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &st, nil
}
