package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/skillswap-connections/internal/domain"
)

// FindActiveRestriction returns the restriction on (senderID, postID) that is
// still in force at now, or ErrNotFound. Expiry is strict: a row whose
// restricted_until equals now is not active.
func FindActiveRestriction(ctx context.Context, db *gorm.DB, senderID, postID string, now time.Time) (*domain.ConnectionRestriction, error) {
	var r domain.ConnectionRestriction
	err := db.WithContext(ctx).
		Where("sender_id = ? AND post_id = ? AND restricted_until > ?", senderID, postID, now).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpsertRestriction creates or overwrites the restriction for
// (senderID, postID) with a single INSERT ... ON CONFLICT DO UPDATE and
// returns the stored row.
func UpsertRestriction(ctx context.Context, db *gorm.DB, senderID, postID string, until, now time.Time) (*domain.ConnectionRestriction, error) {
	r := &domain.ConnectionRestriction{
		ID:              uuid.NewString(),
		SenderID:        senderID,
		PostID:          postID,
		RestrictedUntil: until,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sender_id"}, {Name: "post_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"restricted_until", "updated_at"}),
		}).
		Create(r).Error
	if err != nil {
		return nil, err
	}

	// On conflict the generated id was discarded; read back the stored row.
	var stored domain.ConnectionRestriction
	if err := db.WithContext(ctx).
		Where("sender_id = ? AND post_id = ?", senderID, postID).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// ListActiveRestrictions returns restrictions on senderID still in force at
// now, soonest expiry first.
func ListActiveRestrictions(ctx context.Context, db *gorm.DB, senderID string, now time.Time) ([]domain.ConnectionRestriction, error) {
	out := []domain.ConnectionRestriction{}
	err := db.WithContext(ctx).
		Where("sender_id = ? AND restricted_until > ?", senderID, now).
		Order("restricted_until asc").
		Order("post_id").
		Find(&out).Error
	return out, err
}

// PurgeExpiredRestrictions deletes senderID's restrictions that are no longer
// in force at now and returns how many rows went away.
func PurgeExpiredRestrictions(ctx context.Context, db *gorm.DB, senderID string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("sender_id = ? AND restricted_until <= ?", senderID, now).
		Delete(&domain.ConnectionRestriction{})
	return res.RowsAffected, res.Error
}
