// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/skillswap-connections/internal/domain"
)

// ConnectionsStats returns the number of connections userID is a party to and
// the greatest UpdatedAt among them. When there are none, count is 0 and
// maxUpdatedAt is nil.
func ConnectionsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	scope := func() *gorm.DB {
		return db.WithContext(ctx).Model(&domain.Connection{}).
			Where("sender_id = ? OR receiver_id = ?", userID, userID)
	}

	if err = scope().Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = scope().Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// MessagesStats returns the number of messages on connectionID and the
// greatest UpdatedAt among them.
func MessagesStats(ctx context.Context, db *gorm.DB, connectionID string) (count int64, maxUpdatedAt *time.Time, err error) {
	scope := func() *gorm.DB {
		return db.WithContext(ctx).Model(&domain.Message{}).Where("connection_id = ?", connectionID)
	}

	if err = scope().Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		UpdatedAt time.Time
	}
	if err = scope().Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
