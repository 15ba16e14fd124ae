package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/skillswap-connections/internal/domain"
)

// Directory answers user and listing lookups from the local users/posts
// tables. It satisfies services.Directory.
type Directory struct {
	DB *gorm.DB
}

// NewDirectory returns a Directory bound to db.
func NewDirectory(db *gorm.DB) *Directory { return &Directory{DB: db} }

// ListingOwner returns the owner of postID. ok is false when the post does
// not exist.
func (d *Directory) ListingOwner(ctx context.Context, postID string) (owner string, ok bool, err error) {
	p, err := GetPost(ctx, d.DB, postID)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return p.OwnerID, true, nil
}

// ListingIsActive reports whether postID exists and is open for requests.
func (d *Directory) ListingIsActive(ctx context.Context, postID string) (bool, error) {
	p, err := GetPost(ctx, d.DB, postID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.Active, nil
}

// UserExists reports whether userID is a known member.
func (d *Directory) UserExists(ctx context.Context, userID string) (bool, error) {
	var n int64
	err := d.DB.WithContext(ctx).Model(&domain.User{}).Where("id = ?", userID).Count(&n).Error
	return n > 0, err
}

// GetPost fetches a post by id, or ErrNotFound.
func GetPost(ctx context.Context, db *gorm.DB, id string) (*domain.Post, error) {
	var p domain.Post
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertUser inserts or renames a user. Used by the seeder.
func UpsertUser(ctx context.Context, db *gorm.DB, id, displayName string) (*domain.User, error) {
	now := time.Now().UTC()
	u := &domain.User{ID: id, DisplayName: displayName, CreatedAt: now, UpdatedAt: now}
	err := db.WithContext(ctx).
		Where(domain.User{ID: id}).
		Assign(domain.User{DisplayName: displayName, UpdatedAt: now}).
		FirstOrCreate(u).Error
	if err != nil {
		return nil, err
	}
	return u, nil
}

// UpsertPost inserts or updates a post owned by ownerID. Used by the seeder.
func UpsertPost(ctx context.Context, db *gorm.DB, id, ownerID, title string, active bool) (*domain.Post, error) {
	now := time.Now().UTC()
	p := &domain.Post{ID: id, OwnerID: ownerID, Title: title, Active: active, CreatedAt: now, UpdatedAt: now}
	err := db.WithContext(ctx).
		Where(domain.Post{ID: id}).
		Assign(map[string]any{"owner_id": ownerID, "title": title, "active": active, "updated_at": now}).
		FirstOrCreate(p).Error
	if err != nil {
		return nil, err
	}
	return p, nil
}
