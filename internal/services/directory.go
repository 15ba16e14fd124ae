package services

import "context"

// Directory is the read-only view of users and listings the lifecycle needs.
// The SQLite-backed implementation lives in repo; cache.Directory decorates
// any implementation with a Redis read-through layer.
type Directory interface {
	// ListingOwner returns the owner of postID; ok is false when the post
	// does not exist.
	ListingOwner(ctx context.Context, postID string) (owner string, ok bool, err error)

	// ListingIsActive reports whether postID accepts new requests.
	ListingIsActive(ctx context.Context, postID string) (bool, error)

	// UserExists reports whether userID is a known member.
	UserExists(ctx context.Context, userID string) (bool, error)
}
