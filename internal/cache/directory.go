package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/skillswap-connections/internal/services"
)

const keyPrefix = "connections:dir:"

// missing marks a cached negative lookup.
const missing = "\x00"

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// defaultNegativeTTL caps how long a missing post or unknown user is cached.
const defaultNegativeTTL = 5 * time.Second

// Directory decorates a services.Directory with Redis caching of post
// ownership and user existence. Activity is always read from Next since a
// post can be closed at any moment.
//
// Cached answers can lag the directory. A post that changes owner keeps its
// old owner for up to TTL, so a request sent in that window is addressed to
// the former owner. A post or user that did not exist is remembered for
// NegativeTTL only, so new registrations show up within seconds. Writers of
// the directory tables call InvalidatePost and InvalidateUser to drop the
// affected keys at once; cmd/seed does so after every run.
type Directory struct {
	Next  services.Directory
	Store Store
	// TTL applies to positive answers (an owner, an existing user).
	TTL time.Duration
	// NegativeTTL applies to "does not exist" answers.
	NegativeTTL time.Duration
}

var _ services.Directory = (*Directory)(nil)

// NewDirectory wraps next. A nil store disables caching. Negative answers
// live for the smaller of ttl and 5s.
func NewDirectory(next services.Directory, store Store, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Directory{Next: next, Store: store, TTL: ttl, NegativeTTL: min(ttl, defaultNegativeTTL)}
}

func ownerKey(postID string) string { return keyPrefix + "post_owner:" + postID }
func userKey(userID string) string  { return keyPrefix + "user:" + userID }

// ListingOwner serves the owner from cache, loading and storing it on a miss.
func (d *Directory) ListingOwner(ctx context.Context, postID string) (string, bool, error) {
	if v, hit := d.get(ctx, ownerKey(postID)); hit {
		if v == missing {
			return "", false, nil
		}
		return v, true, nil
	}

	owner, ok, err := d.Next.ListingOwner(ctx, postID)
	if err != nil {
		return "", false, err
	}
	if ok {
		d.set(ctx, ownerKey(postID), owner, d.TTL)
	} else {
		d.set(ctx, ownerKey(postID), missing, d.NegativeTTL)
	}
	return owner, ok, nil
}

// ListingIsActive is not cached.
func (d *Directory) ListingIsActive(ctx context.Context, postID string) (bool, error) {
	return d.Next.ListingIsActive(ctx, postID)
}

// UserExists serves membership from cache, loading and storing it on a miss.
func (d *Directory) UserExists(ctx context.Context, userID string) (bool, error) {
	if v, hit := d.get(ctx, userKey(userID)); hit {
		return v == "1", nil
	}
	exists, err := d.Next.UserExists(ctx, userID)
	if err != nil {
		return false, err
	}
	if exists {
		d.set(ctx, userKey(userID), "1", d.TTL)
	} else {
		d.set(ctx, userKey(userID), "0", d.NegativeTTL)
	}
	return exists, nil
}

// InvalidatePost drops the cached owner of postID.
func (d *Directory) InvalidatePost(ctx context.Context, postID string) {
	d.del(ctx, ownerKey(postID))
}

// InvalidateUser drops the cached existence of userID.
func (d *Directory) InvalidateUser(ctx context.Context, userID string) {
	d.del(ctx, userKey(userID))
}

func (d *Directory) get(ctx context.Context, key string) (string, bool) {
	if d.Store == nil {
		return "", false
	}
	v, err := d.Store.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		logFor(ctx).Warn().Err(err).Str("key", key).Msg("directory cache read failed")
		return "", false
	}
	return v, true
}

func (d *Directory) set(ctx context.Context, key, val string, ttl time.Duration) {
	if d.Store == nil {
		return
	}
	if ttl <= 0 {
		ttl = d.TTL
	}
	if err := d.Store.Set(ctx, key, val, ttl).Err(); err != nil {
		logFor(ctx).Warn().Err(err).Str("key", key).Msg("directory cache write failed")
	}
}

func (d *Directory) del(ctx context.Context, key string) {
	if d.Store == nil {
		return
	}
	if err := d.Store.Del(ctx, key).Err(); err != nil {
		logFor(ctx).Warn().Err(err).Str("key", key).Msg("directory cache invalidation failed")
	}
}

func logFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
