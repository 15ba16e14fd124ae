package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockDirectory records calls to the underlying directory.
type mockDirectory struct{ mock.Mock }

func (m *mockDirectory) ListingOwner(ctx context.Context, postID string) (string, bool, error) {
	args := m.Called(ctx, postID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockDirectory) ListingIsActive(ctx context.Context, postID string) (bool, error) {
	args := m.Called(ctx, postID)
	return args.Bool(0), args.Error(1)
}

func (m *mockDirectory) UserExists(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

// memStore is an in-memory Store. failing makes every command error.
type memStore struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	failing bool
}

func newMemStore() *memStore {
	return &memStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

var errDown = errors.New("redis down")

func (s *memStore) Get(_ context.Context, key string) *redis.StringCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return redis.NewStringResult("", errDown)
	}
	v, ok := s.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (s *memStore) Set(_ context.Context, key string, value any, exp time.Duration) *redis.StatusCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return redis.NewStatusResult("", errDown)
	}
	s.data[key] = value.(string)
	s.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (s *memStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return redis.NewIntResult(0, errDown)
	}
	var n int64
	for _, k := range keys {
		if _, ok := s.data[k]; ok {
			delete(s.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestListingOwner_ReadThrough(t *testing.T) {
	next := &mockDirectory{}
	next.On("ListingOwner", mock.Anything, "10").Return("2", true, nil).Once()
	store := newMemStore()
	d := NewDirectory(next, store, 30*time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		owner, ok, err := d.ListingOwner(ctx, "10")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "2", owner)
	}
	next.AssertNumberOfCalls(t, "ListingOwner", 1)
	assert.Equal(t, 30*time.Second, store.ttls[ownerKey("10")])
}

func TestListingOwner_CachesMissingPost(t *testing.T) {
	next := &mockDirectory{}
	next.On("ListingOwner", mock.Anything, "ghost").Return("", false, nil).Once()
	d := NewDirectory(next, newMemStore(), 0)

	for i := 0; i < 2; i++ {
		owner, ok, err := d.ListingOwner(context.Background(), "ghost")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, owner)
	}
	next.AssertExpectations(t)
	assert.Equal(t, time.Minute, d.TTL)
}

func TestNegativeAnswers_UseShortTTL(t *testing.T) {
	next := &mockDirectory{}
	next.On("ListingOwner", mock.Anything, "ghost").Return("", false, nil).Once()
	next.On("ListingOwner", mock.Anything, "10").Return("2", true, nil).Once()
	next.On("UserExists", mock.Anything, "newcomer").Return(false, nil).Once()
	next.On("UserExists", mock.Anything, "2").Return(true, nil).Once()
	store := newMemStore()
	d := NewDirectory(next, store, 10*time.Minute)
	ctx := context.Background()

	_, _, err := d.ListingOwner(ctx, "ghost")
	require.NoError(t, err)
	_, _, err = d.ListingOwner(ctx, "10")
	require.NoError(t, err)
	_, err = d.UserExists(ctx, "newcomer")
	require.NoError(t, err)
	_, err = d.UserExists(ctx, "2")
	require.NoError(t, err)

	assert.Equal(t, defaultNegativeTTL, store.ttls[ownerKey("ghost")])
	assert.Equal(t, defaultNegativeTTL, store.ttls[userKey("newcomer")])
	assert.Equal(t, 10*time.Minute, store.ttls[ownerKey("10")])
	assert.Equal(t, 10*time.Minute, store.ttls[userKey("2")])

	// A TTL below the default negative cap bounds both.
	short := NewDirectory(next, store, time.Second)
	assert.Equal(t, time.Second, short.NegativeTTL)
}

func TestListingOwner_ErrorsAreNotCached(t *testing.T) {
	boom := errors.New("db gone")
	next := &mockDirectory{}
	next.On("ListingOwner", mock.Anything, "10").Return("", false, boom).Once()
	next.On("ListingOwner", mock.Anything, "10").Return("2", true, nil).Once()
	d := NewDirectory(next, newMemStore(), time.Minute)

	_, _, err := d.ListingOwner(context.Background(), "10")
	assert.ErrorIs(t, err, boom)

	owner, ok, err := d.ListingOwner(context.Background(), "10")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", owner)
}

func TestInvalidatePost(t *testing.T) {
	next := &mockDirectory{}
	next.On("ListingOwner", mock.Anything, "10").Return("2", true, nil).Once()
	next.On("ListingOwner", mock.Anything, "10").Return("3", true, nil).Once()
	d := NewDirectory(next, newMemStore(), time.Minute)
	ctx := context.Background()

	owner, _, _ := d.ListingOwner(ctx, "10")
	assert.Equal(t, "2", owner)
	d.InvalidatePost(ctx, "10")
	owner, _, _ = d.ListingOwner(ctx, "10")
	assert.Equal(t, "3", owner)
}

func TestUserExists_ReadThroughAndInvalidate(t *testing.T) {
	next := &mockDirectory{}
	next.On("UserExists", mock.Anything, "7").Return(false, nil).Once()
	next.On("UserExists", mock.Anything, "7").Return(true, nil).Once()
	d := NewDirectory(next, newMemStore(), time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := d.UserExists(ctx, "7")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	d.InvalidateUser(ctx, "7")
	ok, err := d.UserExists(ctx, "7")
	require.NoError(t, err)
	assert.True(t, ok)
	next.AssertExpectations(t)
}

func TestListingIsActive_PassesThrough(t *testing.T) {
	next := &mockDirectory{}
	next.On("ListingIsActive", mock.Anything, "10").Return(true, nil).Once()
	next.On("ListingIsActive", mock.Anything, "10").Return(false, nil).Once()
	d := NewDirectory(next, newMemStore(), time.Minute)

	a, _ := d.ListingIsActive(context.Background(), "10")
	b, _ := d.ListingIsActive(context.Background(), "10")
	assert.True(t, a)
	assert.False(t, b)
}

func TestStoreFailure_FallsBack(t *testing.T) {
	next := &mockDirectory{}
	next.On("ListingOwner", mock.Anything, "10").Return("2", true, nil).Twice()
	next.On("UserExists", mock.Anything, "2").Return(true, nil).Once()
	store := newMemStore()
	store.failing = true
	d := NewDirectory(next, store, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		owner, ok, err := d.ListingOwner(ctx, "10")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "2", owner)
	}
	ok, err := d.UserExists(ctx, "2")
	require.NoError(t, err)
	assert.True(t, ok)
	d.InvalidatePost(ctx, "10")
	next.AssertExpectations(t)
}

func TestNilStore_DisablesCaching(t *testing.T) {
	next := &mockDirectory{}
	next.On("UserExists", mock.Anything, "1").Return(true, nil).Twice()
	d := NewDirectory(next, nil, time.Minute)

	for i := 0; i < 2; i++ {
		ok, err := d.UserExists(context.Background(), "1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	next.AssertExpectations(t)
}

func TestUnreachableRedis(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	next := &mockDirectory{}
	next.On("ListingOwner", mock.Anything, "10").Return("2", true, nil)
	d := NewDirectory(next, rdb, time.Minute)

	owner, ok, err := d.ListingOwner(context.Background(), "10")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", owner)

	_, err = Connect(context.Background(), "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}
