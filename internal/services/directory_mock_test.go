package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/skillswap-connections/internal/repo"
)

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

func newMockedSvc(t *testing.T, dir *mockDirectory) *ConnectionService {
	t.Helper()
	db := newTestDB(t)
	clk := newClock()
	s := NewConnectionService(db, repo.Store{}, dir, DefaultCooldown)
	s.Now = clk.Now
	s.Cooldowns.Now = clk.Now
	return s
}

func TestSend_OwnerMissingFromDirectory(t *testing.T) {
	dir := &mockDirectory{}
	dir.On("ListingOwner", mock.Anything, "p1").Return("ghost", true, nil)
	dir.On("UserExists", mock.Anything, "ghost").Return(false, nil)
	svc := newMockedSvc(t, dir)

	_, err := svc.Send(context.Background(), alice, "p1", nil)
	require.ErrorIs(t, err, ErrNotFound)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "ghost", nf.ID)

	dir.AssertNotCalled(t, "ListingIsActive", mock.Anything, mock.Anything)
	dir.AssertExpectations(t)
}

func TestSend_DirectoryErrorsPropagate(t *testing.T) {
	boom := errors.New("directory down")

	dir := &mockDirectory{}
	dir.On("ListingOwner", mock.Anything, "p1").Return("", false, boom)
	svc := newMockedSvc(t, dir)
	_, err := svc.Send(context.Background(), alice, "p1", nil)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "internal", KindOf(err))

	dir2 := &mockDirectory{}
	dir2.On("ListingOwner", mock.Anything, "p1").Return(bob, true, nil)
	dir2.On("UserExists", mock.Anything, bob).Return(true, nil)
	dir2.On("ListingIsActive", mock.Anything, "p1").Return(false, errors.New("database is locked"))
	svc2 := newMockedSvc(t, dir2)
	_, err = svc2.Send(context.Background(), alice, "p1", nil)
	require.ErrorIs(t, err, ErrTransient)
	dir2.AssertExpectations(t)
}

func TestSend_ValidatesMessageBeforeDirectory(t *testing.T) {
	dir := &mockDirectory{}
	svc := newMockedSvc(t, dir)
	svc.MaxMessageRunes = 3

	_, err := svc.Send(context.Background(), alice, "p1", strPtr("toolong"))
	require.ErrorIs(t, err, ErrInvalidInput)
	dir.AssertNotCalled(t, "ListingOwner", mock.Anything, mock.Anything)
}
