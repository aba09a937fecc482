package user_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"sockchat/internal/app/user"
)

func newService(t *testing.T) (*user.Service, *user.MemoryStore) {
	t.Helper()
	store := user.NewMemoryStore()
	return user.NewService(store, user.WithCost(bcrypt.MinCost)), store
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Register(ctx, "alice", "correct horse")
	require.NoError(t, err)

	t.Run("registered pair returns identity", func(t *testing.T) {
		id, err := svc.Verify(ctx, "alice", "correct horse")
		require.NoError(t, err)
		assert.Equal(t, user.Identity{Username: "alice"}, id)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Verify(ctx, "alice", "battery staple")
		assert.True(t, user.IsAuthFailure(err, user.ReasonBadPassword), err)
	})

	t.Run("unknown username", func(t *testing.T) {
		_, err := svc.Verify(ctx, "mallory", "correct horse")
		assert.True(t, user.IsAuthFailure(err, user.ReasonNotFound), err)
	})

	t.Run("username match is case sensitive", func(t *testing.T) {
		_, err := svc.Verify(ctx, "Alice", "correct horse")
		assert.True(t, user.IsAuthFailure(err, user.ReasonNotFound), err)
	})
}

func TestVerifyStoreFailureIsNotAuthFailure(t *testing.T) {
	boom := errors.New("connection refused")
	svc := user.NewService(failingStore{err: boom})

	_, err := svc.Verify(context.Background(), "alice", "pw")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var failure *user.AuthFailure
	assert.False(t, errors.As(err, &failure))
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("stores a bcrypt hash, never the password", func(t *testing.T) {
		svc, store := newService(t)

		_, err := svc.Register(ctx, "bob_42", "hunter2")
		require.NoError(t, err)

		u, err := store.FindByUsername(ctx, "bob_42")
		require.NoError(t, err)
		assert.NotEqual(t, "hunter2", u.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("hunter2")))
	})

	t.Run("duplicate username", func(t *testing.T) {
		svc, _ := newService(t)

		_, err := svc.Register(ctx, "carol", "pw")
		require.NoError(t, err)

		_, err = svc.Register(ctx, "carol", "other")
		assert.ErrorIs(t, err, user.ErrUserExists)
	})

	t.Run("invalid input", func(t *testing.T) {
		svc, _ := newService(t)

		_, err := svc.Register(ctx, "no spaces allowed", "pw")
		assert.ErrorIs(t, err, user.ErrInvalidUsername)

		_, err = svc.Register(ctx, "ab", "pw")
		assert.ErrorIs(t, err, user.ErrInvalidUsername)

		_, err = svc.Register(ctx, "dave", "")
		assert.ErrorIs(t, err, user.ErrInvalidPassword)

		_, err = svc.Register(ctx, "dave", strings.Repeat("x", user.MaxPasswordBytes+1))
		assert.ErrorIs(t, err, user.ErrInvalidPassword)
	})
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Register(ctx, "erin", "pw")
	require.NoError(t, err)

	id, err := svc.Lookup(ctx, "erin")
	require.NoError(t, err)
	assert.Equal(t, "erin", id.Username)

	_, err = svc.Lookup(ctx, "frank")
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}

type failingStore struct {
	err error
}

func (s failingStore) FindByUsername(context.Context, string) (user.User, error) {
	return user.User{}, s.err
}

func (s failingStore) Create(context.Context, user.User) error {
	return s.err
}
