package user_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sockchat/internal/app/db"
	"sockchat/internal/app/user"
)

// testStoreContract runs the behavior every user.Store must share.
func testStoreContract(t *testing.T, store user.Store) {
	t.Helper()
	ctx := context.Background()
	name := "u_" + uuid.NewString()[:8]

	_, err := store.FindByUsername(ctx, name)
	require.ErrorIs(t, err, user.ErrUserNotFound)

	require.NoError(t, store.Create(ctx, user.User{Username: name, PasswordHash: "hash"}))

	got, err := store.FindByUsername(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, user.User{Username: name, PasswordHash: "hash"}, got)

	err = store.Create(ctx, user.User{Username: name, PasswordHash: "other"})
	assert.ErrorIs(t, err, user.ErrUserExists)
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, user.NewMemoryStore())
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	testStoreContract(t, user.NewPostgresStore(pool))
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URL")
	if uri == "" {
		t.Skip("TEST_MONGO_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := db.ConnectMongo(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	store, err := user.NewMongoStore(ctx, client.Database("sockchat_test"))
	require.NoError(t, err)

	testStoreContract(t, store)
}
