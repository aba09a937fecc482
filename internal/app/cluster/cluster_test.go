package cluster

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTarget collects frames forwarded from the bridge.
type recordingTarget struct {
	mu     sync.Mutex
	frames []string
}

func (r *recordingTarget) DeliverRemote(frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, string(frame))
}

func (r *recordingTarget) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.frames...)
}

func newClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestBridgeRelaysBetweenInstances(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)

	targetA, targetB := &recordingTarget{}, &recordingTarget{}
	a := NewRedisBridge(client, DefaultPrefix, targetA)
	b := NewRedisBridge(client, DefaultPrefix, targetB)
	require.NotEqual(t, a.InstanceID(), b.InstanceID())

	require.NoError(t, a.Start(ctx))
	t.Cleanup(a.Stop)
	require.NoError(t, b.Start(ctx))
	t.Cleanup(b.Stop)

	frame := `{"event":"chat message","data":{"username":"alice","message":"hi"}}`
	require.NoError(t, a.Publish(ctx, []byte(frame)))

	assert.Eventually(t, func() bool { return len(targetB.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.JSONEq(t, frame, targetB.snapshot()[0])

	// Give A's own listener a chance to see (and skip) its frame.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, targetA.snapshot(), "an instance must not receive its own frames")
}

func TestBridgePublishBeforeStart(t *testing.T) {
	b := NewRedisBridge(newClient(t), DefaultPrefix, &recordingTarget{})
	assert.False(t, b.Available())
	assert.ErrorIs(t, b.Publish(context.Background(), []byte(`{}`)), ErrBridgeNotStarted)
}

func TestBridgeStop(t *testing.T) {
	b := NewRedisBridge(newClient(t), DefaultPrefix, &recordingTarget{})
	require.NoError(t, b.Start(context.Background()))
	assert.True(t, b.Available())

	b.Stop()
	assert.False(t, b.Available())
	b.Stop()
}

func TestBridgeIgnoresGarbage(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)
	target := &recordingTarget{}

	b := NewRedisBridge(client, DefaultPrefix, target)
	require.NoError(t, b.Start(ctx))
	t.Cleanup(b.Stop)

	require.NoError(t, client.Publish(ctx, DefaultPrefix+"broadcast", "not json").Err())
	require.NoError(t, client.Publish(ctx, DefaultPrefix+"broadcast", `{"instance_id":"peer","frame":{"event":"user"}}`).Err())

	assert.Eventually(t, func() bool { return len(target.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.JSONEq(t, `{"event":"user"}`, target.snapshot()[0])
}

func TestRedisCounter(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)

	a := NewRedisCounter(client, DefaultPrefix)
	b := NewRedisCounter(client, DefaultPrefix)

	v, err := a.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	n, err := a.Add(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = b.Add(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "instances share one count")

	n, err = a.Add(ctx, -5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "count never goes negative")

	v, err = b.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}
