package chat

import "context"

// Counter holds the presence count. Add applies delta and returns the new value, never below zero.
type Counter interface {
	Add(ctx context.Context, delta int64) (int64, error)
}

// Publisher forwards locally originated frames to other instances.
type Publisher interface {
	Publish(ctx context.Context, frame []byte) error
}

// localCounter is only ever touched by the hub goroutine.
type localCounter struct {
	n int64
}

func (c *localCounter) Add(_ context.Context, delta int64) (int64, error) {
	c.n = max(c.n+delta, 0)
	return c.n, nil
}
