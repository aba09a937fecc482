/*
Package session keeps server-side session records and binds them to the signed session cookie.

The same Store and cookie.Codec are injected into the HTTP Manager (login, logout, per-request
resolution) and into the WebSocket Authorizer, so a connection upgrade is authenticated by
exactly the state the web login produced.
*/
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store.Get and Store.Touch for unknown or expired sessions.
var ErrNotFound = errors.New("session: not found")

// Record is the server-side state of one session. An empty Username means anonymous.
type Record struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IsAnonymous reports whether no user is attached to the record.
func (r Record) IsAnonymous() bool {
	return r.Username == ""
}

// IsExpired reports whether the record is past its expiry at now.
func (r Record) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Store persists session records keyed by id. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns ErrNotFound when id is unknown or expired.
	Get(ctx context.Context, id string) (Record, error)

	// Set creates or replaces the record, expiring it at rec.ExpiresAt.
	Set(ctx context.Context, rec Record) error

	// Touch moves the expiry of an existing record. Returns ErrNotFound if there is none.
	Touch(ctx context.Context, id string, expiresAt time.Time) error

	// Destroy removes the record. Destroying an unknown id is not an error.
	Destroy(ctx context.Context, id string) error
}

// Pruner is implemented by stores whose backend does not expire records on its own.
type Pruner interface {
	Prune(ctx context.Context, now time.Time) (int64, error)
}
