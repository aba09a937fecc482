package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"sockchat/internal/app/user"
	"sockchat/internal/pkg/auth/cookie"
)

// ErrAnonymousSession rejects a live session that has no user attached.
var ErrAnonymousSession = errors.New("session: anonymous")

// RejectReason classifies a failed handshake.
type RejectReason int

const (
	ReasonUnauthenticated RejectReason = iota + 1
	ReasonStoreUnavailable
)

func (r RejectReason) String() string {
	switch r {
	case ReasonUnauthenticated:
		return "unauthenticated"
	case ReasonStoreUnavailable:
		return "store_unavailable"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// HTTPStatus is the status the upgrade endpoint answers a rejection with.
func (r RejectReason) HTTPStatus() int {
	if r == ReasonStoreUnavailable {
		return http.StatusServiceUnavailable
	}
	return http.StatusUnauthorized
}

// Decision is the outcome of Authorize: either Accepted or Rejected.
type Decision interface {
	isDecision()
}

// Accepted carries the identity bound to the connection for its whole lifetime.
type Accepted struct {
	Identity user.Identity
}

// Rejected tells the transport to refuse the upgrade.
type Rejected struct {
	Reason RejectReason
	Err    error
}

func (Accepted) isDecision() {}
func (Rejected) isDecision() {}

// Authorizer checks WebSocket upgrade requests against the session store.
type Authorizer struct {
	store Store
	codec *cookie.Codec
	users IdentityLoader
}

// NewAuthorizer returns an Authorizer. store and codec must be the ones the Manager uses.
func NewAuthorizer(store Store, codec *cookie.Codec, users IdentityLoader) *Authorizer {
	return &Authorizer{store: store, codec: codec, users: users}
}

// Authorize reads the session cookie from the raw Cookie header of r and resolves it.
// It never creates or touches a session.
func (a *Authorizer) Authorize(r *http.Request) Decision {
	raw := strings.Join(r.Header.Values("Cookie"), "; ")

	sid, err := a.codec.FromHeader(raw)
	if err != nil {
		return Rejected{Reason: ReasonUnauthenticated, Err: err}
	}

	return a.resolve(r.Context(), sid)
}

func (a *Authorizer) resolve(ctx context.Context, sid string) Decision {
	rec, err := a.store.Get(ctx, sid)
	if errors.Is(err, ErrNotFound) {
		return Rejected{Reason: ReasonUnauthenticated, Err: err}
	}
	if err != nil {
		return Rejected{Reason: ReasonStoreUnavailable, Err: err}
	}

	if rec.IsAnonymous() {
		return Rejected{Reason: ReasonUnauthenticated, Err: ErrAnonymousSession}
	}

	id, err := a.users.Lookup(ctx, rec.Username)
	if errors.Is(err, user.ErrUserNotFound) {
		return Rejected{Reason: ReasonUnauthenticated, Err: err}
	}
	if err != nil {
		return Rejected{Reason: ReasonStoreUnavailable, Err: err}
	}

	return Accepted{Identity: id}
}
