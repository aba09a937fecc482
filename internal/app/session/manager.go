package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"sockchat/internal/app/user"
	"sockchat/internal/pkg/auth/cookie"
	"sockchat/internal/pkg/logx"
	"sockchat/internal/pkg/randx"
)

// ErrNoSession is returned by Login and Logout outside of Manager.Middleware.
var ErrNoSession = errors.New("session: request has no session")

// IdentityLoader re-loads the user a session points at.
type IdentityLoader interface {
	Lookup(ctx context.Context, username string) (user.Identity, error)
}

type ctxKey struct{}

// state is what Middleware attaches to the request context. Login and Logout mutate it so
// the rest of the request sees the change.
type state struct {
	record   Record
	identity *user.Identity
}

// Manager resolves the session cookie on every request and performs login and logout.
type Manager struct {
	store Store
	codec *cookie.Codec
	users IdentityLoader
	ttl   time.Duration
	now   func() time.Time
	log   zerolog.Logger
}

// NewManager wires a Manager. store and codec must be the same values handed to the Authorizer.
func NewManager(store Store, codec *cookie.Codec, users IdentityLoader, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		codec: codec,
		users: users,
		ttl:   ttl,
		now:   time.Now,
		log:   logx.Component("session"),
	}
}

// Middleware loads or creates the session for each request. Unknown, forged or expired
// cookies get a fresh anonymous session and a new cookie; live sessions get their expiry
// pushed forward.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st, err := m.resolve(w, r)
		if err != nil {
			m.log.Error().Err(err).Str("path", r.URL.Path).Msg("session resolution failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKey{}, st)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Manager) resolve(w http.ResponseWriter, r *http.Request) (*state, error) {
	ctx := r.Context()
	now := m.now()

	rec, err := m.load(ctx, r, now)
	if errors.Is(err, ErrNotFound) {
		rec, err = m.create(ctx, w, now)
	}
	if err != nil {
		return nil, err
	}

	st := &state{record: rec}
	if rec.IsAnonymous() {
		return st, nil
	}

	id, err := m.users.Lookup(ctx, rec.Username)
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		m.log.Warn().Str("username", rec.Username).Msg("session points at a deleted user, treating as anonymous")
		st.record.Username = ""
	case err != nil:
		return nil, fmt.Errorf("deserialize user: %w", err)
	default:
		st.identity = &id
	}

	return st, nil
}

// load returns ErrNotFound for every reason the cookie cannot name a live session.
func (m *Manager) load(ctx context.Context, r *http.Request, now time.Time) (Record, error) {
	sid, err := m.codec.FromRequest(r)
	if err != nil || !randx.IsValidSessionID(sid) {
		return Record{}, ErrNotFound
	}

	rec, err := m.store.Get(ctx, sid)
	if err != nil {
		return Record{}, err
	}

	expiresAt := now.Add(m.ttl)
	if err := m.store.Touch(ctx, sid, expiresAt); err != nil {
		return Record{}, err
	}
	rec.ExpiresAt = expiresAt

	return rec, nil
}

func (m *Manager) create(ctx context.Context, w http.ResponseWriter, now time.Time) (Record, error) {
	sid, err := randx.SessionID()
	if err != nil {
		return Record{}, err
	}

	rec := Record{ID: sid, CreatedAt: now, ExpiresAt: now.Add(m.ttl)}
	if err := m.store.Set(ctx, rec); err != nil {
		return Record{}, err
	}

	if err := m.codec.Write(w, sid); err != nil {
		return Record{}, err
	}

	return rec, nil
}

// Login attaches identity to the current session. The session id is kept, so the cookie the
// browser already holds is the one that authorizes the WebSocket.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, identity user.Identity) error {
	st, ok := r.Context().Value(ctxKey{}).(*state)
	if !ok {
		return ErrNoSession
	}

	rec := st.record
	rec.Username = identity.Username
	rec.ExpiresAt = m.now().Add(m.ttl)

	if err := m.store.Set(r.Context(), rec); err != nil {
		return err
	}
	if err := m.codec.Write(w, rec.ID); err != nil {
		return err
	}

	st.record = rec
	st.identity = &identity

	m.log.Info().Str("username", identity.Username).Msg("user logged in")
	return nil
}

// Logout detaches the user from the current session. The record itself stays, anonymous.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	st, ok := r.Context().Value(ctxKey{}).(*state)
	if !ok {
		return ErrNoSession
	}

	username := st.record.Username

	rec := st.record
	rec.Username = ""
	if err := m.store.Set(r.Context(), rec); err != nil {
		return err
	}

	st.record = rec
	st.identity = nil

	if username != "" {
		m.log.Info().Str("username", username).Msg("user logged out")
	}
	return nil
}

// RequireAuth redirects requests without an authenticated session to target.
func (m *Manager) RequireAuth(target string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := IdentityFromContext(r.Context()); !ok {
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// FromContext returns the session record attached by Middleware.
func FromContext(ctx context.Context) (Record, bool) {
	st, ok := ctx.Value(ctxKey{}).(*state)
	if !ok {
		return Record{}, false
	}
	return st.record, true
}

// IdentityFromContext returns the logged-in identity, if any.
func IdentityFromContext(ctx context.Context) (user.Identity, bool) {
	st, ok := ctx.Value(ctxKey{}).(*state)
	if !ok || st.identity == nil {
		return user.Identity{}, false
	}
	return *st.identity, true
}

// RunPruner calls p.Prune every interval until ctx is done.
func RunPruner(ctx context.Context, p Pruner, interval time.Duration) {
	log := logx.Component("session")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := p.Prune(ctx, now)
			if err != nil {
				log.Error().Err(err).Msg("session prune failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("removed", n).Msg("pruned expired sessions")
			}
		}
	}
}
