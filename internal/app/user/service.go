package user

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is bcrypt's input limit.
const MaxPasswordBytes = 72

var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)

// Service verifies credentials and registers new users against a Store.
type Service struct {
	store Store
	cost  int

	dummyOnce sync.Once
	dummyHash []byte
}

// Option configures a Service.
type Option func(*Service)

// WithCost overrides the bcrypt cost (tests use bcrypt.MinCost).
func WithCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

// NewService returns a Service backed by store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Verify checks password against the stored hash for username.
// It returns *AuthFailure for an unknown user or a mismatched password, and a wrapped
// store error when the lookup itself fails.
func (s *Service) Verify(ctx context.Context, username, password string) (Identity, error) {
	u, err := s.store.FindByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		// Burn the same bcrypt work so the response time does not reveal whether the user exists.
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return Identity{}, &AuthFailure{Reason: ReasonNotFound}
	}
	if err != nil {
		return Identity{}, fmt.Errorf("user: lookup %q: %w", username, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Identity{}, &AuthFailure{Reason: ReasonBadPassword}
	}

	return u.Identity(), nil
}

// Register validates and stores a new user, returning its identity.
func (s *Service) Register(ctx context.Context, username, password string) (Identity, error) {
	if !usernameRegex.MatchString(username) {
		return Identity{}, ErrInvalidUsername
	}

	if len(password) == 0 || len(password) > MaxPasswordBytes {
		return Identity{}, ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Identity{}, fmt.Errorf("user: hash password: %w", err)
	}

	u := User{Username: username, PasswordHash: string(hash)}
	if err := s.store.Create(ctx, u); err != nil {
		return Identity{}, err
	}

	return u.Identity(), nil
}

// Lookup returns the identity for username, used when a session is deserialized.
func (s *Service) Lookup(ctx context.Context, username string) (Identity, error) {
	u, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		return Identity{}, err
	}
	return u.Identity(), nil
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("sockchat-timing-equalizer"), s.cost)
	})
	return s.dummyHash
}
