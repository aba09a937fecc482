/*
Package user owns registered accounts and the credential check performed at login.

A User is what the credential store persists; an Identity is the logical principal that
sessions and WebSocket connections carry around, and never includes the password hash.
*/
package user

import (
	"context"
	"errors"
	"fmt"
)

// User is a persisted account. Username is unique and compared case-sensitively.
type User struct {
	Username     string
	PasswordHash string
}

// Identity is an authenticated principal.
type Identity struct {
	Username string `json:"username"`
}

// Identity returns the logical identity of u.
func (u User) Identity() Identity {
	return Identity{Username: u.Username}
}

// Store persists users. Implementations must be safe for concurrent use.
type Store interface {
	// FindByUsername returns ErrUserNotFound when no such user exists.
	FindByUsername(ctx context.Context, username string) (User, error)

	// Create returns ErrUserExists when the username is taken.
	Create(ctx context.Context, u User) error
}

var (
	ErrUserNotFound    = errors.New("user: not found")
	ErrUserExists      = errors.New("user: username already taken")
	ErrInvalidUsername = errors.New("user: invalid username")
	ErrInvalidPassword = errors.New("user: invalid password")
)

// FailureReason tells why a credential check failed.
type FailureReason int

const (
	ReasonNotFound FailureReason = iota + 1
	ReasonBadPassword
)

func (r FailureReason) String() string {
	switch r {
	case ReasonNotFound:
		return "not_found"
	case ReasonBadPassword:
		return "bad_password"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// AuthFailure is returned by Verify for a wrong username or password.
type AuthFailure struct {
	Reason FailureReason
}

func (e *AuthFailure) Error() string {
	return "user: authentication failed: " + e.Reason.String()
}

// IsAuthFailure reports whether err is an *AuthFailure with the given reason.
func IsAuthFailure(err error, reason FailureReason) bool {
	var failure *AuthFailure
	return errors.As(err, &failure) && failure.Reason == reason
}
