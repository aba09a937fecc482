package errs_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"sockchat/internal/pkg/errs"
)

func TestNewError(t *testing.T) {
	t.Run("registered code keeps its status", func(t *testing.T) {
		err := errs.NewError(errs.ErrUnauthenticated)
		assert.Equal(t, errs.ErrUnauthenticated, err.Code)
		assert.Equal(t, http.StatusUnauthorized, err.Status)
	})

	t.Run("missing status defaults to 200", func(t *testing.T) {
		err := errs.NewError(errs.ErrInvalidCredentials)
		assert.Equal(t, http.StatusOK, err.Status)
	})

	t.Run("details fill message template", func(t *testing.T) {
		err := errs.NewError(errs.ErrInvalidPassword, 72)
		assert.Equal(t, "Passwords must be 1-72 bytes long.", err.Message)
	})

	t.Run("unknown code degrades to ErrUnknown", func(t *testing.T) {
		err := errs.NewError(424242)
		assert.Equal(t, errs.ErrUnknown, err.Code)
		assert.Equal(t, http.StatusInternalServerError, err.Status)
	})
}

func TestCode(t *testing.T) {
	wrapped := fmt.Errorf("login: %w", errs.NewError(errs.ErrRateLimitExceeded))
	assert.Equal(t, errs.ErrRateLimitExceeded, errs.Code(wrapped))
	assert.Equal(t, errs.ErrUnknown, errs.Code(errors.New("plain")))
}
