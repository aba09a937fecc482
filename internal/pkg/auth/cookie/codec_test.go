package cookie_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sockchat/internal/pkg/auth/cookie"
)

const secret = "0123456789abcdef0123456789abcdef"

func newCodec(t *testing.T) *cookie.Codec {
	t.Helper()
	c, err := cookie.NewCodec("chat.sid", secret, false)
	require.NoError(t, err)
	return c
}

func TestNewCodecValidates(t *testing.T) {
	_, err := cookie.NewCodec("chat.sid", "short", false)
	assert.ErrorIs(t, err, cookie.ErrSecretTooShort)

	_, err = cookie.NewCodec("", secret, false)
	assert.Error(t, err)
}

func TestWriteThenReadFromRequest(t *testing.T) {
	c := newCodec(t)

	w := httptest.NewRecorder()
	require.NoError(t, c.Write(w, "session-abc"))

	res := w.Result()
	require.Len(t, res.Cookies(), 1)
	written := res.Cookies()[0]
	assert.Equal(t, "chat.sid", written.Name)
	assert.True(t, written.HttpOnly)
	assert.Equal(t, "/", written.Path)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(written)

	id, err := c.FromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "session-abc", id)
}

func TestFromHeader(t *testing.T) {
	c := newCodec(t)

	value, err := c.Encode("session-xyz")
	require.NoError(t, err)

	t.Run("finds named cookie among others", func(t *testing.T) {
		id, err := c.FromHeader("theme=dark; chat.sid=" + value + "; lang=en")
		require.NoError(t, err)
		assert.Equal(t, "session-xyz", id)
	})

	t.Run("empty header", func(t *testing.T) {
		_, err := c.FromHeader("")
		assert.ErrorIs(t, err, cookie.ErrNoCookie)
	})

	t.Run("cookie absent", func(t *testing.T) {
		_, err := c.FromHeader("theme=dark")
		assert.ErrorIs(t, err, cookie.ErrNoCookie)
	})

	t.Run("signed by a different secret", func(t *testing.T) {
		other, err := cookie.NewCodec("chat.sid", "ffffffffffffffffffffffffffffffff", false)
		require.NoError(t, err)
		forged, err := other.Encode("session-xyz")
		require.NoError(t, err)

		_, err = c.FromHeader("chat.sid=" + forged)
		assert.ErrorIs(t, err, cookie.ErrInvalidCookie)
	})

	t.Run("same secret but different cookie name", func(t *testing.T) {
		renamed, err := cookie.NewCodec("other.sid", secret, false)
		require.NoError(t, err)

		_, err = renamed.FromHeader("chat.sid=" + value)
		assert.ErrorIs(t, err, cookie.ErrNoCookie)
	})
}

func TestClear(t *testing.T) {
	c := newCodec(t)

	w := httptest.NewRecorder()
	c.Clear(w)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "chat.sid", cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
