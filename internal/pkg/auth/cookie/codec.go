/*
Package cookie reads and writes the signed session cookie.

A single Codec value is shared by the HTTP session middleware and the WebSocket handshake
authorizer, so both sides agree on the cookie name and signing secret by construction.
*/
package cookie

import (
	"errors"
	"net/http"

	"sockchat/internal/pkg/auth/jwt"
)

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 16

var (
	ErrNoCookie       = errors.New("cookie: session cookie not present")
	ErrInvalidCookie  = errors.New("cookie: session cookie signature invalid")
	ErrSecretTooShort = errors.New("cookie: signing secret too short")
)

// Codec signs session ids into cookie values and back.
type Codec struct {
	name   string
	secret string
	secure bool
}

// NewCodec returns a Codec for the named cookie.
func NewCodec(name, secret string, secure bool) (*Codec, error) {
	if name == "" {
		return nil, errors.New("cookie: empty cookie name")
	}
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}

	return &Codec{name: name, secret: secret, secure: secure}, nil
}

// Name returns the cookie name.
func (c *Codec) Name() string {
	return c.name
}

// Encode returns the signed cookie value for sessionID.
func (c *Codec) Encode(sessionID string) (string, error) {
	return jwt.GenerateToken(sessionID, c.secret)
}

// Decode verifies a cookie value and returns the session id it carries.
func (c *Codec) Decode(value string) (string, error) {
	claims, err := jwt.ParseToken(value, c.secret)
	if err != nil {
		return "", errors.Join(ErrInvalidCookie, err)
	}
	return claims.SessionID(), nil
}

// FromRequest extracts and verifies the session id from r's cookies.
func (c *Codec) FromRequest(r *http.Request) (string, error) {
	ck, err := r.Cookie(c.name)
	if err != nil {
		return "", ErrNoCookie
	}
	return c.Decode(ck.Value)
}

// FromHeader extracts and verifies the session id from a raw Cookie header line.
func (c *Codec) FromHeader(raw string) (string, error) {
	if raw == "" {
		return "", ErrNoCookie
	}

	cookies, err := http.ParseCookie(raw)
	if err != nil {
		return "", errors.Join(ErrNoCookie, err)
	}

	for _, ck := range cookies {
		if ck.Name == c.name {
			return c.Decode(ck.Value)
		}
	}

	return "", ErrNoCookie
}

// Write sets the session cookie for sessionID on w. The cookie lives for the browser session;
// server-side expiry is enforced by the session store.
func (c *Codec) Write(w http.ResponseWriter, sessionID string) error {
	value, err := c.Encode(sessionID)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

// Clear instructs the client to drop the session cookie.
func (c *Codec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
