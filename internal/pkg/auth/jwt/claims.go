/*
Package jwt signs and verifies the HS256 tokens that carry a session id inside the session cookie.
*/
package jwt

import "github.com/golang-jwt/jwt"

// SessionClaims is the token body. The session id travels in the standard jti claim;
// expiry is governed by the session store, not by the token.
type SessionClaims struct {
	jwt.StandardClaims
}

// SessionID returns the jti claim.
func (c *SessionClaims) SessionID() string {
	return c.Id
}
