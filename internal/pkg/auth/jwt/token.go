package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

// TokenIssuer is stamped into every session token.
const TokenIssuer = "sockchat"

var (
	ErrInvalidToken  = errors.New("jwt: invalid session token")
	ErrMissingSecret = errors.New("jwt: empty signing secret")
)

// GenerateToken signs a token binding sessionID with secretKey.
func GenerateToken(sessionID, secretKey string) (string, error) {
	if secretKey == "" {
		return "", ErrMissingSecret
	}

	claims := &SessionClaims{
		StandardClaims: jwt.StandardClaims{
			Id:       sessionID,
			IssuedAt: time.Now().Unix(),
			Issuer:   TokenIssuer,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secretKey))
}

// ParseToken verifies tokenString with secretKey and returns its claims.
// Tokens signed with any other algorithm or issuer are rejected.
func ParseToken(tokenString, secretKey string) (*SessionClaims, error) {
	if secretKey == "" {
		return nil, ErrMissingSecret
	}

	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	if !token.Valid || claims.Issuer != TokenIssuer || claims.Id == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
