/*
Package randx generates cryptographically secure identifiers.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	// Base62Chars is the alphabet used for generated identifiers.
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	base62Len = int64(len(Base62Chars))

	// SessionIDLength yields roughly 190 bits of entropy.
	SessionIDLength = 32
)

// base62 returns n characters drawn uniformly from Base62Chars using crypto/rand.
func base62(n int) (string, error) {
	result := make([]byte, n)

	for i := range n {
		num, err := rand.Int(rand.Reader, big.NewInt(base62Len))
		if err != nil {
			return "", fmt.Errorf("randx: read random: %w", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// SessionID returns a fresh session identifier.
func SessionID() (string, error) {
	return base62(SessionIDLength)
}

// IsValidSessionID reports whether id has the shape produced by SessionID.
func IsValidSessionID(id string) bool {
	if len(id) != SessionIDLength {
		return false
	}

	for _, char := range id {
		if !strings.ContainsRune(Base62Chars, char) {
			return false
		}
	}

	return true
}
