/*
Package pow implements the proof-of-work challenge that can guard account registration.

A client fetches a nonce, searches for a counter such that sha256(nonce+counter) in hex starts
with `difficulty` zeros, and trades the solution for a short-lived single-use proof token which
it submits with the registration form.
*/
package pow

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// ProofTokenDuration is how long an issued proof token stays redeemable.
	ProofTokenDuration = 2 * time.Minute

	// NonceExpiryDuration is how long a challenge nonce can be solved.
	NonceExpiryDuration = 5 * time.Minute
)

var (
	ErrNonceInvalid      = errors.New("pow: nonce expired or unknown")
	ErrProofInsufficient = errors.New("pow: proof does not meet difficulty")
)

// Manager tracks outstanding nonces and issued proof tokens.
type Manager struct {
	difficulty int

	mu     sync.Mutex
	nonces map[string]time.Time
	tokens map[string]time.Time

	stop chan struct{}
	once sync.Once
}

// NewManager returns a Manager for the given difficulty. Difficulty 0 disables the challenge.
func NewManager(difficulty int) *Manager {
	m := &Manager{
		difficulty: difficulty,
		nonces:     make(map[string]time.Time),
		tokens:     make(map[string]time.Time),
		stop:       make(chan struct{}),
	}

	go m.cleanupExpiredEntries()

	return m
}

// Enabled reports whether registrations must carry a proof token.
func (m *Manager) Enabled() bool {
	return m.difficulty > 0
}

// Difficulty returns the number of leading hex zeros required.
func (m *Manager) Difficulty() int {
	return m.difficulty
}

// GenerateNonce issues a new challenge nonce.
func (m *Manager) GenerateNonce() string {
	nonce := uuid.NewString()

	m.mu.Lock()
	m.nonces[nonce] = time.Now().Add(NonceExpiryDuration)
	m.mu.Unlock()

	return nonce
}

// Solves reports whether counter solves nonce at difficulty.
func Solves(nonce, counter string, difficulty int) bool {
	hash := sha256.Sum256([]byte(nonce + counter))
	return strings.HasPrefix(hex.EncodeToString(hash[:]), strings.Repeat("0", difficulty))
}

// ValidateProof consumes nonce and returns a proof token when counter solves it.
func (m *Manager) ValidateProof(nonce, counter string) (string, error) {
	if !Solves(nonce, counter, m.difficulty) {
		return "", ErrProofInsufficient
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, ok := m.nonces[nonce]
	if !ok || time.Now().After(expiry) {
		return "", ErrNonceInvalid
	}
	delete(m.nonces, nonce)

	token := uuid.NewString()
	m.tokens[token] = time.Now().Add(ProofTokenDuration)

	return token, nil
}

// ConsumeProofToken redeems token once. It always succeeds when the challenge is disabled.
func (m *Manager) ConsumeProofToken(token string) bool {
	if !m.Enabled() {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, ok := m.tokens[token]
	if !ok {
		return false
	}
	delete(m.tokens, token)

	return time.Now().Before(expiry)
}

// Stop terminates the cleanup goroutine.
func (m *Manager) Stop() {
	m.once.Do(func() { close(m.stop) })
}

func (m *Manager) cleanupExpiredEntries() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.mu.Lock()
			for nonce, expiry := range m.nonces {
				if now.After(expiry) {
					delete(m.nonces, nonce)
				}
			}
			for token, expiry := range m.tokens {
				if now.After(expiry) {
					delete(m.tokens, token)
				}
			}
			m.mu.Unlock()
		}
	}
}
