package services

import (
	"crypto/rand"
	"encoding/base64"
)

// stateTokenBytes is the entropy of an issued state token.
const stateTokenBytes = 32

// StateGuard issues and verifies the per-login anti-forgery token. The token
// is persisted redundantly in the server session and in a dedicated cookie,
// because either channel alone can be lost across the cross-site redirect to
// the identity provider and back.
type StateGuard struct{}

// NewStateGuard creates a new StateGuard.
func NewStateGuard() *StateGuard {
	return &StateGuard{}
}

// Issue generates a cryptographically random URL-safe state token.
func (g *StateGuard) Issue() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Verify checks the state returned by the identity provider against the two
// stored copies. A match against either channel passes: the cookie is a
// fallback for a flaky session store, not a second factor. An empty param
// never verifies.
func (g *StateGuard) Verify(param, sessionState, cookieState string) bool {
	if param == "" {
		return false
	}
	if sessionState != "" && param == sessionState {
		return true
	}
	return cookieState != "" && param == cookieState
}
