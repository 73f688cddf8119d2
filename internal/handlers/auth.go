package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashToken returns the bcrypt hash to put in API_TOKEN_HASH.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// TokenAuth checks bearer tokens against a bcrypt hash. The last accepted
// token is remembered so bcrypt only runs when the token changes.
type TokenAuth struct {
	hash []byte

	mu       sync.Mutex
	accepted string
}

// NewTokenAuth returns nil when hash is empty, which disables the check.
func NewTokenAuth(hash string) *TokenAuth {
	if hash == "" {
		return nil
	}
	return &TokenAuth{hash: []byte(hash)}
}

func (a *TokenAuth) Valid(token string) bool {
	if token == "" {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.accepted != "" && subtle.ConstantTimeCompare([]byte(a.accepted), []byte(token)) == 1 {
		return true
	}
	if bcrypt.CompareHashAndPassword(a.hash, []byte(token)) != nil {
		return false
	}
	a.accepted = token
	return true
}

func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// Require wraps next with the token check. A nil TokenAuth lets everything
// through.
func (a *TokenAuth) Require(next http.HandlerFunc) http.HandlerFunc {
	if a == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next(w, r)
			return
		}
		if !a.Valid(requestToken(r)) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r)
	}
}
