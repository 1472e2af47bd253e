package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// AuthMiddleware checks the local API bearer token against a bcrypt hash.
type AuthMiddleware struct {
	hash []byte

	// verified holds digests of tokens that already passed bcrypt.
	mu       sync.RWMutex
	verified map[string]struct{}
}

// NewAuthMiddleware creates a new auth middleware. An empty hash disables authentication.
func NewAuthMiddleware(tokenHash string) *AuthMiddleware {
	return &AuthMiddleware{
		hash:     []byte(tokenHash),
		verified: make(map[string]struct{}),
	}
}

// Enabled reports whether a token is required.
func (m *AuthMiddleware) Enabled() bool {
	return len(m.hash) > 0
}

// RequireAuth middleware rejects requests without a valid bearer token.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			jsonError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		if !m.check(token) {
			jsonError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) check(token string) bool {
	digest := sha256Hex([]byte(token))

	m.mu.RLock()
	_, ok := m.verified[digest]
	m.mu.RUnlock()
	if ok {
		return true
	}

	if err := bcrypt.CompareHashAndPassword(m.hash, []byte(token)); err != nil {
		return false
	}

	m.mu.Lock()
	m.verified[digest] = struct{}{}
	m.mu.Unlock()
	return true
}

func sha256Hex(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
