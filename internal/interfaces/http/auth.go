package http

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenVerifier validates admin bearer tokens.
type TokenVerifier interface {
	Verify(token string) bool
}

// StaticToken verifies against a single configured token.
type StaticToken string

// Verify compares in constant time; an empty configured token never matches.
func (t StaticToken) Verify(token string) bool {
	if t == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1
}

type authenticator struct {
	cronSecret string
	verifier   TokenVerifier
}

func newAuthenticator(cronSecret string, verifier TokenVerifier) *authenticator {
	return &authenticator{cronSecret: cronSecret, verifier: verifier}
}

// authorize accepts either the scheduler's shared secret or an admin bearer
// token.
func (a *authenticator) authorize(r *http.Request) bool {
	if secret := r.Header.Get("X-Cron-Secret"); secret != "" && a.cronSecret != "" {
		if subtle.ConstantTimeCompare([]byte(secret), []byte(a.cronSecret)) == 1 {
			return true
		}
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") && a.verifier != nil {
		return a.verifier.Verify(strings.TrimPrefix(auth, "Bearer "))
	}
	return false
}
