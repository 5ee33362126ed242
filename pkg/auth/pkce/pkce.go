// Package pkce provides the primitives for the OAuth2 Authorization Code
// flow with PKCE (RFC 7636): verifier/state generation and the S256
// challenge derivation.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

const (
	VerifierLength = 64
	StateLength    = 32
)

// ExchangeMaterial is the per-sign-in secret set. It lives only for the
// duration of one redirect round trip and is consumed exactly once by the
// callback handler.
type ExchangeMaterial struct {
	Verifier  string `json:"verifier"`
	Challenge string `json:"challenge"`
	State     string `json:"state"`
}

// RandomToken returns a cryptographically random string of exactly n
// characters drawn from the base64url alphabet. The result is usable
// unmodified as a PKCE code verifier and as anti-CSRF state.
func RandomToken(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)[:n]
}

// DeriveChallenge computes the S256 code challenge for a verifier:
// base64url(SHA-256(verifier)) without padding.
func DeriveChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// NewExchangeMaterial generates a fresh verifier, its challenge and the
// anti-CSRF state.
func NewExchangeMaterial() ExchangeMaterial {
	verifier := RandomToken(VerifierLength)
	return ExchangeMaterial{
		Verifier:  verifier,
		Challenge: DeriveChallenge(verifier),
		State:     RandomToken(StateLength),
	}
}
