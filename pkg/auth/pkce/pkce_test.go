package pkce

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomToken(t *testing.T) {
	tests := []struct {
		name   string
		length int
	}{
		{name: "verifier length", length: VerifierLength},
		{name: "state length", length: StateLength},
		{name: "minimum verifier length", length: 43},
		{name: "maximum verifier length", length: 128},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RandomToken(tt.length)
			assert.Len(t, got, tt.length)
			assert.NotContains(t, got, "+")
			assert.NotContains(t, got, "/")
			assert.NotContains(t, got, "=")
		})
	}
}

func TestRandomTokenUnique(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		tok := RandomToken(VerifierLength)
		assert.False(t, seen[tok], "duplicate token %s", tok)
		seen[tok] = true
	}
}

func TestDeriveChallenge(t *testing.T) {
	// RFC 7636 appendix B
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	want := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
	assert.Equal(t, want, DeriveChallenge(verifier))
}

func TestDeriveChallengeDeterministic(t *testing.T) {
	for _, verifier := range []string{
		RandomToken(43),
		RandomToken(64),
		RandomToken(128),
	} {
		first := DeriveChallenge(verifier)
		assert.Equal(t, first, DeriveChallenge(verifier))
		assert.False(t, strings.ContainsAny(first, "+/="),
			"challenge %q contains reserved characters", first)
	}
}

func TestNewExchangeMaterial(t *testing.T) {
	m := NewExchangeMaterial()
	assert.Len(t, m.Verifier, VerifierLength)
	assert.Len(t, m.State, StateLength)
	assert.Equal(t, DeriveChallenge(m.Verifier), m.Challenge)
	assert.NotEqual(t, m.Verifier, m.State)
}
