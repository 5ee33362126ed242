package store

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbiotel/biotel-monitor-go/pkg/auth/pkce"
)

func newTestStore(t *testing.T) *TokenStore {
	t.Helper()
	s, err := New("/state", WithFs(afero.NewMemMapFs()))
	require.NoError(t, err)
	return s
}

func TestCredentialsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	assert.Nil(t, s.LoadCredentials())

	creds := &Credentials{
		IDToken:      "id",
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
	}
	require.NoError(t, s.SaveCredentials(creds))
	assert.Equal(t, creds, s.LoadCredentials())

	// replace wholesale
	require.NoError(t, s.SaveCredentials(&Credentials{AccessToken: "next"}))
	got := s.LoadCredentials()
	require.NotNil(t, got)
	assert.Equal(t, "next", got.AccessToken)
	assert.Empty(t, got.RefreshToken)

	require.NoError(t, s.ClearCredentials())
	assert.Nil(t, s.LoadCredentials())
}

func TestClearCredentialsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ClearCredentials())
	require.NoError(t, s.ClearCredentials())
}

func TestExchangeMaterialSingleUse(t *testing.T) {
	s := newTestStore(t)

	_, ok := s.TakeExchangeMaterial()
	assert.False(t, ok)

	m := pkce.NewExchangeMaterial()
	require.NoError(t, s.StashExchangeMaterial(m))

	got, ok := s.TakeExchangeMaterial()
	require.True(t, ok)
	assert.Equal(t, m, got)

	// consumed: a second take must find it absent
	_, ok = s.TakeExchangeMaterial()
	assert.False(t, ok)
}

func TestCorruptFilesDegradeToAbsent(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := New("/state", WithFs(fs))
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(fs,
		filepath.Join("/state", "tokens_v1.json"), []byte("{not json"), 0o600))
	assert.Nil(t, s.LoadCredentials())
}
