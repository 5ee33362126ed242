// Package store persists the credential set and the short-lived PKCE
// exchange material. Files live below a single directory; the filenames
// carry a format version so migrations can be detected.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/openbiotel/biotel-monitor-go/log"
	"github.com/openbiotel/biotel-monitor-go/pkg/auth/pkce"
)

const (
	credentialsFile = "tokens_v1.json"
	exchangeFile    = "exchange_v1.json"
)

// Credentials is the token set returned by a successful code exchange.
// It is replaced wholesale, never mutated in place.
//
//nolint:tagliatelle // external API
type Credentials struct {
	IDToken      string `json:"id_token,omitempty"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

type TokenStore struct {
	fs  afero.Fs
	dir string
	log *log.Logger
}

type Option func(*TokenStore)

// WithFs replaces the backing filesystem (tests use an in-memory fs).
func WithFs(fs afero.Fs) Option {
	return func(s *TokenStore) {
		s.fs = fs
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(s *TokenStore) {
		s.log = logger
	}
}

func New(dir string, opts ...Option) (*TokenStore, error) {
	ret := &TokenStore{
		fs:  afero.NewOsFs(),
		dir: dir,
		log: log.Default().Named("auth.store"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if err := ret.fs.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return ret, nil
}

// DefaultDir returns the platform equivalent of the browser's local storage
// location for this app.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "btm"), nil
}

// SaveCredentials durably persists the full credential set, replacing any
// prior value.
func (s *TokenStore) SaveCredentials(creds *Credentials) error {
	return s.write(credentialsFile, creds)
}

// LoadCredentials returns the current credential set or nil when absent or
// unreadable.
func (s *TokenStore) LoadCredentials() *Credentials {
	var creds Credentials
	if !s.read(credentialsFile, &creds) {
		return nil
	}
	return &creds
}

func (s *TokenStore) ClearCredentials() error {
	return s.remove(credentialsFile)
}

// StashExchangeMaterial persists the PKCE material for the duration of one
// redirect round trip.
func (s *TokenStore) StashExchangeMaterial(m pkce.ExchangeMaterial) error {
	return s.write(exchangeFile, &m)
}

// TakeExchangeMaterial returns the stashed material and deletes it. The
// second call after a redirect-back finds it absent.
func (s *TokenStore) TakeExchangeMaterial() (pkce.ExchangeMaterial, bool) {
	var m pkce.ExchangeMaterial
	if !s.read(exchangeFile, &m) {
		return pkce.ExchangeMaterial{}, false
	}
	if err := s.remove(exchangeFile); err != nil {
		s.log.Warn("could not remove exchange material", log.ErrorField(err))
	}
	return m, true
}

func (s *TokenStore) ClearExchangeMaterial() error {
	return s.remove(exchangeFile)
}

func (s *TokenStore) write(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return afero.WriteFile(s.fs, filepath.Join(s.dir, name), data, 0o600)
}

func (s *TokenStore) read(name string, v any) bool {
	data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, name))
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.log.Warn("discarding unreadable state file",
			log.String("file", name), log.ErrorField(err))
		return false
	}
	return true
}

func (s *TokenStore) remove(name string) error {
	err := s.fs.Remove(filepath.Join(s.dir, name))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
