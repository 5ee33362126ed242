// Package common wires the pieces every subcommand needs: logger, token
// store, session and API client, all driven by the resolved config values.
package common

import (
	"context"
	"errors"
	"os"

	"github.com/openbiotel/biotel-monitor-go/log"
	"github.com/openbiotel/biotel-monitor-go/pkg/api"
	"github.com/openbiotel/biotel-monitor-go/pkg/auth"
	"github.com/openbiotel/biotel-monitor-go/pkg/auth/store"
	"github.com/openbiotel/biotel-monitor-go/pkg/config"
)

var ErrNoIdpConfigured = errors.New("neither --idp-domain nor --issuer is configured")

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// InitLogger installs the default logger according to the log flags.
func InitLogger() *log.Logger {
	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	default:
		logger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	}
	if config.LogConfig != "" {
		filtered, err := log.NewFiltered(logger, config.LogConfig)
		if err != nil {
			logger.Warn("invalid log filter rules", log.ErrorField(err))
		} else {
			logger = filtered
		}
	}
	log.ResetDefault(logger)
	return logger
}

func NewTokenStore() (*store.TokenStore, error) {
	dir := config.StorageDir
	if dir == "" {
		var err error
		if dir, err = store.DefaultDir(); err != nil {
			return nil, err
		}
	}
	return store.New(dir)
}

// ResolveEndpoints prefers explicit issuer discovery over the hosted-domain
// layout.
func ResolveEndpoints(ctx context.Context) (auth.Endpoints, error) {
	if config.Issuer != "" {
		return auth.DiscoverEndpoints(ctx, config.Issuer)
	}
	if config.IdpDomain != "" {
		return auth.EndpointsFromHostedDomain(config.IdpDomain), nil
	}
	return auth.Endpoints{}, ErrNoIdpConfigured
}

func NewSession(ctx context.Context) (*auth.Session, error) {
	tokenStore, err := NewTokenStore()
	if err != nil {
		return nil, err
	}
	endpoints, err := ResolveEndpoints(ctx)
	if err != nil {
		return nil, err
	}
	return auth.NewSession(tokenStore,
		auth.WithEndpoints(endpoints),
		auth.WithClientID(config.ClientID),
		auth.WithScopes(config.Scopes),
		auth.WithRedirectURI(config.RedirectURI),
		auth.WithGroupsClaim(config.GroupsClaim),
	), nil
}

// NewLocalSession builds a session without resolving provider endpoints.
// Only commands that never talk to the backend (status) use this; anything
// issuing API calls needs the full session so expired tokens can be
// refreshed.
func NewLocalSession() (*auth.Session, error) {
	tokenStore, err := NewTokenStore()
	if err != nil {
		return nil, err
	}
	return auth.NewSession(tokenStore,
		auth.WithClientID(config.ClientID),
		auth.WithGroupsClaim(config.GroupsClaim),
	), nil
}

func NewAPIClient(session *auth.Session) *api.Client {
	return api.NewClient(config.APIBaseURL, session)
}
