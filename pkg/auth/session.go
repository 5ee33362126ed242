package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/openbiotel/biotel-monitor-go/log"
	"github.com/openbiotel/biotel-monitor-go/pkg/auth/pkce"
	"github.com/openbiotel/biotel-monitor-go/pkg/auth/store"
)

// State describes where the session is in the sign-in round trip.
// SignedOut and SignedIn are the stable rest states; the others only exist
// while a redirect is in flight.
type State int

const (
	SignedOut State = iota
	AwaitingRedirect
	AwaitingCallback
	SignedIn
)

func (s State) String() string {
	switch s {
	case AwaitingRedirect:
		return "awaiting-redirect"
	case AwaitingCallback:
		return "awaiting-callback"
	case SignedIn:
		return "signed-in"
	default:
		return "signed-out"
	}
}

var ErrNoRefreshToken = errors.New("no refresh token available")

// Session orchestrates sign-in, callback handling, token exchange and
// sign-out against the identity provider. One session at a time.
type Session struct {
	log         *log.Logger
	store       *store.TokenStore
	endpoints   Endpoints
	clientID    string
	scopes      []string
	redirectURI string
	groupsClaim string
	httpClient  *http.Client
	state       State
}

type Option func(*Session)

func WithEndpoints(ep Endpoints) Option {
	return func(s *Session) {
		s.endpoints = ep
	}
}

func WithClientID(clientID string) Option {
	return func(s *Session) {
		s.clientID = clientID
	}
}

func WithScopes(scopes []string) Option {
	return func(s *Session) {
		s.scopes = scopes
	}
}

func WithRedirectURI(uri string) Option {
	return func(s *Session) {
		s.redirectURI = uri
	}
}

func WithGroupsClaim(claim string) Option {
	return func(s *Session) {
		s.groupsClaim = claim
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(s *Session) {
		s.httpClient = client
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Session) {
		s.log = logger
	}
}

// NewSession loads the persisted credential set and initializes the state
// machine accordingly.
func NewSession(tokenStore *store.TokenStore, opts ...Option) *Session {
	ret := &Session{
		log:         log.Default().Named("auth.session"),
		store:       tokenStore,
		scopes:      []string{"openid", "email"},
		groupsClaim: DefaultGroupsClaim,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.IsSignedIn() {
		ret.state = SignedIn
	}
	return ret
}

func (s *Session) State() State { return s.state }

func (s *Session) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    s.clientID,
		RedirectURL: s.redirectURI,
		Scopes:      s.scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  s.endpoints.Auth,
			TokenURL: s.endpoints.Token,
			// public client: client_id goes into the form body
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// BeginSignIn generates fresh exchange material, stashes it and returns the
// fully formed authorization request URL. The caller is responsible for
// getting the user's browser there.
func (s *Session) BeginSignIn() (string, error) {
	material := pkce.NewExchangeMaterial()
	if err := s.store.StashExchangeMaterial(material); err != nil {
		return "", fmt.Errorf("could not stash exchange material: %w", err)
	}
	authURL := s.oauthConfig().AuthCodeURL(material.State,
		oauth2.SetAuthURLParam("code_challenge", material.Challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
	s.state = AwaitingRedirect
	s.log.Debug("sign-in started", log.String("state", material.State))
	return authURL, nil
}

// CompleteSignIn inspects the callback URL's query parameters and, when a
// valid authorization response is present, performs the code exchange and
// persists the credential set. A URL without a code is the normal
// non-callback case and reports handled=false.
func (s *Session) CompleteSignIn(ctx context.Context, callback *url.URL) (bool, error) {
	query := callback.Query()

	if errParam := query.Get("error"); errParam != "" {
		s.failSignIn()
		desc := errParam
		if ed := query.Get("error_description"); ed != "" {
			desc = fmt.Sprintf("%s: %s", errParam, ed)
		}
		return false, &AuthError{Code: CodeProviderDenied, Description: desc}
	}

	code := query.Get("code")
	if code == "" {
		return false, nil
	}
	s.state = AwaitingCallback

	material, ok := s.store.TakeExchangeMaterial()
	if !ok {
		s.failSignIn()
		return false, &AuthError{Code: CodeMissingVerifier}
	}
	if query.Get("state") != material.State {
		// no token exchange on a state mismatch
		s.failSignIn()
		return false, &AuthError{Code: CodeStateMismatch}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	token, err := s.oauthConfig().Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", material.Verifier))
	if err != nil {
		s.failSignIn()
		return false, exchangeError(err)
	}

	creds := credentialsFromToken(token)
	if err := s.store.SaveCredentials(creds); err != nil {
		s.failSignIn()
		return false, fmt.Errorf("could not persist credentials: %w", err)
	}
	s.state = SignedIn
	s.log.Info("signed in", log.String("role", string(s.CurrentRole())))
	return true, nil
}

// SignOut clears all local state and returns the provider logout URL. It is
// idempotent; calling it while signed out still clears and returns the URL.
func (s *Session) SignOut() (string, error) {
	if err := s.store.ClearCredentials(); err != nil {
		return "", err
	}
	if err := s.store.ClearExchangeMaterial(); err != nil {
		s.log.Warn("could not clear exchange material", log.ErrorField(err))
	}
	s.state = SignedOut

	logoutURL, err := url.Parse(s.endpoints.Logout)
	if err != nil {
		return "", err
	}
	params := url.Values{}
	params.Set("client_id", s.clientID)
	params.Set("logout_uri", s.redirectURI)
	logoutURL.RawQuery = params.Encode()
	return logoutURL.String(), nil
}

// Refresh exchanges the stored refresh token for a fresh credential set.
func (s *Session) Refresh(ctx context.Context) error {
	creds := s.store.LoadCredentials()
	if creds == nil || creds.RefreshToken == "" {
		return ErrNoRefreshToken
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	stale := &oauth2.Token{
		RefreshToken: creds.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}
	token, err := s.oauthConfig().TokenSource(ctx, stale).Token()
	if err != nil {
		return exchangeError(err)
	}
	next := credentialsFromToken(token)
	if next.RefreshToken == "" {
		// Cognito does not rotate refresh tokens
		next.RefreshToken = creds.RefreshToken
	}
	return s.store.SaveCredentials(next)
}

// IsSignedIn reports whether a credential set with a non-empty access token
// is persisted.
func (s *Session) IsSignedIn() bool {
	creds := s.store.LoadCredentials()
	return creds != nil && creds.AccessToken != ""
}

// AccessToken returns the current access credential. Callers must treat a
// false result as "not authorized", not as an empty bearer header.
func (s *Session) AccessToken() (string, bool) {
	creds := s.store.LoadCredentials()
	if creds == nil || creds.AccessToken == "" {
		return "", false
	}
	return creds.AccessToken, true
}

// Claims returns the decoded claims of the ID token, falling back to the
// access token. Never fails; malformed tokens yield an empty set.
func (s *Session) Claims() jwt.MapClaims {
	creds := s.store.LoadCredentials()
	if creds == nil {
		return jwt.MapClaims{}
	}
	if creds.IDToken != "" {
		if claims := DecodeClaims(creds.IDToken); len(claims) > 0 {
			return claims
		}
	}
	return DecodeClaims(creds.AccessToken)
}

// CurrentRole derives the role from the token claims; decode failures mean
// viewer.
func (s *Session) CurrentRole() Role {
	return RoleFromClaims(s.Claims(), s.groupsClaim)
}

func (s *Session) failSignIn() {
	if err := s.store.ClearExchangeMaterial(); err != nil {
		s.log.Warn("could not clear exchange material", log.ErrorField(err))
	}
	s.state = SignedOut
}

func exchangeError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		return &AuthError{
			Code:   CodeExchangeFailed,
			Status: status,
			Body:   string(re.Body),
		}
	}
	return &AuthError{Code: CodeExchangeFailed, Description: err.Error()}
}

func credentialsFromToken(token *oauth2.Token) *store.Credentials {
	creds := &store.Credentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		creds.IDToken = idToken
	}
	creds.ExpiresIn = intExtra(token.Extra("expires_in"))
	return creds
}

func intExtra(raw any) int {
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return 0
}
