package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

// Endpoints holds the identity provider URLs the session needs.
type Endpoints struct {
	Auth   string
	Token  string
	Logout string
}

// EndpointsFromHostedDomain derives the endpoints from a Cognito-style
// hosted UI domain.
func EndpointsFromHostedDomain(domain string) Endpoints {
	base := strings.TrimRight(domain, "/")
	return Endpoints{
		Auth:   base + "/login",
		Token:  base + "/oauth2/token",
		Logout: base + "/logout",
	}
}

//nolint:tagliatelle // external API
type wellKnownConfig struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	EndSessionEndpoint    string `json:"end_session_endpoint"`
}

// DiscoverEndpoints resolves the endpoints from the issuer's OIDC metadata.
// The end-session endpoint is optional; not every provider publishes one.
func DiscoverEndpoints(ctx context.Context, issuerURL string) (Endpoints, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return Endpoints{}, fmt.Errorf("oidc discovery failed: %w", err)
	}
	ret := Endpoints{
		Auth:  provider.Endpoint().AuthURL,
		Token: provider.Endpoint().TokenURL,
	}
	if wk, wkErr := getWellKnownConfig(ctx, issuerURL); wkErr == nil {
		ret.Logout = wk.EndSessionEndpoint
	}
	return ret, nil
}

// used to get additional endpoints the oidc library does not expose
func getWellKnownConfig(ctx context.Context, issuerURL string) (
	*wellKnownConfig,
	error,
) {
	req, _ := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		fmt.Sprintf("%s/%s",
			strings.TrimRight(issuerURL, "/"), ".well-known/openid-configuration"),
		http.NoBody)
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("non-200 status code: %d", resp.StatusCode)
	}
	var config wellKnownConfig
	if err := json.NewDecoder(resp.Body).Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to decode well-known configuration: %w", err)
	}
	return &config, nil
}
