// Package api is the bearer-authenticated JSON client for the measurement
// and device backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openbiotel/biotel-monitor-go/log"
)

// ErrNotSignedIn is returned when no access credential is available. No
// request is sent in that case.
var ErrNotSignedIn = errors.New("not signed in")

// APIError is a non-2xx backend response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Body)
}

// TokenProvider yields the current access credential. The session state
// machine implements this.
type TokenProvider interface {
	AccessToken() (string, bool)
}

// TokenRefresher is implemented by token providers that can renew an
// expired credential. A provider without it gets no retry on 401.
type TokenRefresher interface {
	Refresh(ctx context.Context) error
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
	log        *log.Logger
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.log = logger
	}
}

func NewClient(baseURL string, tokens TokenProvider, opts ...Option) *Client {
	ret := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		tokens:     tokens,
		log:        log.Default().Named("api"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Get performs an authorized GET. A nil out skips body decoding; an empty
// response body leaves out untouched.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Put performs an authorized PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) do(
	ctx context.Context,
	method, path string,
	query url.Values,
	body, out any,
) error {
	token, ok := c.tokens.AccessToken()
	if !ok {
		return ErrNotSignedIn
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = data
	}

	data, err := c.send(ctx, method, reqURL, reqBody, token)
	var apiErr *APIError
	if errors.As(err, &apiErr) &&
		apiErr.StatusCode == http.StatusUnauthorized &&
		c.tryRefresh(ctx) {
		if token, ok = c.tokens.AccessToken(); !ok {
			return err
		}
		data, err = c.send(ctx, method, reqURL, reqBody, token)
	}
	if err != nil {
		return err
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("could not decode response: %w", err)
	}
	return nil
}

func (c *Client) send(
	ctx context.Context,
	method, reqURL string,
	body []byte,
	token string,
) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)

	c.log.Debug("request",
		log.String("method", method),
		log.String("url", reqURL),
		log.String("request_id", requestID))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

// tryRefresh renews the credential once after a 401. A failed renewal is
// logged and the original 401 surfaces to the caller.
func (c *Client) tryRefresh(ctx context.Context) bool {
	refresher, ok := c.tokens.(TokenRefresher)
	if !ok {
		return false
	}
	if err := refresher.Refresh(ctx); err != nil {
		c.log.Warn("token refresh failed", log.ErrorField(err))
		return false
	}
	c.log.Debug("access credential refreshed after 401")
	return true
}
