package tokensource

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

	"golang.org/x/oauth2"

	"github.com/florianilch/lockwise/internal/action"
)

// TokenSourceOption configures a TokenSource.
type TokenSourceOption func(*tokenSourceConfig)

type tokenSourceConfig struct {
	baseTransport http.RoundTripper
	ttl           time.Duration
}

// WithTransport sets the base transport for token requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) TokenSourceOption {
	return func(c *tokenSourceConfig) {
		c.baseTransport = transport
	}
}

// WithTTL asks the account server for access tokens valid for d. The server
// caps the lifetime; zero leaves it to the server default.
func WithTTL(d time.Duration) TokenSourceOption {
	return func(c *tokenSourceConfig) {
		c.ttl = d
	}
}

// TokenSource exchanges a stored refresh token for a new token triple.
type TokenSource struct {
	current     action.OAuthInfo
	tokenSource oauth2.TokenSource
}

// Compile-time check to ensure TokenSource implements oauth2.TokenSource
var _ oauth2.TokenSource = (*TokenSource)(nil)

// NewTokenSource creates a TokenSource refreshing from current.RefreshToken.
func NewTokenSource(clientID string, current action.OAuthInfo, endpoint oauth2.Endpoint, opts ...TokenSourceOption) *TokenSource {
	cfg := &tokenSourceConfig{
		baseTransport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	oauth2Config := &oauth2.Config{
		ClientID: clientID,
		Scopes:   scopes,
		Endpoint: endpoint,
	}

	httpClient := &http.Client{
		// oauth2 refreshes with context.Background, so the client bounds the request.
		Timeout: 30 * time.Second,
		Transport: &fxaTransport{
			base:  cfg.baseTransport,
			scope: strings.Join(scopes, " "),
			ttl:   cfg.ttl,
		},
	}
	oauthCtx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)

	return &TokenSource{
		current: current,
		// No access token yet, so the first Token call refreshes.
		tokenSource: oauth2Config.TokenSource(oauthCtx, &oauth2.Token{RefreshToken: current.RefreshToken}),
	}
}

// Token returns the refreshed oauth2 token.
func (ts *TokenSource) Token() (*oauth2.Token, error) {
	token, err := ts.tokenSource.Token()
	if err != nil {
		return nil, asServerError(err)
	}
	return token, nil
}

// OAuthInfo refreshes and returns the resulting token triple. Tokens the
// server did not rotate are carried over from the triple the source was
// created with.
func (ts *TokenSource) OAuthInfo() (action.OAuthInfo, error) {
	token, err := ts.Token()
	if err != nil {
		return action.OAuthInfo{}, err
	}

	next := action.OAuthInfo{
		IDToken:      idToken(token),
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if next.IDToken == "" {
		next.IDToken = ts.current.IDToken
	}
	if next.RefreshToken == "" {
		next.RefreshToken = ts.current.RefreshToken
	}
	return next, nil
}

// idToken returns the OpenID Connect id_token carried alongside t, if any.
func idToken(t *oauth2.Token) string {
	if t == nil {
		return ""
	}
	id, _ := t.Extra("id_token").(string)
	return id
}

// fxaTransport re-encodes oauth2's form-encoded token requests as the JSON
// bodies the Firefox Accounts OAuth server expects, adding the requested
// scope and access token lifetime.
type fxaTransport struct {
	base  http.RoundTripper
	scope string
	ttl   time.Duration
}

// Compile-time check that fxaTransport implements http.RoundTripper.
var _ http.RoundTripper = (*fxaTransport)(nil)

func (t *fxaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	defer func() { _ = req.Body.Close() }()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}

	formData, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("parsing form data: %w", err)
	}

	payload := make(map[string]any, len(formData)+2)
	for key, values := range formData {
		payload[key] = values[0]
	}
	// The refresh grant omits scope; without it the server returns no id_token.
	if _, ok := payload["scope"]; !ok && t.scope != "" {
		payload["scope"] = t.scope
	}
	if t.ttl > 0 {
		payload["ttl"] = int(t.ttl / time.Second)
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling JSON request: %w", err)
	}

	newReq := req.Clone(req.Context())
	newReq.Body = io.NopCloser(bytes.NewReader(jsonBody))
	newReq.ContentLength = int64(len(jsonBody))
	newReq.Header.Set("Content-Type", "application/json")

	return t.base.RoundTrip(newReq)
}

// ErrnoInvalidToken is the server errno for an unknown or revoked token.
const ErrnoInvalidToken = 108

// ServerError is an error response from the Firefox Accounts OAuth server.
type ServerError struct {
	Code    int    `json:"code"`
	Errno   int    `json:"errno"`
	Message string `json:"message"`
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("account server error %d: %s", e.Errno, e.Message)
}

// IsInvalidToken reports whether err means the refresh token is no longer accepted.
func IsInvalidToken(err error) bool {
	var serverErr *ServerError
	return errors.As(err, &serverErr) && serverErr.Errno == ErrnoInvalidToken
}

// asServerError unwraps the server's errno from an oauth2 retrieve error.
func asServerError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return err
	}
	serverErr := &ServerError{}
	if jsonErr := json.Unmarshal(retrieveErr.Body, serverErr); jsonErr != nil || serverErr.Errno == 0 {
		return err
	}
	return fmt.Errorf("refreshing token: %w", serverErr)
}
