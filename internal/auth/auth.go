// Package auth handles login against the compliance service's token endpoint
// and hands out bearer credentials for subsequent API calls. The token itself
// is opaque; it is only ever passed through as an Authorization header.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const loginTimeout = 30 * time.Second

// Token is the response from POST /token.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Client performs logins against the token endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an auth client for the given service base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: loginTimeout,
		},
	}
}

// Login exchanges a username and password for a bearer token.
// An auth failure here is fatal to starting new sessions; it is surfaced
// before any analysis stream opens.
func (c *Client) Login(ctx context.Context, username, password string) (*Token, error) {
	if username == "" || password == "" {
		return nil, &ValidationError{Type: ErrTypeNoCredentials, Message: "username and password are required"}
	}

	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ValidationError{Type: ErrTypeNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &ValidationError{Type: ErrTypeInvalidCredentials, Message: fmt.Sprintf("login rejected with HTTP %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &ValidationError{Type: ErrTypeNetwork, Message: fmt.Sprintf("login failed: HTTP %d: %s", resp.StatusCode, raw)}
	}

	var token Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, &ValidationError{Type: ErrTypeInvalidCredentials, Message: "login response carried no access token"}
	}

	log.Debug().Str("token_type", token.TokenType).Msg("Login successful")
	return &token, nil
}

// TokenProvider returns a bearer token for API calls.
type TokenProvider func(ctx context.Context) (string, error)

// NewTokenProvider returns a TokenProvider that logs in lazily on first use
// and caches the token for the life of the process. Already-running sessions
// keep their credential even if a later login fails.
func NewTokenProvider(client *Client, username, password string) TokenProvider {
	var mu sync.Mutex
	var cached string

	return func(ctx context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if cached != "" {
			return cached, nil
		}
		token, err := client.Login(ctx, username, password)
		if err != nil {
			return "", err
		}
		cached = token.AccessToken
		return cached, nil
	}
}

// StaticTokenProvider returns a provider that always yields the given token.
func StaticTokenProvider(token string) TokenProvider {
	return func(context.Context) (string, error) {
		return token, nil
	}
}
