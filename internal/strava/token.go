package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const defaultTokenURL = "https://www.strava.com/oauth/token"

// expiryBuffer refreshes slightly early so a token never expires mid-request.
const expiryBuffer = 5 * time.Minute

var ErrNoCredentials = errors.New("strava credentials not configured")

// TokenSource yields a valid access token for API calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// RefreshTokenSource exchanges a long-lived refresh token for short-lived
// access tokens, caching the current token until near expiry.
type RefreshTokenSource struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string
	HTTPClient   *http.Client
	Now          func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (s *RefreshTokenSource) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *RefreshTokenSource) httpClient() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// Token returns the cached access token, refreshing it when absent or
// within the expiry buffer.
func (s *RefreshTokenSource) Token(ctx context.Context) (string, error) {
	if s.ClientID == "" || s.ClientSecret == "" || s.RefreshToken == "" {
		return "", ErrNoCredentials
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && s.now().Before(s.expiresAt) {
		return s.token, nil
	}

	endpoint := s.TokenURL
	if endpoint == "" {
		endpoint = defaultTokenURL
	}
	form := url.Values{
		"client_id":     {s.ClientID},
		"client_secret": {s.ClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {s.RefreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("refresh token: unexpected status %d", resp.StatusCode)
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("token response missing access_token")
	}
	s.token = tr.AccessToken
	s.expiresAt = s.now().Add(time.Duration(tr.ExpiresIn)*time.Second - expiryBuffer)
	return s.token, nil
}

// StaticTokenSource returns ts wrapping a fixed token, for tests.
func StaticTokenSource(token string) TokenSource {
	return staticToken(token)
}

type staticToken string

func (t staticToken) Token(context.Context) (string, error) { return string(t), nil }
