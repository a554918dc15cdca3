package strava_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ColCarroll/kindle-display-server/internal/strava"
)

func TestTokenRefreshAndReuse(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.Form.Get("grant_type") != "refresh_token" {
			t.Fatalf("grant_type = %q", r.Form.Get("grant_type"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": fmt.Sprintf("tok-%d", calls),
			"expires_in":   21600,
		})
	}))
	defer srv.Close()

	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	src := &strava.RefreshTokenSource{
		ClientID:     "id",
		ClientSecret: "secret",
		RefreshToken: "refresh",
		TokenURL:     srv.URL,
		Now:          func() time.Time { return now },
	}
	ctx := context.Background()

	tok, err := src.Token(ctx)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if tok != "tok-1" {
		t.Fatalf("token = %q", tok)
	}
	if tok, _ = src.Token(ctx); tok != "tok-1" {
		t.Fatalf("expected cached token, got %q", tok)
	}
	if calls != 1 {
		t.Fatalf("refresh called %d times", calls)
	}

	// inside the early-refresh buffer a new token is fetched
	now = now.Add(6*time.Hour - time.Minute)
	if tok, _ = src.Token(ctx); tok != "tok-2" {
		t.Fatalf("expected refreshed token, got %q", tok)
	}
}

func TestTokenRequiresCredentials(t *testing.T) {
	src := &strava.RefreshTokenSource{ClientID: "id"}
	if _, err := src.Token(context.Background()); !errors.Is(err, strava.ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestFetchActivitiesPaginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/athlete/activities" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Fatalf("auth = %q", got)
		}
		if r.URL.Query().Get("after") != "1735689600" {
			t.Fatalf("after = %q", r.URL.Query().Get("after"))
		}
		page := r.URL.Query().Get("page")
		switch page {
		case "1":
			acts := make([]map[string]any, 2)
			for i := range acts {
				acts[i] = map[string]any{"id": i + 1, "type": "Run"}
			}
			json.NewEncoder(w).Encode(acts)
		case "2":
			json.NewEncoder(w).Encode([]map[string]any{{"id": 3, "type": "Run"}})
		default:
			t.Fatalf("unexpected page %q", page)
		}
	}))
	defer srv.Close()

	c := &strava.Client{BaseURL: srv.URL, Tokens: strava.StaticTokenSource("tok")}
	after := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	acts, err := c.FetchActivities(context.Background(), after, 2)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(acts) != 3 {
		t.Fatalf("got %d activities, want 3", len(acts))
	}
	if acts[2].ID != 3 {
		t.Fatalf("last id = %d", acts[2].ID)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{})
	}))
	defer srv.Close()

	var slept []time.Duration
	c := &strava.Client{
		BaseURL: srv.URL,
		Tokens:  strava.StaticTokenSource("tok"),
		Sleep:   func(d time.Duration) { slept = append(slept, d) },
	}
	if _, err := c.FetchActivities(context.Background(), time.Time{}, 0); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if calls != 3 {
		t.Fatalf("made %d calls, want 3", calls)
	}
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != 2*time.Second {
		t.Fatalf("backoff = %v", slept)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := &strava.Client{BaseURL: srv.URL, Tokens: strava.StaticTokenSource("tok")}
	if _, err := c.FetchActivities(context.Background(), time.Time{}, 0); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("made %d calls, want 1", calls)
	}
}

func TestFetchYearToDateStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/athlete":
			json.NewEncoder(w).Encode(map[string]any{"id": 99})
		case "/athletes/99/stats":
			json.NewEncoder(w).Encode(map[string]any{
				"ytd_run_totals": map[string]any{
					"count":          40,
					"distance":       803735.0,
					"elevation_gain": 12000.0,
				},
			})
		default:
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := &strava.Client{BaseURL: srv.URL, Tokens: strava.StaticTokenSource("tok")}
	totals, err := c.FetchYearToDateStats(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if totals.Count != 40 || totals.Distance != 803735.0 {
		t.Fatalf("totals = %+v", totals)
	}
}
