// Package strava fetches activity and athlete data from the Strava v3 API.
package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultBaseURL = "https://www.strava.com/api/v3"

	// maxPerPage is the feed's hard page-size cap.
	maxPerPage = 200
)

// Client calls the Strava API with bearer auth, bounded retries, and
// transparent pagination of the activity feed.
type Client struct {
	BaseURL    string
	Tokens     TokenSource
	HTTPClient *http.Client
	MaxRetries int
	Sleep      func(time.Duration)
}

func New(tokens TokenSource) *Client {
	return &Client{Tokens: tokens}
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultBaseURL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (c *Client) maxRetries() int {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return 3
}

func (c *Client) sleep(d time.Duration) {
	if c.Sleep != nil {
		c.Sleep(d)
		return
	}
	time.Sleep(d)
}

// getJSON performs an authenticated GET with exponential backoff on
// transient failures (network errors, 5xx, 429) and decodes into dest.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, dest any) error {
	token, err := c.Tokens.Token(ctx)
	if err != nil {
		return err
	}
	endpoint := c.baseURL() + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries(); attempt++ {
		if attempt > 0 {
			c.sleep(time.Duration(1<<(attempt-1)) * time.Second)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient().Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		switch {
		case resp.StatusCode == http.StatusOK:
			if err := json.Unmarshal(body, dest); err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}
			return nil
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
			continue
		default:
			return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
		}
	}
	return fmt.Errorf("GET %s: retries exhausted: %w", path, lastErr)
}

// FetchActivities returns all activities started strictly after the given
// instant, walking the paginated feed until a short page. A zero after
// fetches the feed from the beginning.
func (c *Client) FetchActivities(ctx context.Context, after time.Time, perPage int) ([]Activity, error) {
	if perPage <= 0 || perPage > maxPerPage {
		perPage = maxPerPage
	}
	var all []Activity
	for page := 1; ; page++ {
		params := url.Values{
			"per_page": {strconv.Itoa(perPage)},
			"page":     {strconv.Itoa(page)},
		}
		if !after.IsZero() {
			params.Set("after", strconv.FormatInt(after.Unix(), 10))
		}
		var batch []Activity
		if err := c.getJSON(ctx, "/athlete/activities", params, &batch); err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < perPage {
			return all, nil
		}
	}
}

// FetchYearToDateStats returns the athlete's YTD run totals. The stats
// endpoint needs the athlete id, so this is two calls.
func (c *Client) FetchYearToDateStats(ctx context.Context) (*Totals, error) {
	var athlete struct {
		ID int64 `json:"id"`
	}
	if err := c.getJSON(ctx, "/athlete", nil, &athlete); err != nil {
		return nil, err
	}
	var stats AthleteStats
	if err := c.getJSON(ctx, fmt.Sprintf("/athletes/%d/stats", athlete.ID), nil, &stats); err != nil {
		return nil, err
	}
	return &stats.YTDRunTotals, nil
}
