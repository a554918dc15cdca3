// Package weather fetches hourly forecasts from the National Weather
// Service API. A lat/lon resolves to a gridpoint via the points endpoint,
// which carries the hourly forecast URL and the nearest city name.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultBaseURL   = "https://api.weather.gov"
	defaultUserAgent = "(kindle-display-server, contact@example.com)"
	defaultTTL       = 30 * time.Minute

	maxAttempts = 3

	// maxPeriods caps the hourly forecast at five days.
	maxPeriods = 120
)

// Period is one hour of the NWS hourly forecast.
type Period struct {
	Number                     int    `json:"number"`
	StartTime                  string `json:"startTime"`
	Temperature                int    `json:"temperature"`
	TemperatureUnit            string `json:"temperatureUnit"`
	WindSpeed                  string `json:"windSpeed"`
	ShortForecast              string `json:"shortForecast"`
	ProbabilityOfPrecipitation struct {
		Value *float64 `json:"value"`
	} `json:"probabilityOfPrecipitation"`
}

// Forecast is the cached unit: location plus the hourly periods.
type Forecast struct {
	City      string   `json:"city"`
	Lat       string   `json:"lat"`
	Lon       string   `json:"lon"`
	Periods   []Period `json:"periods"`
	FetchedAt string   `json:"fetched_at"`
}

// ForecastCache mirrors the cache surface the client needs.
type ForecastCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Client talks to the NWS API. The zero value works; Cache is optional.
// Sleep and Now are injectable for tests.
type Client struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
	Cache      ForecastCache
	TTL        time.Duration
	Sleep      func(time.Duration)
	Now        func() time.Time
}

type pointsResponse struct {
	Properties struct {
		ForecastHourly   string `json:"forecastHourly"`
		RelativeLocation struct {
			Properties struct {
				City  string `json:"city"`
				State string `json:"state"`
			} `json:"properties"`
		} `json:"relativeLocation"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Periods []Period `json:"periods"`
	} `json:"properties"`
}

// Forecast returns the hourly forecast for a coordinate, consulting the
// cache first when useCache is set.
func (c *Client) Forecast(ctx context.Context, lat, lon string, useCache bool) (*Forecast, error) {
	key := cacheKey(lat, lon)
	if useCache && c.Cache != nil {
		var cached Forecast
		if err := c.Cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	var points pointsResponse
	pointsURL := fmt.Sprintf("%s/points/%s,%s", c.baseURL(), lat, lon)
	if err := c.getJSON(ctx, pointsURL, &points); err != nil {
		return nil, fmt.Errorf("resolve gridpoint for %s,%s: %w", lat, lon, err)
	}
	if points.Properties.ForecastHourly == "" {
		return nil, fmt.Errorf("no hourly forecast for %s,%s", lat, lon)
	}

	var forecast forecastResponse
	if err := c.getJSON(ctx, points.Properties.ForecastHourly, &forecast); err != nil {
		return nil, fmt.Errorf("fetch hourly forecast: %w", err)
	}

	periods := forecast.Properties.Periods
	if len(periods) > maxPeriods {
		periods = periods[:maxPeriods]
	}
	rel := points.Properties.RelativeLocation.Properties
	result := &Forecast{
		City:      fmt.Sprintf("%s, %s", rel.City, rel.State),
		Lat:       lat,
		Lon:       lon,
		Periods:   periods,
		FetchedAt: c.now().UTC().Format(time.RFC3339),
	}

	if c.Cache != nil {
		ttl := c.TTL
		if ttl <= 0 {
			ttl = defaultTTL
		}
		if err := c.Cache.Set(ctx, key, result, ttl); err != nil {
			return result, nil
		}
	}
	return result, nil
}

// getJSON fetches a URL into dest, retrying transient failures with
// exponential backoff.
func (c *Client) getJSON(ctx context.Context, url string, dest any) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			c.sleep(time.Duration(1<<(attempt-1)) * time.Second)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", c.userAgent())
		req.Header.Set("Accept", "application/json")

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
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("%s: status %d", url, resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: status %d", url, resp.StatusCode)
		}
		return json.Unmarshal(body, dest)
	}
	return lastErr
}

func cacheKey(lat, lon string) string {
	return fmt.Sprintf("weather:%s:%s", lat, lon)
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultBaseURL
}

func (c *Client) userAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return defaultUserAgent
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) sleep(d time.Duration) {
	if c.Sleep != nil {
		c.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
