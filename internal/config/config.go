package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultStatsTTL = 15 * time.Minute

const defaultWeatherTTL = 30 * time.Minute

// Config models dashboard.yml. Strava credentials may also come from the
// STRAVA_CLIENT_ID, STRAVA_CLIENT_SECRET and STRAVA_REFRESH_TOKEN
// environment variables, which take precedence over the file.
type Config struct {
	Strava struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		RefreshToken string `yaml:"refresh_token"`
		StatsTTL     string `yaml:"stats_ttl"`
	} `yaml:"strava"`
	Weather struct {
		TTL       string `yaml:"ttl"`
		UserAgent string `yaml:"user_agent"`
	} `yaml:"weather"`
	Locations []Location `yaml:"locations"`
}

// Location is a named coordinate weather can be fetched for.
type Location struct {
	Name string `yaml:"name"`
	Lat  string `yaml:"lat"`
	Lon  string `yaml:"lon"`
}

// Load reads and validates config from the workspace, then applies
// environment overrides.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create it or run kds init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns an env-only config when the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{}
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.HasStravaCredentials() {
		if c.Strava.ClientID == "" {
			return fmt.Errorf("config.strava.client_id is required when credentials are set")
		}
		if c.Strava.ClientSecret == "" {
			return fmt.Errorf("config.strava.client_secret is required when credentials are set")
		}
		if c.Strava.RefreshToken == "" {
			return fmt.Errorf("config.strava.refresh_token is required when credentials are set")
		}
	}
	if c.Strava.StatsTTL != "" {
		if _, err := time.ParseDuration(c.Strava.StatsTTL); err != nil {
			return fmt.Errorf("config.strava.stats_ttl: %w", err)
		}
	}
	if c.Weather.TTL != "" {
		if _, err := time.ParseDuration(c.Weather.TTL); err != nil {
			return fmt.Errorf("config.weather.ttl: %w", err)
		}
	}
	for i, loc := range c.Locations {
		if loc.Name == "" {
			return fmt.Errorf("config.locations[%d].name is required", i)
		}
		if loc.Lat == "" || loc.Lon == "" {
			return fmt.Errorf("location %s needs both lat and lon", loc.Name)
		}
	}
	return nil
}

// HasStravaCredentials reports whether any Strava credential is set; a
// partial set is a validation error.
func (c *Config) HasStravaCredentials() bool {
	return c.Strava.ClientID != "" || c.Strava.ClientSecret != "" || c.Strava.RefreshToken != ""
}

// StatsCacheTTL returns the athlete stats cache lifetime.
func (c *Config) StatsCacheTTL() time.Duration {
	return parseTTL(c.Strava.StatsTTL, defaultStatsTTL)
}

// WeatherCacheTTL returns the forecast cache lifetime.
func (c *Config) WeatherCacheTTL() time.Duration {
	return parseTTL(c.Weather.TTL, defaultWeatherTTL)
}

func parseTTL(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func (c *Config) applyEnv() {
	if v := os.Getenv("STRAVA_CLIENT_ID"); v != "" {
		c.Strava.ClientID = v
	}
	if v := os.Getenv("STRAVA_CLIENT_SECRET"); v != "" {
		c.Strava.ClientSecret = v
	}
	if v := os.Getenv("STRAVA_REFRESH_TOKEN"); v != "" {
		c.Strava.RefreshToken = v
	}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "dashboard.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `strava:
  client_id: ""
  client_secret: ""
  refresh_token: ""
  stats_ttl: 15m

weather:
  ttl: 30m
  user_agent: "(kindle-display-server, contact@example.com)"

locations:
  - name: home
    lat: "42.3601"
    lon: "-71.0589"
`
