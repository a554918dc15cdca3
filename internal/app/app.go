// Package app wires the application together for a workspace: database,
// migrations, config, and the Strava and weather clients.
package app

import (
	"database/sql"

	"github.com/ColCarroll/kindle-display-server/internal/cache"
	"github.com/ColCarroll/kindle-display-server/internal/config"
	"github.com/ColCarroll/kindle-display-server/internal/db"
	"github.com/ColCarroll/kindle-display-server/internal/events"
	"github.com/ColCarroll/kindle-display-server/internal/migrate"
	"github.com/ColCarroll/kindle-display-server/internal/store"
	"github.com/ColCarroll/kindle-display-server/internal/strava"
	"github.com/ColCarroll/kindle-display-server/internal/summary"
	"github.com/ColCarroll/kindle-display-server/internal/weather"
)

// App holds the assembled components for one workspace.
type App struct {
	DB      *sql.DB
	Config  *config.Config
	Store   store.Store
	Cache   cache.Cache
	Summary *summary.Service
	Weather *weather.Client
	Events  events.Writer
}

// Open builds an App for the workspace. The config file is optional;
// without Strava credentials the summary degrades to stored data.
func Open(workspace string) (*App, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		conn.Close()
		return nil, err
	}

	st := store.Store{DB: conn}
	ca := cache.Cache{DB: conn}

	tokens := &strava.RefreshTokenSource{
		ClientID:     cfg.Strava.ClientID,
		ClientSecret: cfg.Strava.ClientSecret,
		RefreshToken: cfg.Strava.RefreshToken,
	}
	svc := &summary.Service{
		Store:    st,
		Client:   strava.New(tokens),
		Cache:    ca,
		StatsTTL: cfg.StatsCacheTTL(),
	}
	wx := &weather.Client{
		Cache:     ca,
		TTL:       cfg.WeatherCacheTTL(),
		UserAgent: cfg.Weather.UserAgent,
	}

	return &App{
		DB:      conn,
		Config:  cfg,
		Store:   st,
		Cache:   ca,
		Summary: svc,
		Weather: wx,
		Events:  events.Writer{DB: conn},
	}, nil
}

// Close releases the workspace database.
func (a *App) Close() error {
	return a.DB.Close()
}
