package summary

import (
	"context"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ColCarroll/kindle-display-server/internal/strava"
)

const (
	// statsCacheKey is where year-to-date athlete stats live in the cache.
	statsCacheKey = "strava:stats"

	defaultStatsTTL = 15 * time.Minute
)

// Fetcher is the slice of the Strava client the service needs.
type Fetcher interface {
	FetchActivities(ctx context.Context, after time.Time, perPage int) ([]strava.Activity, error)
	FetchYearToDateStats(ctx context.Context) (*strava.Totals, error)
}

// ActivityStore is the durable activity record keeper.
type ActivityStore interface {
	ActivitiesForYear(ctx context.Context, year int) ([]strava.Activity, error)
	LatestActivityDate(ctx context.Context, year int) (string, error)
	InsertActivitiesIfAbsent(ctx context.Context, activities []strava.Activity) (int, error)
}

// StatsCache is the short-lived cache used for athlete stats. A Get miss is
// any non-nil error.
type StatsCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Service produces running summaries. Store and Client are required; Cache
// is optional. Now and Loc are injectable for tests and default to the wall
// clock and US Eastern time, the timezone all day bucketing happens in.
type Service struct {
	Store    ActivityStore
	Client   Fetcher
	Cache    StatsCache
	StatsTTL time.Duration
	Now      func() time.Time
	Loc      *time.Location
}

var (
	easternOnce sync.Once
	eastern     *time.Location
)

// Eastern returns the US Eastern location, falling back to UTC when the
// zone database is missing.
func Eastern() *time.Location {
	easternOnce.Do(func() {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			log.Printf("load America/New_York: %v, falling back to UTC", err)
			loc = time.UTC
		}
		eastern = loc
	})
	return eastern
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) location() *time.Location {
	if s.Loc != nil {
		return s.Loc
	}
	return Eastern()
}

func (s *Service) statsTTL() time.Duration {
	if s.StatsTTL > 0 {
		return s.StatsTTL
	}
	return defaultStatsTTL
}

// GetRunningSummary assembles the current year's summary. Fetch and store
// failures degrade to whatever data is on hand; nil means nothing at all is
// available, which callers should render as "unavailable" rather than a
// zeroed summary. With useCache false both the stats cache and the stored
// high-water mark are bypassed.
func (s *Service) GetRunningSummary(ctx context.Context, useCache bool) *RunningSummary {
	now := s.now().In(s.location())
	stats := s.yearToDateStats(ctx, useCache)
	activities := s.ActivitiesForYear(ctx, now.Year(), useCache)
	return Aggregate(activities, stats, now)
}

// ActivitiesForYear returns the reconciled activity set for a year: stored
// records merged with a delta fetch of anything newer. Fetch failures fall
// back to the stored set; store failures fall back to the fetched set.
func (s *Service) ActivitiesForYear(ctx context.Context, year int, useCache bool) []strava.Activity {
	stored, err := s.Store.ActivitiesForYear(ctx, year)
	if err != nil {
		log.Printf("read stored activities for %d: %v", year, err)
	}

	after := yearStartUTC(year)
	if useCache && len(stored) > 0 {
		if latest, err := s.Store.LatestActivityDate(ctx, year); err == nil && latest != "" {
			if t, perr := strava.ParseStartDate(latest); perr == nil {
				after = t
			}
		}
	}

	fetched, err := s.Client.FetchActivities(ctx, after, 0)
	if err != nil {
		log.Printf("fetch activities after %s: %v, using stored data", after.Format(time.RFC3339), err)
		return stored
	}

	fresh := filterYear(fetched, year)
	if _, err := s.Store.InsertActivitiesIfAbsent(ctx, fresh); err != nil {
		log.Printf("store fetched activities: %v", err)
	}
	return mergeByID(stored, fresh)
}

// Sync fetches and stores activities for a year, returning how many were
// new. Unlike the summary path it surfaces fetch errors, since callers run
// it deliberately. With full set the delta high-water mark is ignored and
// the whole year is refetched.
func (s *Service) Sync(ctx context.Context, year int, full bool) (int, error) {
	after := yearStartUTC(year)
	if !full {
		if latest, err := s.Store.LatestActivityDate(ctx, year); err == nil && latest != "" {
			if t, perr := strava.ParseStartDate(latest); perr == nil {
				after = t
			}
		}
	}
	fetched, err := s.Client.FetchActivities(ctx, after, 0)
	if err != nil {
		return 0, err
	}
	return s.Store.InsertActivitiesIfAbsent(ctx, filterYear(fetched, year))
}

func (s *Service) yearToDateStats(ctx context.Context, useCache bool) *strava.Totals {
	if useCache && s.Cache != nil {
		var totals strava.Totals
		if err := s.Cache.Get(ctx, statsCacheKey, &totals); err == nil {
			return &totals
		}
	}
	totals, err := s.Client.FetchYearToDateStats(ctx)
	if err != nil {
		log.Printf("fetch year-to-date stats: %v", err)
		return nil
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, statsCacheKey, totals, s.statsTTL()); err != nil {
			log.Printf("cache year-to-date stats: %v", err)
		}
	}
	return totals
}

func yearStartUTC(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func filterYear(activities []strava.Activity, year int) []strava.Activity {
	prefix := strconv.Itoa(year) + "-"
	out := make([]strava.Activity, 0, len(activities))
	for _, a := range activities {
		if strings.HasPrefix(a.StartDate, prefix) {
			out = append(out, a)
		}
	}
	return out
}

// mergeByID unions two activity sets, stored records first. Duplicate IDs
// keep the stored copy.
func mergeByID(stored, fresh []strava.Activity) []strava.Activity {
	seen := make(map[int64]bool, len(stored))
	out := make([]strava.Activity, 0, len(stored)+len(fresh))
	for _, a := range stored {
		seen[a.ID] = true
		out = append(out, a)
	}
	for _, a := range fresh {
		if !seen[a.ID] {
			seen[a.ID] = true
			out = append(out, a)
		}
	}
	return out
}
