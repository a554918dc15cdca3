package summary_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ColCarroll/kindle-display-server/internal/strava"
	"github.com/ColCarroll/kindle-display-server/internal/summary"
)

type fakeStore struct {
	activities []strava.Activity
	readErr    error
	inserted   []strava.Activity
}

func (f *fakeStore) ActivitiesForYear(ctx context.Context, year int) ([]strava.Activity, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.activities, nil
}

func (f *fakeStore) LatestActivityDate(ctx context.Context, year int) (string, error) {
	var latest string
	for _, a := range f.activities {
		if a.StartDate > latest {
			latest = a.StartDate
		}
	}
	return latest, nil
}

func (f *fakeStore) InsertActivitiesIfAbsent(ctx context.Context, activities []strava.Activity) (int, error) {
	f.inserted = append(f.inserted, activities...)
	return len(activities), nil
}

type fakeClient struct {
	activities []strava.Activity
	fetchErr   error
	stats      *strava.Totals
	statsErr   error
	lastAfter  time.Time
	statsCalls int
}

func (f *fakeClient) FetchActivities(ctx context.Context, after time.Time, perPage int) ([]strava.Activity, error) {
	f.lastAfter = after
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []strava.Activity
	for _, a := range f.activities {
		t, err := a.StartTime()
		if err == nil && t.After(after) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeClient) FetchYearToDateStats(ctx context.Context) (*strava.Totals, error) {
	f.statsCalls++
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return f.stats, nil
}

type fakeCache struct {
	stats   *strava.Totals
	sets    int
	lastTTL time.Duration
}

func (f *fakeCache) Get(ctx context.Context, key string, dest any) error {
	if f.stats == nil {
		return errors.New("miss")
	}
	*dest.(*strava.Totals) = *f.stats
	return nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	f.sets++
	f.lastTTL = ttl
	return nil
}

func newService(st *fakeStore, cl *fakeClient, ca *fakeCache) *summary.Service {
	svc := &summary.Service{
		Store: st,
		Now:   func() time.Time { return time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC) },
		Loc:   time.UTC,
	}
	if cl != nil {
		svc.Client = cl
	}
	if ca != nil {
		svc.Cache = ca
	}
	return svc
}

func TestSummaryFallsBackToStoreOnFetchFailure(t *testing.T) {
	st := &fakeStore{activities: []strava.Activity{run(1, "2025-01-01T12:00:00Z", 5)}}
	cl := &fakeClient{fetchErr: errors.New("api down"), statsErr: errors.New("api down")}
	svc := newService(st, cl, nil)

	s := svc.GetRunningSummary(context.Background(), true)
	require.NotNil(t, s)
	assert.InDelta(t, 5.0, s.YearlyDistanceMi, 0.01)
}

func TestSummaryNilWhenNothingAvailable(t *testing.T) {
	st := &fakeStore{}
	cl := &fakeClient{fetchErr: errors.New("api down"), statsErr: errors.New("api down")}
	svc := newService(st, cl, nil)

	assert.Nil(t, svc.GetRunningSummary(context.Background(), true))
}

func TestReconcileMergesStoredAndFetched(t *testing.T) {
	stored := run(1, "2025-01-01T12:00:00Z", 5)
	fresh := run(2, "2025-01-03T12:00:00Z", 6)
	st := &fakeStore{activities: []strava.Activity{stored}}
	cl := &fakeClient{activities: []strava.Activity{stored, fresh}}
	svc := newService(st, cl, nil)

	got := svc.ActivitiesForYear(context.Background(), 2025, true)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(2), got[1].ID)

	// only the new activity crossed the high-water mark
	require.Len(t, st.inserted, 1)
	assert.Equal(t, int64(2), st.inserted[0].ID)
	assert.Equal(t, "2025-01-01T12:00:00Z", cl.lastAfter.Format("2006-01-02T15:04:05Z"))
}

func TestReconcileBypassesHighWaterWithoutCache(t *testing.T) {
	st := &fakeStore{activities: []strava.Activity{run(1, "2025-03-01T12:00:00Z", 5)}}
	cl := &fakeClient{}
	svc := newService(st, cl, nil)

	svc.ActivitiesForYear(context.Background(), 2025, false)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), cl.lastAfter)
}

func TestReconcileDropsOtherYears(t *testing.T) {
	st := &fakeStore{}
	cl := &fakeClient{activities: []strava.Activity{
		run(1, "2024-12-31T12:00:00Z", 5),
		run(2, "2025-01-02T12:00:00Z", 6),
	}}
	svc := newService(st, cl, nil)

	got := svc.ActivitiesForYear(context.Background(), 2025, true)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)
}

func TestStatsCacheHitSkipsFetch(t *testing.T) {
	st := &fakeStore{}
	cl := &fakeClient{}
	ca := &fakeCache{stats: &strava.Totals{Distance: 10 * metersPerMile}}
	svc := newService(st, cl, ca)

	s := svc.GetRunningSummary(context.Background(), true)
	require.NotNil(t, s)
	assert.InDelta(t, 10.0, s.YearlyDistanceMi, 0.01)
	assert.Equal(t, 0, cl.statsCalls)
}

func TestStatsCacheMissFetchesAndStores(t *testing.T) {
	st := &fakeStore{}
	cl := &fakeClient{stats: &strava.Totals{Distance: 10 * metersPerMile}}
	ca := &fakeCache{}
	svc := newService(st, cl, ca)
	svc.StatsTTL = 10 * time.Minute

	s := svc.GetRunningSummary(context.Background(), true)
	require.NotNil(t, s)
	assert.Equal(t, 1, cl.statsCalls)
	assert.Equal(t, 1, ca.sets)
	assert.Equal(t, 10*time.Minute, ca.lastTTL)
}

func TestNoCacheRefetchesStats(t *testing.T) {
	st := &fakeStore{}
	cl := &fakeClient{stats: &strava.Totals{Distance: 10 * metersPerMile}}
	ca := &fakeCache{stats: &strava.Totals{Distance: 99 * metersPerMile}}
	svc := newService(st, cl, ca)

	s := svc.GetRunningSummary(context.Background(), false)
	require.NotNil(t, s)
	assert.Equal(t, 1, cl.statsCalls)
	assert.InDelta(t, 10.0, s.YearlyDistanceMi, 0.01)
}

func TestSyncDeltaAndFull(t *testing.T) {
	st := &fakeStore{activities: []strava.Activity{run(1, "2025-02-01T12:00:00Z", 5)}}
	cl := &fakeClient{activities: []strava.Activity{
		run(1, "2025-02-01T12:00:00Z", 5),
		run(2, "2025-02-02T12:00:00Z", 6),
	}}
	svc := newService(st, cl, nil)

	added, err := svc.Sync(context.Background(), 2025, false)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, "2025-02-01T12:00:00Z", cl.lastAfter.Format("2006-01-02T15:04:05Z"))

	added, err = svc.Sync(context.Background(), 2025, true)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), cl.lastAfter)
}

func TestSyncSurfacesFetchErrors(t *testing.T) {
	st := &fakeStore{}
	cl := &fakeClient{fetchErr: errors.New("api down")}
	svc := newService(st, cl, nil)

	_, err := svc.Sync(context.Background(), 2025, false)
	assert.Error(t, err)
}
