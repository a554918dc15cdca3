// Package store is the durable per-year activity store. Activities are
// kept as JSON blobs keyed by their Strava id, with the id's PRIMARY KEY
// constraint making inserts idempotent under concurrent writers.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/ColCarroll/kindle-display-server/internal/strava"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	DB *sql.DB
}

// ActivitiesForYear returns all stored activities for a year ordered by
// start date. Rows that fail to decode are skipped.
func (s Store) ActivitiesForYear(ctx context.Context, year int) ([]strava.Activity, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT data FROM strava_activities WHERE year=? ORDER BY start_date`, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []strava.Activity
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var a strava.Activity
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			continue
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// LatestActivityDate returns the start_date of the most recent stored
// activity for a year, or the empty string when the year is empty.
func (s Store) LatestActivityDate(ctx context.Context, year int) (string, error) {
	var latest sql.NullString
	err := s.DB.QueryRowContext(ctx, `SELECT MAX(start_date) FROM strava_activities WHERE year=?`, year).Scan(&latest)
	if err != nil {
		return "", err
	}
	if !latest.Valid {
		return "", nil
	}
	return latest.String, nil
}

// InsertActivitiesIfAbsent stores activities not already present, keyed by
// id. Records missing an id or start date are skipped. Returns the number
// of rows actually inserted.
func (s Store) InsertActivitiesIfAbsent(ctx context.Context, activities []strava.Activity) (int, error) {
	added := 0
	for _, a := range activities {
		if a.ID == 0 || len(a.StartDate) < 4 {
			continue
		}
		year, err := strconv.Atoi(a.StartDate[:4])
		if err != nil {
			continue
		}
		data, err := json.Marshal(a)
		if err != nil {
			continue
		}
		res, err := s.DB.ExecContext(ctx, `INSERT OR IGNORE INTO strava_activities(activity_id,start_date,year,data) VALUES (?,?,?,?)`,
			a.ID, a.StartDate, year, string(data))
		if err != nil {
			return added, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	return added, nil
}

// ClearYear removes all stored activities for a year; year 0 clears all
// years. Returns the number of rows removed.
func (s Store) ClearYear(ctx context.Context, year int) (int64, error) {
	var res sql.Result
	var err error
	if year != 0 {
		res, err = s.DB.ExecContext(ctx, `DELETE FROM strava_activities WHERE year=?`, year)
	} else {
		res, err = s.DB.ExecContext(ctx, `DELETE FROM strava_activities`)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
