package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// Location is a saved weather location. Coordinates are kept as strings
// because they are only ever interpolated into Weather.gov URLs.
type Location struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Lat       string `json:"lat"`
	Lon       string `json:"lon"`
	CreatedAt string `json:"created_at"`
}

// AddLocation inserts a weather location, assigning a UUID when the id is
// empty, and returns the stored record.
func (s Store) AddLocation(ctx context.Context, loc Location) (Location, error) {
	if loc.ID == "" {
		loc.ID = uuid.NewString()
	}
	if loc.CreatedAt == "" {
		loc.CreatedAt = nowRFC3339()
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO weather_locations(id,name,lat,lon,created_at) VALUES (?,?,?,?,?)`,
		loc.ID, loc.Name, loc.Lat, loc.Lon, loc.CreatedAt)
	return loc, err
}

func (s Store) ListLocations(ctx context.Context) ([]Location, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id,name,lat,lon,created_at FROM weather_locations ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Lat, &l.Lon, &l.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

func (s Store) GetLocationByName(ctx context.Context, name string) (Location, error) {
	var l Location
	err := s.DB.QueryRowContext(ctx, `SELECT id,name,lat,lon,created_at FROM weather_locations WHERE name=?`, name).
		Scan(&l.ID, &l.Name, &l.Lat, &l.Lon, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return l, ErrNotFound
	}
	return l, err
}

func (s Store) DeleteLocation(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM weather_locations WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
