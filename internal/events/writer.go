// Package events keeps the sync log: one row per fetch that touched the
// local store, so a headless display box can be debugged after the fact.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type Detail map[string]any

// Entry is one recorded sync operation.
type Entry struct {
	ID     int64  `json:"id"`
	TS     string `json:"ts"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Append records an operation of the given kind with a JSON detail blob.
func (w Writer) Append(ctx context.Context, kind string, detail Detail) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if detail == nil {
		detail = Detail{}
	}
	data, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal sync detail: %w", err)
	}
	_, err = w.DB.ExecContext(ctx, `INSERT INTO sync_log(ts,kind,detail_json) VALUES (?,?,?)`,
		now().UTC().Format(time.RFC3339), kind, string(data))
	return err
}

// Tail returns the most recent entries, newest first.
func (w Writer) Tail(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := w.DB.QueryContext(ctx,
		`SELECT id, ts, kind, detail_json FROM sync_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TS, &e.Kind, &e.Detail); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
