// Package syncx is an append-only log of domain events kept alongside the
// relational data, readable by sequence number.
package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

type Event struct {
	Seq       int64           `json:"seq"`
	SiteID    string          `json:"site_id"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"created_at"`
}

type EventRepo struct {
	db     *sql.DB
	siteID string
	now    func() time.Time
}

func NewEventRepo(db *sql.DB, siteID string) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	return &EventRepo{db: db, siteID: siteID, now: time.Now}
}

// Append records data (marshalled to JSON) under typ and key.
func (r *EventRepo) Append(ctx context.Context, typ, key string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at) VALUES ($1,$2,$3,$4,$5)`,
		r.siteID, typ, key, string(b), r.now().Unix())
	return err
}

// Since returns up to limit events with seq > after, oldest first. An empty
// key matches every key.
func (r *EventRepo) Since(ctx context.Context, key string, after int64, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT seq, site_id, typ, key, data, created_at FROM event_log WHERE seq > $1`
	args := []any{after}
	if key != "" {
		q += ` AND key = $2 ORDER BY seq LIMIT $3`
		args = append(args, key, limit)
	} else {
		q += ` ORDER BY seq LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Event{}
	for rows.Next() {
		var (
			e    Event
			data string
		)
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &data, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(data)
		out = append(out, e)
	}
	return out, rows.Err()
}
