package source

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/curator-cli/internal/db"
	"github.com/sells-group/curator-cli/internal/model"
)

// PostgresStore implements EventStore over a pgx pool, for deployments where
// annotators share one event store.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "events postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "events postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS annotation_events (
	id              TEXT PRIMARY KEY,
	item_id         TEXT NOT NULL,
	annotator_id    TEXT NOT NULL,
	text            TEXT NOT NULL,
	label           TEXT NOT NULL,
	confidence      DOUBLE PRECISION,
	event_time      TIMESTAMPTZ,
	annotation_time TIMESTAMPTZ,
	imported_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_events_item_id ON annotation_events(item_id);
CREATE INDEX IF NOT EXISTS idx_events_event_time ON annotation_events(event_time);
CREATE INDEX IF NOT EXISTS idx_events_annotation_time ON annotation_events(annotation_time);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "events postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var eventColumns = []string{
	"id", "item_id", "annotator_id", "text", "label",
	"confidence", "event_time", "annotation_time", "imported_at",
}

func (s *PostgresStore) AppendEvents(ctx context.Context, events []model.AnnotationEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, len(events))
	for i, ev := range events {
		rows[i] = []any{
			uuid.New().String(), ev.ItemID, ev.AnnotatorID, ev.Text, ev.Label,
			pgFloat(ev.Confidence), pgTime(ev.EventTime), pgTime(ev.AnnotationTime), now,
		}
	}

	n, err := db.CopyFrom(ctx, s.pool, "annotation_events", eventColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "events postgres: append")
	}
	return int(n), nil
}

func (s *PostgresStore) ReadEvents(ctx context.Context, window *model.TimeRange, field model.WindowField) ([]model.AnnotationEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT item_id, annotator_id, text, label, confidence, event_time, annotation_time
		 FROM annotation_events
		 ORDER BY item_id, annotator_id, annotation_time`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "events postgres: read")
	}
	defer rows.Close()

	var events []model.AnnotationEvent
	for rows.Next() {
		var ev model.AnnotationEvent
		var conf sql.NullFloat64
		var et, at sql.NullTime
		if err := rows.Scan(&ev.ItemID, &ev.AnnotatorID, &ev.Text, &ev.Label, &conf, &et, &at); err != nil {
			return nil, eris.Wrap(err, "events postgres: scan event")
		}
		if conf.Valid {
			c := conf.Float64
			ev.Confidence = &c
		}
		if et.Valid {
			ev.EventTime = et.Time.UTC()
		}
		if at.Valid {
			ev.AnnotationTime = at.Time.UTC()
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "events postgres: iterate")
	}

	return FilterWindow(events, window, field), nil
}

func pgFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func pgTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
