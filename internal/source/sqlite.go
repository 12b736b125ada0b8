package source

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/curator-cli/internal/model"
)

// SQLiteStore implements EventStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "events sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "events sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS annotation_events (
	id              TEXT PRIMARY KEY,
	item_id         TEXT NOT NULL,
	annotator_id    TEXT NOT NULL,
	text            TEXT NOT NULL,
	label           TEXT NOT NULL,
	confidence      REAL,
	event_time      DATETIME,
	annotation_time DATETIME,
	imported_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_item_id ON annotation_events(item_id);
CREATE INDEX IF NOT EXISTS idx_events_event_time ON annotation_events(event_time);
CREATE INDEX IF NOT EXISTS idx_events_annotation_time ON annotation_events(annotation_time);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "events sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AppendEvents(ctx context.Context, events []model.AnnotationEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "events sqlite: begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO annotation_events
		 (id, item_id, annotator_id, text, label, confidence, event_time, annotation_time, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "events sqlite: prepare insert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(), ev.ItemID, ev.AnnotatorID, ev.Text, ev.Label,
			nullFloat(ev.Confidence), nullTime(ev.EventTime), nullTime(ev.AnnotationTime), now,
		); err != nil {
			return 0, eris.Wrapf(err, "events sqlite: insert event for item %s", ev.ItemID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "events sqlite: commit")
	}
	return len(events), nil
}

func (s *SQLiteStore) ReadEvents(ctx context.Context, window *model.TimeRange, field model.WindowField) ([]model.AnnotationEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, annotator_id, text, label, confidence, event_time, annotation_time
		 FROM annotation_events
		 ORDER BY item_id, annotator_id, annotation_time`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "events sqlite: read")
	}
	defer rows.Close()

	var events []model.AnnotationEvent
	for rows.Next() {
		var ev model.AnnotationEvent
		var conf sql.NullFloat64
		var et, at sql.NullTime
		if err := rows.Scan(&ev.ItemID, &ev.AnnotatorID, &ev.Text, &ev.Label, &conf, &et, &at); err != nil {
			return nil, eris.Wrap(err, "events sqlite: scan event")
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
		return nil, eris.Wrap(err, "events sqlite: iterate")
	}

	return FilterWindow(events, window, field), nil
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
