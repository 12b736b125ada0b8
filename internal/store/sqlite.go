package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/curator-cli/internal/model"
)

// SQLiteStore implements VersionStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "versions sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "versions sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS dataset_versions (
	version_id      TEXT PRIMARY KEY,
	created_at      DATETIME NOT NULL,
	threshold_used  REAL NOT NULL,
	logic_version   TEXT NOT NULL,
	watermark_start DATETIME,
	watermark_end   DATETIME,
	config_ref      TEXT,
	content_hash    TEXT NOT NULL,
	accepted        TEXT NOT NULL,
	disputed        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_versions_created_at ON dataset_versions(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "versions sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Publish commits the version in one transaction. The id check and insert
// share the transaction, so concurrent publishers cannot both claim an id.
func (s *SQLiteStore) Publish(ctx context.Context, v *model.DatasetVersion) error {
	acceptedJSON, err := json.Marshal(v.Accepted)
	if err != nil {
		return eris.Wrap(err, "versions sqlite: marshal accepted")
	}
	disputedJSON, err := json.Marshal(v.Disputed)
	if err != nil {
		return eris.Wrap(err, "versions sqlite: marshal disputed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "versions sqlite: begin")
	}
	defer tx.Rollback()

	var existingHash string
	err = tx.QueryRowContext(ctx,
		`SELECT content_hash FROM dataset_versions WHERE version_id = ?`, v.VersionID,
	).Scan(&existingHash)
	switch {
	case err == nil:
		if existingHash != v.ContentHash() {
			return eris.Wrapf(ErrVersionCollision, "version %s", v.VersionID)
		}
		return nil // idempotent republish
	case err != sql.ErrNoRows:
		return eris.Wrap(err, "versions sqlite: check existing")
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO dataset_versions
		 (version_id, created_at, threshold_used, logic_version, watermark_start, watermark_end, config_ref, content_hash, accepted, disputed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.VersionID, v.CreatedAt.UTC(), v.ThresholdUsed, v.LogicVersion,
		nullTime(v.Watermark.Start), nullTime(v.Watermark.End), v.ConfigRef,
		v.ContentHash(), string(acceptedJSON), string(disputedJSON),
	)
	if err != nil {
		return eris.Wrapf(err, "versions sqlite: insert version %s", v.VersionID)
	}

	return eris.Wrap(tx.Commit(), "versions sqlite: commit")
}

func (s *SQLiteStore) Get(ctx context.Context, versionID string) (*model.DatasetVersion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT version_id, created_at, threshold_used, logic_version, watermark_start, watermark_end, config_ref, accepted, disputed
		 FROM dataset_versions WHERE version_id = ?`,
		versionID,
	)

	var v model.DatasetVersion
	var wmStart, wmEnd sql.NullTime
	var configRef sql.NullString
	var acceptedJSON, disputedJSON string
	err := row.Scan(&v.VersionID, &v.CreatedAt, &v.ThresholdUsed, &v.LogicVersion,
		&wmStart, &wmEnd, &configRef, &acceptedJSON, &disputedJSON)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrVersionNotFound, "version %s", versionID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "versions sqlite: scan version")
	}

	v.CreatedAt = v.CreatedAt.UTC()
	if wmStart.Valid {
		v.Watermark.Start = wmStart.Time.UTC()
	}
	if wmEnd.Valid {
		v.Watermark.End = wmEnd.Time.UTC()
	}
	v.ConfigRef = configRef.String

	if err := json.Unmarshal([]byte(acceptedJSON), &v.Accepted); err != nil {
		return nil, eris.Wrap(err, "versions sqlite: unmarshal accepted")
	}
	if err := json.Unmarshal([]byte(disputedJSON), &v.Disputed); err != nil {
		return nil, eris.Wrap(err, "versions sqlite: unmarshal disputed")
	}
	return &v, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]model.Meta, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version_id, created_at, threshold_used, logic_version, watermark_start, watermark_end, config_ref, content_hash,
		        json_array_length(accepted), json_array_length(disputed)
		 FROM dataset_versions ORDER BY created_at, version_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "versions sqlite: list")
	}
	defer rows.Close()

	var metas []model.Meta
	for rows.Next() {
		var m model.Meta
		var wmStart, wmEnd sql.NullTime
		var configRef sql.NullString
		if err := rows.Scan(&m.VersionID, &m.CreatedAt, &m.ThresholdUsed, &m.LogicVersion,
			&wmStart, &wmEnd, &configRef, &m.ContentHash, &m.AcceptedCount, &m.DisputedCount); err != nil {
			return nil, eris.Wrap(err, "versions sqlite: scan meta")
		}
		m.CreatedAt = m.CreatedAt.UTC()
		if wmStart.Valid {
			m.Watermark.Start = wmStart.Time.UTC()
		}
		if wmEnd.Valid {
			m.Watermark.End = wmEnd.Time.UTC()
		}
		m.ConfigRef = configRef.String
		metas = append(metas, m)
	}
	return metas, eris.Wrap(rows.Err(), "versions sqlite: list iterate")
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
