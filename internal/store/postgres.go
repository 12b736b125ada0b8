package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/curator-cli/internal/db"
	"github.com/sells-group/curator-cli/internal/model"
)

// PostgresStore implements VersionStore over a pgx pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "versions postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "versions postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS dataset_versions (
	version_id      TEXT PRIMARY KEY,
	created_at      TIMESTAMPTZ NOT NULL,
	threshold_used  DOUBLE PRECISION NOT NULL,
	logic_version   TEXT NOT NULL,
	watermark_start TIMESTAMPTZ,
	watermark_end   TIMESTAMPTZ,
	config_ref      TEXT,
	content_hash    TEXT NOT NULL,
	accepted        JSONB NOT NULL,
	disputed        JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_versions_created_at ON dataset_versions(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "versions postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Publish relies on the primary key for put-if-absent: the insert claims the
// id or does nothing, and a no-op insert is then classified as idempotent
// republish or collision by comparing content hashes.
func (s *PostgresStore) Publish(ctx context.Context, v *model.DatasetVersion) error {
	acceptedJSON, err := json.Marshal(v.Accepted)
	if err != nil {
		return eris.Wrap(err, "versions postgres: marshal accepted")
	}
	disputedJSON, err := json.Marshal(v.Disputed)
	if err != nil {
		return eris.Wrap(err, "versions postgres: marshal disputed")
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO dataset_versions
		 (version_id, created_at, threshold_used, logic_version, watermark_start, watermark_end, config_ref, content_hash, accepted, disputed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (version_id) DO NOTHING`,
		v.VersionID, v.CreatedAt.UTC(), v.ThresholdUsed, v.LogicVersion,
		nullTime(v.Watermark.Start), nullTime(v.Watermark.End), v.ConfigRef,
		v.ContentHash(), acceptedJSON, disputedJSON,
	)
	if err != nil {
		return eris.Wrapf(err, "versions postgres: insert version %s", v.VersionID)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var existingHash string
	err = s.pool.QueryRow(ctx,
		`SELECT content_hash FROM dataset_versions WHERE version_id = $1`, v.VersionID,
	).Scan(&existingHash)
	if err != nil {
		return eris.Wrap(err, "versions postgres: check existing")
	}
	if existingHash != v.ContentHash() {
		return eris.Wrapf(ErrVersionCollision, "version %s", v.VersionID)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, versionID string) (*model.DatasetVersion, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT version_id, created_at, threshold_used, logic_version, watermark_start, watermark_end, config_ref, accepted, disputed
		 FROM dataset_versions WHERE version_id = $1`,
		versionID,
	)

	var v model.DatasetVersion
	var wmStart, wmEnd sql.NullTime
	var configRef sql.NullString
	var acceptedJSON, disputedJSON []byte
	err := row.Scan(&v.VersionID, &v.CreatedAt, &v.ThresholdUsed, &v.LogicVersion,
		&wmStart, &wmEnd, &configRef, &acceptedJSON, &disputedJSON)
	if err == pgx.ErrNoRows {
		return nil, eris.Wrapf(ErrVersionNotFound, "version %s", versionID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "versions postgres: scan version")
	}

	v.CreatedAt = v.CreatedAt.UTC()
	if wmStart.Valid {
		v.Watermark.Start = wmStart.Time.UTC()
	}
	if wmEnd.Valid {
		v.Watermark.End = wmEnd.Time.UTC()
	}
	v.ConfigRef = configRef.String

	if err := json.Unmarshal(acceptedJSON, &v.Accepted); err != nil {
		return nil, eris.Wrap(err, "versions postgres: unmarshal accepted")
	}
	if err := json.Unmarshal(disputedJSON, &v.Disputed); err != nil {
		return nil, eris.Wrap(err, "versions postgres: unmarshal disputed")
	}
	return &v, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]model.Meta, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT version_id, created_at, threshold_used, logic_version, watermark_start, watermark_end, config_ref, content_hash,
		        jsonb_array_length(accepted), jsonb_array_length(disputed)
		 FROM dataset_versions ORDER BY created_at, version_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "versions postgres: list")
	}
	defer rows.Close()

	var metas []model.Meta
	for rows.Next() {
		var m model.Meta
		var wmStart, wmEnd sql.NullTime
		var configRef sql.NullString
		if err := rows.Scan(&m.VersionID, &m.CreatedAt, &m.ThresholdUsed, &m.LogicVersion,
			&wmStart, &wmEnd, &configRef, &m.ContentHash, &m.AcceptedCount, &m.DisputedCount); err != nil {
			return nil, eris.Wrap(err, "versions postgres: scan meta")
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
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "versions postgres: list iterate")
	}
	return metas, nil
}
