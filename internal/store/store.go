// Package store persists published dataset versions. Storage is append-only:
// a version id maps to exactly one content forever, and commits are atomic so
// no reader ever observes a partially written version.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/curator-cli/internal/model"
)

// ErrVersionCollision is returned when a publish targets an existing version
// id with different content. The stored version is left untouched; the caller
// must choose a new identifier.
var ErrVersionCollision = eris.New("version id already exists with different content")

// ErrVersionNotFound is returned by lookups for unknown version ids.
var ErrVersionNotFound = eris.New("version not found")

// VersionStore is the durable, append-only home of published versions.
// Publish is atomic put-if-absent: republishing identical content under the
// same id is a no-op, differing content is ErrVersionCollision, and a failed
// write leaves nothing visible.
type VersionStore interface {
	Publish(ctx context.Context, v *model.DatasetVersion) error
	Get(ctx context.Context, versionID string) (*model.DatasetVersion, error)
	List(ctx context.Context) ([]model.Meta, error)
	Migrate(ctx context.Context) error
	Close() error
}
