package store

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/curator-cli/internal/model"
)

func conf(v float64) *float64 { return &v }

func testVersion(id string) *model.DatasetVersion {
	return &model.DatasetVersion{
		VersionID:     id,
		CreatedAt:     time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
		ThresholdUsed: 0.8,
		LogicVersion:  "unanimous-v1",
		Watermark:     model.Watermark{End: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
		ConfigRef:     "git:abc123",
		Accepted: []model.AcceptedItem{
			{ItemID: "1", Text: "works great", Label: "positive"},
		},
		Disputed: []model.DisputedItem{
			{ItemID: "2", Text: "meh", Votes: []model.Vote{
				{AnnotatorID: "a", Label: "neutral", Confidence: conf(0.9)},
				{AnnotatorID: "b", Label: "negative", Confidence: conf(0.85)},
			}},
		},
	}
}

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLitePublishAndGet(t *testing.T) {
	ctx := context.Background()
	st := newSQLiteStore(t)

	v := testVersion("v1")
	require.NoError(t, st.Publish(ctx, v))

	got, err := st.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, v.VersionID, got.VersionID)
	assert.Equal(t, v.ThresholdUsed, got.ThresholdUsed)
	assert.Equal(t, v.LogicVersion, got.LogicVersion)
	assert.Equal(t, v.Watermark.End, got.Watermark.End)
	assert.Equal(t, v.Accepted, got.Accepted)
	assert.Equal(t, v.Disputed, got.Disputed)
	assert.Equal(t, v.ContentHash(), got.ContentHash())
}

func TestSQLitePublishIdempotentRepublish(t *testing.T) {
	ctx := context.Background()
	st := newSQLiteStore(t)

	require.NoError(t, st.Publish(ctx, testVersion("v1")))
	require.NoError(t, st.Publish(ctx, testVersion("v1")), "identical content republish is a no-op")
}

func TestSQLitePublishCollision(t *testing.T) {
	ctx := context.Background()
	st := newSQLiteStore(t)

	original := testVersion("v1")
	require.NoError(t, st.Publish(ctx, original))

	conflicting := testVersion("v1")
	conflicting.Accepted[0].Label = "negative"
	err := st.Publish(ctx, conflicting)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrVersionCollision))

	// Original content is untouched.
	got, err := st.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "positive", got.Accepted[0].Label)
}

func TestSQLitePublishEmptyVersion(t *testing.T) {
	ctx := context.Background()
	st := newSQLiteStore(t)

	v := testVersion("v-empty")
	v.Accepted = []model.AcceptedItem{}
	v.Disputed = []model.DisputedItem{}
	require.NoError(t, st.Publish(ctx, v), "an empty version is valid")

	got, err := st.Get(ctx, "v-empty")
	require.NoError(t, err)
	assert.Empty(t, got.Accepted)
	assert.Empty(t, got.Disputed)
}

func TestSQLiteGetNotFound(t *testing.T) {
	st := newSQLiteStore(t)
	_, err := st.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrVersionNotFound))
}

func TestSQLiteList(t *testing.T) {
	ctx := context.Background()
	st := newSQLiteStore(t)

	v1 := testVersion("v1")
	v2 := testVersion("v2")
	v2.CreatedAt = v1.CreatedAt.Add(time.Hour)
	require.NoError(t, st.Publish(ctx, v2))
	require.NoError(t, st.Publish(ctx, v1))

	metas, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "v1", metas[0].VersionID, "ordered by creation time")
	assert.Equal(t, "v2", metas[1].VersionID)
	assert.Equal(t, 1, metas[0].AcceptedCount)
	assert.Equal(t, 1, metas[0].DisputedCount)
}
