package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/curator-cli/internal/model"
	"github.com/sells-group/curator-cli/internal/source"
	"github.com/sells-group/curator-cli/internal/store"
)

// memStore is an in-memory VersionStore with the same put-if-absent contract
// as the real backends.
type memStore struct {
	versions   map[string]*model.DatasetVersion
	publishErr error
}

func newMemStore() *memStore {
	return &memStore{versions: make(map[string]*model.DatasetVersion)}
}

func (m *memStore) Publish(_ context.Context, v *model.DatasetVersion) error {
	if m.publishErr != nil {
		return m.publishErr
	}
	if existing, ok := m.versions[v.VersionID]; ok {
		if existing.ContentHash() != v.ContentHash() {
			return eris.Wrapf(store.ErrVersionCollision, "version %s", v.VersionID)
		}
		return nil
	}
	m.versions[v.VersionID] = v
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*model.DatasetVersion, error) {
	v, ok := m.versions[id]
	if !ok {
		return nil, store.ErrVersionNotFound
	}
	return v, nil
}

func (m *memStore) List(_ context.Context) ([]model.Meta, error) {
	var metas []model.Meta
	for _, v := range m.versions {
		metas = append(metas, v.Meta())
	}
	return metas, nil
}

func (m *memStore) Migrate(_ context.Context) error { return nil }
func (m *memStore) Close() error                    { return nil }

type failingSource struct{}

func (failingSource) ReadEvents(context.Context, *model.TimeRange, model.WindowField) ([]model.AnnotationEvent, error) {
	return nil, eris.New("events unavailable")
}

type recordingLineage struct {
	published []model.Meta
	err       error
}

func (r *recordingLineage) PublishVersion(_ context.Context, meta model.Meta) error {
	if r.err != nil {
		return r.err
	}
	r.published = append(r.published, meta)
	return nil
}

func defaultParams() model.RunParams {
	return model.RunParams{
		ConfidenceThreshold: 0.8,
		LogicVersion:        "unanimous-v1",
	}
}

func qcEvents() []model.AnnotationEvent {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return []model.AnnotationEvent{
		// Unanimous pair: accepted.
		ev("1", "a", "positive", conf(0.9), base),
		ev("1", "b", "positive", conf(0.95), base),
		// Disagreement: disputed.
		ev("2", "a", "positive", conf(0.9), base),
		ev("2", "b", "negative", conf(0.9), base),
		// Low-confidence vote drops out, leaving one accepting vote.
		ev("3", "a", "neutral", conf(0.5), base),
		ev("3", "b", "neutral", conf(0.9), base),
		// Every vote below threshold: item appears in neither output.
		ev("4", "a", "positive", conf(0.3), base),
	}
}

func TestPipelineRun(t *testing.T) {
	st := newMemStore()
	p := New(source.NewStatic(qcEvents()), st, nil)

	res, err := p.Run(context.Background(), defaultParams())
	require.NoError(t, err)

	v := res.Version
	require.Len(t, v.Accepted, 2)
	assert.Equal(t, "1", v.Accepted[0].ItemID)
	assert.Equal(t, "positive", v.Accepted[0].Label)
	assert.Equal(t, "3", v.Accepted[1].ItemID)
	assert.Equal(t, "neutral", v.Accepted[1].Label)

	require.Len(t, v.Disputed, 1)
	assert.Equal(t, "2", v.Disputed[0].ItemID)
	require.Len(t, v.Disputed[0].Votes, 2)

	assert.Equal(t, 7, res.EventsRead)
	assert.Equal(t, 2, res.Filter.LowConfidence)
	assert.Equal(t, 1, res.ItemsUnresolved, "item 4 is in neither output")

	stored, err := st.Get(context.Background(), v.VersionID)
	require.NoError(t, err)
	assert.Equal(t, v.ContentHash(), stored.ContentHash())
}

func TestPipelineRunNoItemInBothOutputs(t *testing.T) {
	p := New(source.NewStatic(qcEvents()), newMemStore(), nil)
	res, err := p.Run(context.Background(), defaultParams())
	require.NoError(t, err)

	accepted := make(map[string]bool)
	for _, item := range res.Version.Accepted {
		accepted[item.ItemID] = true
	}
	for _, item := range res.Version.Disputed {
		assert.False(t, accepted[item.ItemID], "item %s in both outputs", item.ItemID)
	}
}

func TestPipelineRunDeterministicContent(t *testing.T) {
	events := qcEvents()
	reversed := make([]model.AnnotationEvent, len(events))
	for i, e := range events {
		reversed[len(events)-1-i] = e
	}

	p1 := New(source.NewStatic(events), newMemStore(), nil)
	p2 := New(source.NewStatic(reversed), newMemStore(), nil)

	r1, err := p1.Run(context.Background(), defaultParams())
	require.NoError(t, err)
	r2, err := p2.Run(context.Background(), defaultParams())
	require.NoError(t, err)

	assert.NotEqual(t, r1.Version.VersionID, r2.Version.VersionID, "every run mints a distinct version id")
	assert.Equal(t, r1.Version.ContentHash(), r2.Version.ContentHash(), "content is independent of read order")
	assert.Equal(t, r1.Version.AcceptedJSONL(), r2.Version.AcceptedJSONL())
	assert.Equal(t, r1.Version.DisputedLog(), r2.Version.DisputedLog())
}

func TestPipelineRunEmptyVersion(t *testing.T) {
	p := New(source.NewStatic(nil), newMemStore(), nil)
	res, err := p.Run(context.Background(), defaultParams())
	require.NoError(t, err)
	assert.Empty(t, res.Version.Accepted)
	assert.Empty(t, res.Version.Disputed)
	assert.NotEmpty(t, res.Version.VersionID)
}

func TestPipelineRunInvalidParams(t *testing.T) {
	p := New(source.NewStatic(nil), newMemStore(), nil)
	_, err := p.Run(context.Background(), model.RunParams{ConfidenceThreshold: 1.5, LogicVersion: "unanimous-v1"})
	assert.Error(t, err)
}

func TestPipelineRunSourceFailure(t *testing.T) {
	st := newMemStore()
	p := New(failingSource{}, st, nil)

	_, err := p.Run(context.Background(), defaultParams())
	require.Error(t, err)
	assert.Empty(t, st.versions, "a failed run publishes nothing")
}

func TestPipelineRunPublishFailure(t *testing.T) {
	st := newMemStore()
	st.publishErr = eris.New("disk full")
	p := New(source.NewStatic(qcEvents()), st, nil)

	_, err := p.Run(context.Background(), defaultParams())
	require.Error(t, err)
	assert.Empty(t, st.versions)
}

func TestPipelineRunCollisionPropagates(t *testing.T) {
	st := newMemStore()
	p := New(source.NewStatic(qcEvents()), st, nil)

	params := defaultParams()
	params.VersionID = "v-pinned"
	_, err := p.Run(context.Background(), params)
	require.NoError(t, err)

	// Same pinned id over different surviving events: different content.
	params.ConfidenceThreshold = 0.0
	_, err = p.Run(context.Background(), params)
	require.Error(t, err)
	assert.True(t, eris.Is(err, store.ErrVersionCollision))
}

func TestPipelineRunPinnedIdenticalRepublish(t *testing.T) {
	st := newMemStore()
	p := New(source.NewStatic(qcEvents()), st, nil)

	params := defaultParams()
	params.VersionID = "v-pinned"
	_, err := p.Run(context.Background(), params)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), params)
	require.NoError(t, err, "identical content under the same id is a no-op")
	assert.Len(t, st.versions, 1)
}

func TestPipelineRunPublishesLineage(t *testing.T) {
	lineage := &recordingLineage{}
	p := New(source.NewStatic(qcEvents()), newMemStore(), lineage)

	res, err := p.Run(context.Background(), defaultParams())
	require.NoError(t, err)
	require.Len(t, lineage.published, 1)
	assert.Equal(t, res.Version.VersionID, lineage.published[0].VersionID)
	assert.Equal(t, 2, lineage.published[0].AcceptedCount)
}

func TestPipelineRunLineageFailureIsNotFatal(t *testing.T) {
	lineage := &recordingLineage{err: eris.New("governance down")}
	st := newMemStore()
	p := New(source.NewStatic(qcEvents()), st, lineage)

	res, err := p.Run(context.Background(), defaultParams())
	require.NoError(t, err)
	assert.Len(t, st.versions, 1, "version stays durable when lineage fails")
	assert.NotNil(t, res.Version)
}

func TestPipelineRunWindowed(t *testing.T) {
	early := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	events := []model.AnnotationEvent{
		ev("1", "a", "X", conf(0.9), early),
		ev("2", "a", "Y", conf(0.9), late),
	}

	p := New(source.NewStatic(events), newMemStore(), nil)
	params := defaultParams()
	params.Window = &model.TimeRange{
		Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}

	res, err := p.Run(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, res.Version.Accepted, 1)
	assert.Equal(t, "2", res.Version.Accepted[0].ItemID)
	assert.Equal(t, params.Window.Start, res.Version.Watermark.Start)
	assert.Equal(t, params.Window.End, res.Version.Watermark.End)
}
