package lineage

import (
	"context"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/curator-cli/internal/model"
)

// fakeClient records calls and serves canned query results.
type fakeClient struct {
	queryResp *notionapi.DatabaseQueryResponse
	queryErr  error

	created []*notionapi.PageCreateRequest
	updated map[string]*notionapi.PageUpdateRequest
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		queryResp: &notionapi.DatabaseQueryResponse{},
		updated:   make(map[string]*notionapi.PageUpdateRequest),
	}
}

func (f *fakeClient) QueryDatabase(_ context.Context, _ string, _ *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return f.queryResp, f.queryErr
}

func (f *fakeClient) CreatePage(_ context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	f.created = append(f.created, req)
	return &notionapi.Page{}, nil
}

func (f *fakeClient) UpdatePage(_ context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	f.updated[pageID] = req
	return &notionapi.Page{}, nil
}

func testMeta() model.Meta {
	return model.Meta{
		VersionID:     "v20260315T093000Z-1a2b3c4d",
		CreatedAt:     time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC),
		ThresholdUsed: 0.8,
		LogicVersion:  "unanimous-v1",
		Watermark:     model.Watermark{End: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
		AcceptedCount: 12,
		DisputedCount: 3,
		ContentHash:   "deadbeef",
	}
}

func TestPublishVersionCreatesPage(t *testing.T) {
	client := newFakeClient()
	p := NewPublisher(client, "db-123")

	require.NoError(t, p.PublishVersion(context.Background(), testMeta()))
	require.Len(t, client.created, 1)
	assert.Empty(t, client.updated)

	req := client.created[0]
	assert.Equal(t, notionapi.DatabaseID("db-123"), req.Parent.DatabaseID)

	title, ok := req.Properties["Version ID"].(notionapi.TitleProperty)
	require.True(t, ok)
	require.Len(t, title.Title, 1)
	assert.Equal(t, "v20260315T093000Z-1a2b3c4d", title.Title[0].Text.Content)

	accepted, ok := req.Properties["Accepted"].(notionapi.NumberProperty)
	require.True(t, ok)
	assert.Equal(t, float64(12), accepted.Number)

	hash, ok := req.Properties["Content Hash"].(notionapi.RichTextProperty)
	require.True(t, ok)
	assert.Equal(t, "deadbeef", hash.RichText[0].Text.Content)
}

func TestPublishVersionUpdatesExistingPage(t *testing.T) {
	client := newFakeClient()
	client.queryResp = &notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{{ID: "page-1"}},
	}
	p := NewPublisher(client, "db-123")

	require.NoError(t, p.PublishVersion(context.Background(), testMeta()))
	assert.Empty(t, client.created)
	require.Contains(t, client.updated, "page-1")
}

func TestPublishVersionQueryFailure(t *testing.T) {
	client := newFakeClient()
	client.queryErr = assert.AnError
	p := NewPublisher(client, "db-123")

	err := p.PublishVersion(context.Background(), testMeta())
	assert.Error(t, err)
	assert.Empty(t, client.created)
}

func TestPublishVersionOmitsEmptyOptionalProperties(t *testing.T) {
	client := newFakeClient()
	p := NewPublisher(client, "db-123")

	meta := testMeta()
	meta.Watermark = model.Watermark{}
	meta.ConfigRef = ""
	require.NoError(t, p.PublishVersion(context.Background(), meta))

	req := client.created[0]
	assert.NotContains(t, req.Properties, "Input Watermark")
	assert.NotContains(t, req.Properties, "Config Ref")
}
