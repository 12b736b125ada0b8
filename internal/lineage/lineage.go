// Package lineage records published dataset versions in a Notion database so
// governance reviewers can see what shipped without touching the version
// store. Publishing is metadata-only and idempotent: one row per version id,
// updated in place on republish.
package lineage

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/curator-cli/internal/model"
)

// Client defines the Notion API operations used by the publisher.
type Client interface {
	QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
	UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error)
}

// ClientOption configures the Notion client.
type ClientOption func(*notionClient)

// WithRateLimit overrides the default Notion rate limit (3 req/s).
func WithRateLimit(rps float64) ClientOption {
	return func(c *notionClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type notionClient struct {
	inner   *notionapi.Client
	limiter *rate.Limiter
}

// NewClient creates a Notion client with the given integration token.
// Calls are throttled to 3 req/s by default (Notion's rate limit).
func NewClient(token string, opts ...ClientOption) Client {
	c := &notionClient{
		inner:   notionapi.NewClient(notionapi.Token(token)),
		limiter: rate.NewLimiter(3, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *notionClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *notionClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "lineage: rate limit")
	}
	resp, err := c.inner.Database.Query(ctx, notionapi.DatabaseID(dbID), req)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("lineage: query database %s", dbID))
	}
	return resp, nil
}

func (c *notionClient) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "lineage: rate limit")
	}
	page, err := c.inner.Page.Create(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "lineage: create page")
	}
	return page, nil
}

func (c *notionClient) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "lineage: rate limit")
	}
	page, err := c.inner.Page.Update(ctx, notionapi.PageID(pageID), req)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("lineage: update page %s", pageID))
	}
	return page, nil
}

// Publisher writes one Notion page per published dataset version.
type Publisher struct {
	client     Client
	databaseID string
}

// NewPublisher creates a Publisher targeting the given Notion database.
func NewPublisher(client Client, databaseID string) *Publisher {
	return &Publisher{client: client, databaseID: databaseID}
}

// PublishVersion upserts the lineage page for a version. Versions are
// immutable, so a republish only refreshes the same metadata; the page is
// keyed by version id to keep the database one row per version.
func (p *Publisher) PublishVersion(ctx context.Context, meta model.Meta) error {
	existing, err := p.findPage(ctx, meta.VersionID)
	if err != nil {
		return err
	}

	props := versionProperties(meta)
	if existing != "" {
		_, err := p.client.UpdatePage(ctx, existing, &notionapi.PageUpdateRequest{Properties: props})
		return eris.Wrapf(err, "lineage: update version %s", meta.VersionID)
	}

	_, err = p.client.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(p.databaseID),
		},
		Properties: props,
	})
	return eris.Wrapf(err, "lineage: create version %s", meta.VersionID)
}

func (p *Publisher) findPage(ctx context.Context, versionID string) (string, error) {
	resp, err := p.client.QueryDatabase(ctx, p.databaseID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Version ID",
			RichText: &notionapi.TextFilterCondition{Equals: versionID},
		},
		PageSize: 1,
	})
	if err != nil {
		return "", eris.Wrapf(err, "lineage: find version %s", versionID)
	}
	if len(resp.Results) == 0 {
		return "", nil
	}
	return string(resp.Results[0].ID), nil
}

func versionProperties(meta model.Meta) notionapi.Properties {
	createdAt := notionapi.Date(meta.CreatedAt)
	props := notionapi.Properties{
		"Version ID": notionapi.TitleProperty{
			Title: []notionapi.RichText{{Text: &notionapi.Text{Content: meta.VersionID}}},
		},
		"Created At": notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &createdAt},
		},
		"Accepted": notionapi.NumberProperty{Number: float64(meta.AcceptedCount)},
		"Disputed": notionapi.NumberProperty{Number: float64(meta.DisputedCount)},
		"Threshold": notionapi.NumberProperty{Number: meta.ThresholdUsed},
		"Logic Version": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: meta.LogicVersion}}},
		},
		"Content Hash": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: meta.ContentHash}}},
		},
	}
	if !meta.Watermark.End.IsZero() {
		end := notionapi.Date(meta.Watermark.End)
		prop := notionapi.DateProperty{Date: &notionapi.DateObject{End: &end}}
		if !meta.Watermark.Start.IsZero() {
			start := notionapi.Date(meta.Watermark.Start)
			prop.Date.Start = &start
		}
		props["Input Watermark"] = prop
	}
	if meta.ConfigRef != "" {
		props["Config Ref"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: meta.ConfigRef}}},
		}
	}
	return props
}
