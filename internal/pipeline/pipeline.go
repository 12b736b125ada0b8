package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/curator-cli/internal/model"
	"github.com/sells-group/curator-cli/internal/source"
	"github.com/sells-group/curator-cli/internal/store"
)

// LineagePublisher records per-version metadata with the governance
// collaborator. Implemented by the lineage package; nil disables publishing.
type LineagePublisher interface {
	PublishVersion(ctx context.Context, meta model.Meta) error
}

// Pipeline wires the QC stages between an event source and a version store.
// Each run is stateless and fully described by its RunParams; nothing is
// retried internally, so a failed run can be re-invoked by the caller as-is.
type Pipeline struct {
	source  source.EventSource
	store   store.VersionStore
	lineage LineagePublisher
}

// New creates a Pipeline. lineage may be nil.
func New(src source.EventSource, st store.VersionStore, lineage LineagePublisher) *Pipeline {
	return &Pipeline{source: src, store: st, lineage: lineage}
}

// RunResult summarizes one pipeline run.
type RunResult struct {
	Version         *model.DatasetVersion `json:"version"`
	EventsRead      int                   `json:"events_read"`
	Filter          FilterStats           `json:"filter"`
	ItemsUnresolved int                   `json:"items_unresolved"`
}

// Run executes one full pass: read events, filter, resolve, build, publish.
// All failures surface to the caller; a failed run leaves no partial version
// visible.
func (p *Pipeline) Run(ctx context.Context, params model.RunParams) (*RunResult, error) {
	if params.WindowField == "" {
		params.WindowField = model.WindowByEventTime
	}
	if err := params.Validate(); err != nil {
		return nil, eris.Wrap(err, "pipeline: invalid run params")
	}

	events, err := p.source.ReadEvents(ctx, params.Window, params.WindowField)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read events")
	}

	survivors, stats := Filter(events, params.ConfidenceThreshold, params.EvaluationCutoff)

	resolutions, err := ResolveParallel(ctx, survivors, params.Partitions)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: resolve")
	}

	now := time.Now().UTC()
	version := Build(resolutions, params, watermarkFor(params, now), now)

	if err := p.store.Publish(ctx, version); err != nil {
		return nil, eris.Wrap(err, "pipeline: publish version")
	}

	result := &RunResult{
		Version:         version,
		EventsRead:      len(events),
		Filter:          stats,
		ItemsUnresolved: countUnresolved(events, survivors),
	}

	zap.L().Info("pipeline: run complete",
		zap.String("version_id", version.VersionID),
		zap.Int("events_read", result.EventsRead),
		zap.Int("events_dropped", stats.Dropped()),
		zap.Int("items_accepted", len(version.Accepted)),
		zap.Int("items_disputed", len(version.Disputed)),
		zap.Int("items_unresolved", result.ItemsUnresolved),
	)

	// Lineage is best-effort: the version is already durable, and republishing
	// metadata is cheap, so a governance outage does not fail the run.
	if p.lineage != nil {
		if err := p.lineage.PublishVersion(ctx, version.Meta()); err != nil {
			zap.L().Warn("pipeline: lineage publish failed",
				zap.String("version_id", version.VersionID),
				zap.Error(err),
			)
		}
	}

	return result, nil
}

// countUnresolved counts items present in the raw read whose events were all
// filtered out. Such items appear in neither output; the count keeps that
// documented exclusion visible in run summaries.
func countUnresolved(all, survivors []model.AnnotationEvent) int {
	surviving := make(map[string]struct{}, len(survivors))
	for _, ev := range survivors {
		surviving[ev.ItemID] = struct{}{}
	}

	seen := make(map[string]struct{})
	unresolved := 0
	for _, ev := range all {
		if ev.ItemID == "" {
			continue
		}
		if _, dup := seen[ev.ItemID]; dup {
			continue
		}
		seen[ev.ItemID] = struct{}{}
		if _, ok := surviving[ev.ItemID]; !ok {
			unresolved++
		}
	}
	return unresolved
}
