package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/curator-cli/internal/model"
)

// Coordinator re-drives the pipeline over historical windows under possibly
// overridden parameters. Every backfill writes a new version; previously
// published versions are never touched, so repeating a backfill with the
// same window and parameters over an unchanged event store reproduces the
// same accepted and disputed content byte for byte.
type Coordinator struct {
	pipeline *Pipeline
	defaults model.RunParams
}

// NewCoordinator creates a Coordinator around the live pipeline's defaults.
func NewCoordinator(p *Pipeline, defaults model.RunParams) *Coordinator {
	return &Coordinator{pipeline: p, defaults: defaults}
}

// Overrides selects which live-run defaults a backfill replaces. Zero values
// leave the corresponding default untouched.
type Overrides struct {
	ConfidenceThreshold *float64
	LogicVersion        string
	WindowField         model.WindowField
	VersionID           string
	Partitions          int
}

// Backfill re-runs the full pipeline over the given window (nil = all
// history). The result is published under a fresh version id unless the
// caller pinned one, in which case an existing id with different content is
// rejected by the store rather than overwritten.
func (c *Coordinator) Backfill(ctx context.Context, window *model.TimeRange, ov Overrides) (*RunResult, error) {
	params := c.defaults
	params.Window = window
	params.VersionID = ov.VersionID

	if ov.ConfidenceThreshold != nil {
		params.ConfidenceThreshold = *ov.ConfidenceThreshold
	}
	if ov.LogicVersion != "" {
		params.LogicVersion = ov.LogicVersion
	}
	if ov.WindowField != "" {
		params.WindowField = ov.WindowField
	}
	if ov.Partitions > 0 {
		params.Partitions = ov.Partitions
	}

	zap.L().Info("backfill: starting",
		zap.Any("window", window),
		zap.Float64("confidence_threshold", params.ConfidenceThreshold),
		zap.String("logic_version", params.LogicVersion),
		zap.String("window_field", string(params.WindowField)),
	)

	return c.pipeline.Run(ctx, params)
}
