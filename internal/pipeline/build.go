package pipeline

import (
	"time"

	"github.com/sells-group/curator-cli/internal/model"
)

// Build assembles an immutable DatasetVersion from the resolutions of one
// run. Zero accepted items is a valid, successfully built empty version.
// The version id is taken from params when set, otherwise generated from the
// creation timestamp; content is fully staged here and only becomes visible
// once the store commits it.
func Build(resolutions []model.Resolution, params model.RunParams, watermark model.Watermark, now time.Time) *model.DatasetVersion {
	versionID := params.VersionID
	if versionID == "" {
		versionID = model.NewVersionID(now)
	}

	v := &model.DatasetVersion{
		VersionID:     versionID,
		CreatedAt:     now.UTC(),
		ThresholdUsed: params.ConfidenceThreshold,
		LogicVersion:  params.LogicVersion,
		Watermark:     watermark,
		ConfigRef:     params.ConfigRef,
		Accepted:      []model.AcceptedItem{},
		Disputed:      []model.DisputedItem{},
	}

	for _, res := range resolutions {
		switch res.Outcome {
		case model.OutcomeAccepted:
			v.Accepted = append(v.Accepted, model.AcceptedItem{
				ItemID: res.ItemID,
				Text:   res.Text,
				Label:  res.Label,
			})
		case model.OutcomeDisputed:
			v.Disputed = append(v.Disputed, model.DisputedItem{
				ItemID: res.ItemID,
				Text:   res.Text,
				Votes:  res.Votes,
			})
		}
	}

	return v
}

// watermarkFor derives the input watermark recorded on a version: the
// window's bounds when one was given, otherwise the effective bounds of
// history considered (unbounded start, evaluation cutoff or build time end).
func watermarkFor(params model.RunParams, now time.Time) model.Watermark {
	if params.Window != nil {
		return model.Watermark{Start: params.Window.Start, End: params.Window.End}
	}
	end := params.EvaluationCutoff
	if end.IsZero() {
		end = now.UTC()
	}
	return model.Watermark{End: end}
}
