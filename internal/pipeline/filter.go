// Package pipeline implements the annotation QC pipeline: confidence
// filtering, point-in-time gating, unanimous agreement resolution, and
// dataset version assembly.
package pipeline

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/curator-cli/internal/model"
)

// ImplicitConfidence is the confidence assigned to events that carry none.
// Policy: a human judgment with no reported score carries full trust. This is
// a deliberate business rule, not a fallback default.
const ImplicitConfidence = 1.0

// FilterStats counts events excluded before grouping, for run observability.
type FilterStats struct {
	Malformed     int `json:"malformed"`
	LowConfidence int `json:"low_confidence"`
	TimeExcluded  int `json:"time_excluded"`
}

// Dropped returns the total number of excluded events.
func (s FilterStats) Dropped() int {
	return s.Malformed + s.LowConfidence + s.TimeExcluded
}

// Filter applies QC1 (confidence) and the point-in-time gate, returning the
// order-preserved subsequence of events eligible for agreement resolution.
//
// An event survives when all of:
//   - it is well-formed (item id and label present, times consistent);
//   - its confidence, or ImplicitConfidence when absent, is >= threshold;
//   - its event_time does not exceed its annotation_time or the evaluation
//     cutoff (a zero cutoff disables that check).
//
// Malformed events are skipped with a warning; they never abort the run.
func Filter(events []model.AnnotationEvent, threshold float64, cutoff time.Time) ([]model.AnnotationEvent, FilterStats) {
	var stats FilterStats
	out := make([]model.AnnotationEvent, 0, len(events))

	for _, ev := range events {
		// Point-in-time gate runs first: an event claiming to postdate its
		// own annotation, or the evaluation cutoff, must not leak labels into
		// this version regardless of any other defect.
		if !ev.EventTime.IsZero() {
			if (!ev.AnnotationTime.IsZero() && ev.EventTime.After(ev.AnnotationTime)) ||
				(!cutoff.IsZero() && ev.EventTime.After(cutoff)) {
				stats.TimeExcluded++
				continue
			}
		}

		if err := ev.Validate(); err != nil {
			stats.Malformed++
			zap.L().Warn("filter: skipping malformed event",
				zap.String("item_id", ev.ItemID),
				zap.String("annotator_id", ev.AnnotatorID),
				zap.Error(err),
			)
			continue
		}

		confidence := ImplicitConfidence
		if ev.Confidence != nil {
			confidence = *ev.Confidence
		}
		if confidence < threshold {
			stats.LowConfidence++
			continue
		}

		out = append(out, ev)
	}

	return out, stats
}
