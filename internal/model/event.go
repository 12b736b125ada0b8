// Package model defines the shared data model for the annotation QC pipeline.
package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// ErrMalformedEvent marks an annotation event missing required fields or
// violating the event/annotation time invariant. Malformed events are skipped
// with a warning, never aborting a run.
var ErrMalformedEvent = eris.New("malformed annotation event")

// WindowField selects which timestamp a time window is applied to.
type WindowField string

const (
	WindowByEventTime      WindowField = "event_time"
	WindowByAnnotationTime WindowField = "annotation_time"
)

// AnnotationEvent is one annotator's judgment on one item.
// Confidence is nil when the annotator did not report one; policy for absent
// confidence lives in the filter (see pipeline.ImplicitConfidence).
type AnnotationEvent struct {
	ItemID         string    `json:"item_id"`
	AnnotatorID    string    `json:"annotator_id"`
	Text           string    `json:"text"`
	Label          string    `json:"label"`
	Confidence     *float64  `json:"confidence,omitempty"`
	EventTime      time.Time `json:"event_time"`
	AnnotationTime time.Time `json:"annotation_time"`
}

// Validate checks the structural invariants of an event. A missing item id or
// label makes the event malformed, as does an annotation recorded before the
// underlying item existed.
func (e AnnotationEvent) Validate() error {
	if e.ItemID == "" {
		return eris.Wrap(ErrMalformedEvent, "missing item_id")
	}
	if e.Label == "" {
		return eris.Wrapf(ErrMalformedEvent, "missing label for item %s", e.ItemID)
	}
	if !e.EventTime.IsZero() && !e.AnnotationTime.IsZero() && e.AnnotationTime.Before(e.EventTime) {
		return eris.Wrapf(ErrMalformedEvent, "annotation_time before event_time for item %s", e.ItemID)
	}
	return nil
}

// WindowTime returns the timestamp used for window membership under the given
// policy.
func (e AnnotationEvent) WindowTime(field WindowField) time.Time {
	if field == WindowByAnnotationTime {
		return e.AnnotationTime
	}
	return e.EventTime
}

// TimeRange is a closed interval [Start, End]. A zero Start or End leaves that
// side unbounded; a nil *TimeRange means all history.
type TimeRange struct {
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// Contains reports whether t falls inside the range. The zero time is treated
// as outside any bounded range so events without the windowed timestamp do not
// leak into windowed runs.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() {
		if t.IsZero() || t.Before(r.Start) {
			return false
		}
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// RunParams is the explicit, immutable parameter set for one pipeline run.
// Every component receives it by value; there is no ambient run state, so
// concurrent runs with different parameters cannot interfere.
type RunParams struct {
	ConfidenceThreshold float64     `json:"confidence_threshold"`
	LogicVersion        string      `json:"resolution_logic_version"`
	Window              *TimeRange  `json:"time_window,omitempty"`
	WindowField         WindowField `json:"window_field,omitempty"`
	EvaluationCutoff    time.Time   `json:"evaluation_cutoff,omitempty"`
	VersionID           string      `json:"version_id,omitempty"`
	ConfigRef           string      `json:"config_ref,omitempty"`
	Partitions          int         `json:"partitions,omitempty"`
}

// Validate rejects parameter sets that would make a run meaningless.
func (p RunParams) Validate() error {
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return eris.Errorf("confidence threshold %v outside [0,1]", p.ConfidenceThreshold)
	}
	if p.LogicVersion == "" {
		return eris.New("resolution logic version is required")
	}
	switch p.WindowField {
	case "", WindowByEventTime, WindowByAnnotationTime:
	default:
		return eris.Errorf("unknown window field %q", p.WindowField)
	}
	if p.Window != nil && !p.Window.Start.IsZero() && !p.Window.End.IsZero() && p.Window.End.Before(p.Window.Start) {
		return eris.New("time window end before start")
	}
	return nil
}
