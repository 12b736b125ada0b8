package model

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnotationEventValidate(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("valid", func(t *testing.T) {
		ev := AnnotationEvent{
			ItemID:         "item-1",
			AnnotatorID:    "ann-a",
			Label:          "positive",
			EventTime:      base,
			AnnotationTime: base.Add(time.Hour),
		}
		assert.NoError(t, ev.Validate())
	})

	t.Run("missing item id", func(t *testing.T) {
		ev := AnnotationEvent{Label: "positive"}
		err := ev.Validate()
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrMalformedEvent))
	})

	t.Run("missing label", func(t *testing.T) {
		ev := AnnotationEvent{ItemID: "item-1"}
		err := ev.Validate()
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrMalformedEvent))
	})

	t.Run("annotation before event", func(t *testing.T) {
		ev := AnnotationEvent{
			ItemID:         "item-1",
			Label:          "positive",
			EventTime:      base,
			AnnotationTime: base.Add(-time.Minute),
		}
		err := ev.Validate()
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrMalformedEvent))
	})

	t.Run("zero times are allowed", func(t *testing.T) {
		ev := AnnotationEvent{ItemID: "item-1", Label: "positive"}
		assert.NoError(t, ev.Validate())
	})
}

func TestTimeRangeContains(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	r := TimeRange{Start: start, End: end}
	assert.True(t, r.Contains(start), "closed interval includes start")
	assert.True(t, r.Contains(end), "closed interval includes end")
	assert.True(t, r.Contains(start.Add(24*time.Hour)))
	assert.False(t, r.Contains(start.Add(-time.Second)))
	assert.False(t, r.Contains(end.Add(time.Second)))
	assert.False(t, r.Contains(time.Time{}), "zero timestamp outside bounded range")

	unbounded := TimeRange{}
	assert.True(t, unbounded.Contains(time.Time{}))
	assert.True(t, unbounded.Contains(end.AddDate(10, 0, 0)))

	openEnd := TimeRange{Start: start}
	assert.True(t, openEnd.Contains(end.AddDate(1, 0, 0)))
	assert.False(t, openEnd.Contains(start.Add(-time.Hour)))
}

func TestWindowTime(t *testing.T) {
	et := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	at := et.Add(time.Hour)
	ev := AnnotationEvent{EventTime: et, AnnotationTime: at}

	assert.Equal(t, et, ev.WindowTime(WindowByEventTime))
	assert.Equal(t, at, ev.WindowTime(WindowByAnnotationTime))
	assert.Equal(t, et, ev.WindowTime(""), "event_time is the default policy")
}

func TestRunParamsValidate(t *testing.T) {
	valid := RunParams{ConfidenceThreshold: 0.8, LogicVersion: "qc-v2"}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		params RunParams
	}{
		{"threshold above one", RunParams{ConfidenceThreshold: 1.1, LogicVersion: "qc-v2"}},
		{"negative threshold", RunParams{ConfidenceThreshold: -0.1, LogicVersion: "qc-v2"}},
		{"missing logic version", RunParams{ConfidenceThreshold: 0.8}},
		{"unknown window field", RunParams{ConfidenceThreshold: 0.8, LogicVersion: "qc-v2", WindowField: "ingest_time"}},
		{"inverted window", RunParams{
			ConfidenceThreshold: 0.8,
			LogicVersion:        "qc-v2",
			Window: &TimeRange{
				Start: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			},
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.params.Validate())
		})
	}
}
