package fetcher

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/curator-cli/internal/model"
)

// columnAliases maps the header names seen across annotation tool exports to
// canonical field names.
var columnAliases = map[string]string{
	"item_id":          "item_id",
	"id":               "item_id",
	"sample_id":        "item_id",
	"annotator_id":     "annotator_id",
	"annotator":        "annotator_id",
	"text":             "text",
	"sample_text":      "text",
	"label":            "label",
	"confidence":       "confidence",
	"confidence_score": "confidence",
	"event_time":       "event_time",
	"annotation_time":  "annotation_time",
	"annotated_at":     "annotation_time",
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// EventMapper converts export rows into annotation events based on the
// export's header row.
type EventMapper struct {
	index map[string]int
}

// NewEventMapper builds a mapper from a header row. A label column is
// mandatory; so is either item_id or text (older exports identify items by
// their text, in which case the normalized text doubles as the item id).
func NewEventMapper(header []string) (*EventMapper, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		canonical, ok := columnAliases[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		if _, dup := index[canonical]; !dup {
			index[canonical] = i
		}
	}

	if _, ok := index["label"]; !ok {
		return nil, eris.New("mapper: export has no label column")
	}
	_, hasID := index["item_id"]
	_, hasText := index["text"]
	if !hasID && !hasText {
		return nil, eris.New("mapper: export has neither item_id nor text column")
	}

	return &EventMapper{index: index}, nil
}

func (m *EventMapper) cell(row []string, field string) string {
	i, ok := m.index[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Event converts one row. Text and labels are NFC-normalized so published
// artifact bytes do not depend on the exporter's Unicode form. The returned
// event may still fail Validate; the importer decides how to handle that.
func (m *EventMapper) Event(row []string) (model.AnnotationEvent, error) {
	text := norm.NFC.String(m.cell(row, "text"))

	ev := model.AnnotationEvent{
		ItemID:      m.cell(row, "item_id"),
		AnnotatorID: m.cell(row, "annotator_id"),
		Text:        text,
		Label:       norm.NFC.String(m.cell(row, "label")),
	}
	if ev.ItemID == "" {
		ev.ItemID = text
	}

	if raw := m.cell(row, "confidence"); raw != "" {
		c, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return ev, eris.Wrapf(model.ErrMalformedEvent, "unparseable confidence %q for item %s", raw, ev.ItemID)
		}
		if c < 0 || c > 1 {
			return ev, eris.Wrapf(model.ErrMalformedEvent, "confidence %v outside [0,1] for item %s", c, ev.ItemID)
		}
		ev.Confidence = &c
	}

	var err error
	if ev.EventTime, err = parseTime(m.cell(row, "event_time")); err != nil {
		return ev, eris.Wrapf(model.ErrMalformedEvent, "unparseable event_time for item %s", ev.ItemID)
	}
	if ev.AnnotationTime, err = parseTime(m.cell(row, "annotation_time")); err != nil {
		return ev, eris.Wrapf(model.ErrMalformedEvent, "unparseable annotation_time for item %s", ev.ItemID)
	}

	return ev, nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, eris.Errorf("unrecognized timestamp %q", raw)
}
