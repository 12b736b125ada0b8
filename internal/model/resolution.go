package model

// Outcome classifies the resolution of one item.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeDisputed Outcome = "disputed"
)

// Vote is one annotator's surviving judgment within an item group.
type Vote struct {
	AnnotatorID string   `json:"annotator_id"`
	Label       string   `json:"label"`
	Confidence  *float64 `json:"confidence,omitempty"`
}

// ItemGroup holds all surviving events for one item within a single run.
// It is ephemeral: groups exist only between filtering and resolution.
type ItemGroup struct {
	ItemID string
	Events []AnnotationEvent
}

// Resolution is the outcome for one item: accepted with a single label, or
// disputed with every conflicting vote preserved for the review queue.
// Items with zero surviving events never produce a Resolution; they are
// excluded from both outputs (documented policy, not an accident).
type Resolution struct {
	ItemID  string  `json:"item_id"`
	Outcome Outcome `json:"outcome"`
	Text    string  `json:"text"`
	Label   string  `json:"label,omitempty"`
	Votes   []Vote  `json:"votes"`
}
