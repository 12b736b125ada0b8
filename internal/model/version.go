package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AcceptedItem is one published training record.
type AcceptedItem struct {
	ItemID string `json:"item_id"`
	Text   string `json:"text"`
	Label  string `json:"label"`
}

// DisputedItem is one quarantined record with its conflicting votes.
type DisputedItem struct {
	ItemID string `json:"item_id"`
	Text   string `json:"text"`
	Votes  []Vote `json:"votes"`
}

// Watermark records the time range of events a version considered.
type Watermark struct {
	Start time.Time `json:"start,omitempty" yaml:"start,omitempty"`
	End   time.Time `json:"end,omitempty" yaml:"end,omitempty"`
}

// DatasetVersion is the immutable unit of publication. Once committed to a
// VersionStore its content never changes; corrections require a new version.
type DatasetVersion struct {
	VersionID     string         `json:"version_id"`
	CreatedAt     time.Time      `json:"created_at"`
	ThresholdUsed float64        `json:"threshold_used"`
	LogicVersion  string         `json:"resolution_logic_version"`
	Watermark     Watermark      `json:"input_watermark"`
	ConfigRef     string         `json:"config_ref,omitempty"`
	Accepted      []AcceptedItem `json:"accepted_items"`
	Disputed      []DisputedItem `json:"disputed_items"`
}

// NewVersionID generates a timestamp-derived, globally unique identifier.
// The time prefix gives versions a human-scannable total order; the uuid
// suffix keeps concurrent runs from colliding.
func NewVersionID(now time.Time) string {
	return fmt.Sprintf("v%s-%s", now.UTC().Format("20060102T150405Z"), uuid.New().String()[:8])
}

// acceptedRecord fixes the field order of the published JSONL records.
type acceptedRecord struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// AcceptedJSONL serializes the accepted items as JSON Lines, one
// self-contained {"text","label"} record per line.
func (v *DatasetVersion) AcceptedJSONL() []byte {
	var buf bytes.Buffer
	for _, item := range v.Accepted {
		line, err := json.Marshal(acceptedRecord{Text: item.Text, Label: item.Label})
		if err != nil {
			// Marshalling a two-string struct cannot fail.
			continue
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// DisputedLog serializes the disputed items as a human-readable log, one item
// per line with every conflicting vote.
func (v *DatasetVersion) DisputedLog() []byte {
	var buf bytes.Buffer
	for _, item := range v.Disputed {
		votes := make([]string, len(item.Votes))
		for i, vote := range item.Votes {
			if vote.Confidence != nil {
				votes[i] = fmt.Sprintf("%s=%s(%.2f)", vote.AnnotatorID, vote.Label, *vote.Confidence)
			} else {
				votes[i] = fmt.Sprintf("%s=%s", vote.AnnotatorID, vote.Label)
			}
		}
		fmt.Fprintf(&buf, "ITEM: %s | VOTES: %s\n", item.ItemID, strings.Join(votes, ", "))
	}
	return buf.Bytes()
}

// ContentHash returns a hex digest of the version's published content. Two
// versions with equal hashes carry byte-identical accepted and disputed
// artifacts; stores use it to distinguish idempotent republish from collision.
func (v *DatasetVersion) ContentHash() string {
	h := sha256.New()
	h.Write(v.AcceptedJSONL())
	h.Write([]byte{0})
	h.Write(v.DisputedLog())
	return hex.EncodeToString(h.Sum(nil))
}

// Meta is the per-version metadata record handed to the lineage collaborator.
type Meta struct {
	VersionID     string    `json:"version_id" yaml:"version_id"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
	ThresholdUsed float64   `json:"threshold_used" yaml:"threshold_used"`
	LogicVersion  string    `json:"resolution_logic_version" yaml:"resolution_logic_version"`
	Watermark     Watermark `json:"input_watermark" yaml:"input_watermark"`
	ConfigRef     string    `json:"config_ref,omitempty" yaml:"config_ref,omitempty"`
	AcceptedCount int       `json:"accepted_count" yaml:"accepted_count"`
	DisputedCount int       `json:"disputed_count" yaml:"disputed_count"`
	ContentHash   string    `json:"content_hash" yaml:"content_hash"`
}

// Meta derives the metadata record for this version.
func (v *DatasetVersion) Meta() Meta {
	return Meta{
		VersionID:     v.VersionID,
		CreatedAt:     v.CreatedAt,
		ThresholdUsed: v.ThresholdUsed,
		LogicVersion:  v.LogicVersion,
		Watermark:     v.Watermark,
		ConfigRef:     v.ConfigRef,
		AcceptedCount: len(v.Accepted),
		DisputedCount: len(v.Disputed),
		ContentHash:   v.ContentHash(),
	}
}
