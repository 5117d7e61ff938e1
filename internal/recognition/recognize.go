package recognition

import (
	"github.com/kozaktomas/facemood/internal/facematch"
)

// MatchResult is the identity decision for one embedding.
//
// Compared is false when no comparison was performed (no embedding, or nobody enrolled);
// Distance is meaningful only when Compared is true. IdentityID and Label are set only
// when Matched.
type MatchResult struct {
	Compared   bool    `json:"compared"`
	Matched    bool    `json:"matched"`
	IdentityID int64   `json:"identity_id,omitempty"`
	Label      string  `json:"label"`
	Distance   float64 `json:"distance"`
}

// UnknownLabel is shown for faces that did not match any enrolled identity.
const UnknownLabel = "Unknown"

// Recognize finds the nearest enrolled identity and accepts it iff its distance is
// strictly below threshold. It has no side effects.
func Recognize(index *facematch.Index, embedding []float32, threshold float64) (MatchResult, error) {
	result := MatchResult{Label: UnknownLabel}
	if len(embedding) == 0 {
		return result, nil
	}

	match, ok, err := index.Nearest(embedding)
	if err != nil {
		return result, err
	}
	if !ok {
		return result, nil
	}

	result.Compared = true
	result.Distance = match.Distance
	if match.Distance < threshold {
		result.Matched = true
		result.IdentityID = match.Entry.ID
		result.Label = match.Entry.Label
	}
	return result, nil
}
