package emotion

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kozaktomas/facemood/internal/pipeline"
)

// verdict is the JSON object LLM providers are asked to return.
type verdict struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

// parseVerdict decodes an LLM reply into an Emotion. Confidences given as a
// 0-1 fraction are scaled to percent; the result is clamped to [0, 100].
func parseVerdict(content string) (pipeline.Emotion, error) {
	var v verdict
	if err := json.Unmarshal([]byte(extractJSON(content)), &v); err != nil {
		return pipeline.Emotion{}, fmt.Errorf("failed to parse emotion JSON: %w (response: %s)", err, content)
	}

	label := strings.ToLower(strings.TrimSpace(v.Emotion))
	if label == "" {
		return pipeline.Emotion{}, fmt.Errorf("empty emotion label (response: %s)", content)
	}

	conf := v.Confidence
	if conf > 0 && conf <= 1 {
		conf *= 100
	}
	conf = min(max(conf, 0), 100)

	return pipeline.Emotion{Label: label, Confidence: conf}, nil
}

// extractJSON attempts to extract JSON from a response that may contain extra text
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	if start == -1 {
		return content
	}

	depth := 0
	for i := start; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}

	return content[start:]
}

// classificationError wraps a provider failure so callers can recognise it.
func classificationError(provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", pipeline.ErrClassificationFailed, provider, err)
}
