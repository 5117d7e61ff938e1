package pipeline

import (
	"context"
	"errors"
)

var (
	ErrNoFaceDetected       = errors.New("no face detected in image")
	ErrExtractionFailed     = errors.New("embedding extraction failed")
	ErrClassificationFailed = errors.New("emotion classification failed")
)

// UnknownEmotion is the label substituted when the classifier fails.
const UnknownEmotion = "Unknown"

// Emotion is a classifier verdict. Confidence is on the 0-100 scale the classifier reports.
type Emotion struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Unknown returns the placeholder emotion used when classification is unavailable.
func Unknown() Emotion {
	return Emotion{Label: UnknownEmotion, Confidence: 0}
}

// FaceLocator crops the face out of a frame. found is false when no face is present.
type FaceLocator interface {
	Locate(ctx context.Context, image []byte) (face []byte, found bool, err error)
}

// EmbeddingExtractor turns a cropped face into a fixed-length vector.
// Errors wrap ErrExtractionFailed.
type EmbeddingExtractor interface {
	Embed(ctx context.Context, face []byte) ([]float32, error)
}

// EmotionClassifier labels the emotion shown in an image.
// Errors wrap ErrClassificationFailed.
type EmotionClassifier interface {
	Classify(ctx context.Context, image []byte) (Emotion, error)
}

// FrameSource yields frames until it returns io.EOF.
type FrameSource interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// WholeImage is a FaceLocator for inputs that are already cropped faces.
type WholeImage struct{}

func (WholeImage) Locate(_ context.Context, image []byte) ([]byte, bool, error) {
	if len(image) == 0 {
		return nil, false, nil
	}
	return image, true, nil
}
