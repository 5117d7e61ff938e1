package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Outcome classifies what a single frame produced.
type Outcome int

const (
	OutcomeEmbedded Outcome = iota
	OutcomeNoFace
	OutcomeExtractionFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmbedded:
		return "embedded"
	case OutcomeNoFace:
		return "no_face"
	case OutcomeExtractionFailed:
		return "extraction_failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Observation is the typed result of running locate and embed over one frame.
// Embedding is set only for OutcomeEmbedded; Err explains the other outcomes.
type Observation struct {
	Outcome   Outcome
	Face      []byte
	Embedding []float32
	Err       error
}

// HasEmbedding reports whether a comparison can be attempted.
func (o Observation) HasEmbedding() bool {
	return o.Outcome == OutcomeEmbedded && len(o.Embedding) > 0
}

// Pipeline chains the external collaborators used for every frame.
type Pipeline struct {
	locator    FaceLocator
	extractor  EmbeddingExtractor
	classifier EmotionClassifier
}

// New builds a Pipeline. A nil locator treats every input as an already-cropped face;
// a nil classifier always yields the Unknown emotion.
func New(locator FaceLocator, extractor EmbeddingExtractor, classifier EmotionClassifier) *Pipeline {
	if locator == nil {
		locator = WholeImage{}
	}
	return &Pipeline{
		locator:    locator,
		extractor:  extractor,
		classifier: classifier,
	}
}

// Observe locates the face in frame and extracts its embedding. It never returns an
// error: failures are reported through the Observation outcome so callers can degrade.
func (p *Pipeline) Observe(ctx context.Context, frame []byte) Observation {
	face, found, err := p.locator.Locate(ctx, frame)
	if err != nil {
		return Observation{Outcome: OutcomeNoFace, Err: fmt.Errorf("%w: %w", ErrNoFaceDetected, err)}
	}
	if !found {
		return Observation{Outcome: OutcomeNoFace, Err: ErrNoFaceDetected}
	}

	vec, err := p.extractor.Embed(ctx, face)
	if err != nil {
		if !errors.Is(err, ErrExtractionFailed) {
			err = fmt.Errorf("%w: %w", ErrExtractionFailed, err)
		}
		return Observation{Outcome: OutcomeExtractionFailed, Face: face, Err: err}
	}
	if len(vec) == 0 {
		return Observation{Outcome: OutcomeExtractionFailed, Face: face, Err: fmt.Errorf("%w: empty embedding", ErrExtractionFailed)}
	}
	return Observation{Outcome: OutcomeEmbedded, Face: face, Embedding: vec}
}

// Embed is the strict form of Observe used by enrollment: any outcome other than
// an embedding is returned as an error.
func (p *Pipeline) Embed(ctx context.Context, image []byte) ([]float32, error) {
	obs := p.Observe(ctx, image)
	if !obs.HasEmbedding() {
		return nil, obs.Err
	}
	return obs.Embedding, nil
}

// Classify runs the emotion classifier and substitutes Unknown on failure.
func (p *Pipeline) Classify(ctx context.Context, image []byte) Emotion {
	if p.classifier == nil {
		return Unknown()
	}
	emotion, err := p.classifier.Classify(ctx, image)
	if err != nil {
		log.Printf("Warning: %v", err)
		return Unknown()
	}
	if emotion.Label == "" {
		return Unknown()
	}
	return emotion
}
