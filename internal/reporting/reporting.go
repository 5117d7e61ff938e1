// Package reporting aggregates detection events per identity.
package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/facemood/internal/database"
)

// Store is the read-only storage the reports are computed from.
type Store interface {
	database.IdentityReader
	database.DetectionReader
}

// Report is the per-identity summary shown by the CLI and the API.
type Report struct {
	IdentityID      int64              `json:"identity_id"`
	Label           string             `json:"label"`
	Total           int                `json:"total"`
	EmotionCounts   map[string]int     `json:"emotion_counts"`
	MeanConfidence  map[string]float64 `json:"mean_confidence"`
	DominantEmotion string             `json:"dominant_emotion,omitempty"`
	FirstSeen       *time.Time         `json:"first_seen,omitempty"`
	LastSeen        *time.Time         `json:"last_seen,omitempty"`
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// History returns the identity's detection events, most recent first.
func (s *Service) History(ctx context.Context, identityID int64) ([]database.DetectionEvent, error) {
	if _, err := s.store.GetIdentity(ctx, identityID); err != nil {
		return nil, err
	}
	events, err := s.store.ListDetections(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("list detections for identity %d: %w", identityID, err)
	}
	return events, nil
}

// EmotionCounts returns how many events carry each emotion label.
func (s *Service) EmotionCounts(ctx context.Context, identityID int64) (map[string]int, error) {
	events, err := s.History(ctx, identityID)
	if err != nil {
		return nil, err
	}
	return countEmotions(events), nil
}

// MeanConfidenceByEmotion returns the arithmetic mean confidence per emotion label.
func (s *Service) MeanConfidenceByEmotion(ctx context.Context, identityID int64) (map[string]float64, error) {
	events, err := s.History(ctx, identityID)
	if err != nil {
		return nil, err
	}
	return meanConfidence(events), nil
}

// Summary builds the full report for one identity from a single read.
func (s *Service) Summary(ctx context.Context, identityID int64) (*Report, error) {
	identity, err := s.store.GetIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}
	events, err := s.store.ListDetections(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("list detections for identity %d: %w", identityID, err)
	}

	report := &Report{
		IdentityID:     identity.ID,
		Label:          identity.Label(),
		Total:          len(events),
		EmotionCounts:  countEmotions(events),
		MeanConfidence: meanConfidence(events),
	}
	report.DominantEmotion = dominant(report.EmotionCounts)

	if len(events) > 0 {
		// events are ordered most recent first
		last := events[0].DetectedAt
		first := events[len(events)-1].DetectedAt
		report.LastSeen = &last
		report.FirstSeen = &first
	}
	return report, nil
}

func countEmotions(events []database.DetectionEvent) map[string]int {
	counts := make(map[string]int)
	for _, e := range events {
		counts[e.Emotion]++
	}
	return counts
}

func meanConfidence(events []database.DetectionEvent) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, e := range events {
		sums[e.Emotion] += e.Confidence
		counts[e.Emotion]++
	}
	means := make(map[string]float64, len(sums))
	for label, sum := range sums {
		means[label] = sum / float64(counts[label])
	}
	return means
}

// dominant picks the most frequent label; ties resolve alphabetically.
func dominant(counts map[string]int) string {
	best := ""
	for label, n := range counts {
		if best == "" || n > counts[best] || (n == counts[best] && label < best) {
			best = label
		}
	}
	return best
}
