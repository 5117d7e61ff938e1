package recognition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/facemood/internal/database"
	"github.com/kozaktomas/facemood/internal/pipeline"
)

// FrameReport describes what happened to one frame. It is what a presentation
// layer renders (name, emotion, confidence).
type FrameReport struct {
	Frame       int              `json:"frame"`
	Outcome     pipeline.Outcome `json:"outcome"`
	Match       MatchResult      `json:"match"`
	Emotion     pipeline.Emotion `json:"emotion"`
	Recorded    bool             `json:"recorded"`
	DetectionID int64            `json:"detection_id,omitempty"`
	Err         error            `json:"-"`
}

// Summary counts the frames handled by a session.
type Summary struct {
	SessionID string `json:"session_id"`
	Frames    int    `json:"frames"`
	Faces     int    `json:"faces"`
	Matches   int    `json:"matches"`
	Recorded  int    `json:"recorded"`
}

// Session is one capture/recognition loop. Detection events are written only for
// frames whose face matched an enrolled identity.
type Session struct {
	ID string

	index     *IdentityIndex
	pipeline  *pipeline.Pipeline
	recorder  database.DetectionWriter
	threshold float64

	// Record disables event persistence when false.
	Record bool
	// FrameInterval is the minimum pause between frames.
	FrameInterval time.Duration
	// OnFrame is called after every processed frame.
	OnFrame func(FrameReport)

	frames int
}

func NewSession(index *IdentityIndex, p *pipeline.Pipeline, recorder database.DetectionWriter, threshold float64) *Session {
	return &Session{
		ID:        uuid.NewString(),
		index:     index,
		pipeline:  p,
		recorder:  recorder,
		threshold: threshold,
		Record:    true,
	}
}

// ProcessFrame runs one locate, embed, match, classify and record cycle.
// Face and classifier failures degrade the report; only match and storage errors
// are returned.
func (s *Session) ProcessFrame(ctx context.Context, frame []byte) (FrameReport, error) {
	s.frames++
	report := FrameReport{Frame: s.frames, Emotion: pipeline.Unknown()}

	obs := s.pipeline.Observe(ctx, frame)
	report.Outcome = obs.Outcome
	report.Err = obs.Err

	match, err := s.index.Recognize(obs.Embedding, s.threshold)
	if err != nil {
		return report, fmt.Errorf("frame %d: %w", report.Frame, err)
	}
	report.Match = match

	if obs.Outcome != pipeline.OutcomeNoFace {
		report.Emotion = s.pipeline.Classify(ctx, frame)
	}

	if !match.Matched || !s.Record || s.recorder == nil {
		return report, nil
	}

	id, err := s.recorder.RecordDetection(ctx, database.NewDetection{
		IdentityID: match.IdentityID,
		Emotion:    report.Emotion.Label,
		Confidence: report.Emotion.Confidence,
		SessionID:  s.ID,
	})
	if err != nil {
		return report, fmt.Errorf("frame %d: record detection: %w", report.Frame, err)
	}
	report.Recorded = true
	report.DetectionID = id
	return report, nil
}

// Run processes frames from source until it is exhausted (io.EOF) or ctx is cancelled.
// Cancellation is checked between frames and is not an error.
func (s *Session) Run(ctx context.Context, source pipeline.FrameSource) (Summary, error) {
	summary := Summary{SessionID: s.ID}

	for {
		if ctx.Err() != nil {
			return summary, nil
		}

		frame, err := source.Next(ctx)
		if errors.Is(err, io.EOF) {
			return summary, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return summary, nil
			}
			return summary, fmt.Errorf("read frame: %w", err)
		}

		report, err := s.ProcessFrame(ctx, frame)
		summary.Frames++
		if report.Outcome != pipeline.OutcomeNoFace {
			summary.Faces++
		}
		if report.Match.Matched {
			summary.Matches++
		}
		if report.Recorded {
			summary.Recorded++
		}
		if err != nil {
			if ctx.Err() != nil {
				return summary, nil
			}
			return summary, err
		}

		if s.OnFrame != nil {
			s.OnFrame(report)
		}

		if s.FrameInterval > 0 {
			select {
			case <-ctx.Done():
				return summary, nil
			case <-time.After(s.FrameInterval):
			}
		}
	}
}
