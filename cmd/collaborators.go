package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/facemood/internal/config"
	"github.com/kozaktomas/facemood/internal/embedding"
	"github.com/kozaktomas/facemood/internal/emotion"
	"github.com/kozaktomas/facemood/internal/pipeline"
	"github.com/kozaktomas/facemood/internal/vision"
)

// collaborators holds the process-wide face locator, extractor and classifier.
type collaborators struct {
	pipeline *pipeline.Pipeline
	emotion  emotion.Provider
	locator  *vision.CascadeLocator
}

// newCollaborators builds the pipeline. withEmotion=false skips the classifier
// for commands that only need embeddings.
func newCollaborators(ctx context.Context, cfg *config.Config, withEmotion bool) (*collaborators, error) {
	c := &collaborators{}

	var locator pipeline.FaceLocator
	if !skipDetection {
		l, err := vision.NewCascadeLocator(cfg.Capture.CascadePath, cfg.Capture.MinFaceSize)
		if err != nil {
			return nil, fmt.Errorf("%w (set CASCADE_PATH or use --no-detect)", err)
		}
		c.locator = l
		locator = l
	}

	extractor := embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.Model)

	var classifier pipeline.EmotionClassifier
	if withEmotion {
		provider, err := emotion.New(ctx, cfg)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create emotion provider: %w", err)
		}
		if provider != nil {
			c.emotion = provider
			classifier = provider
		}
	}

	c.pipeline = pipeline.New(locator, extractor, classifier)
	return c, nil
}

// printUsage reports LLM token usage and cost, if any requests were made.
func (c *collaborators) printUsage() {
	if c.emotion == nil {
		return
	}
	usage := c.emotion.GetUsage()
	if usage.Requests == 0 {
		return
	}
	fmt.Printf("\nEmotion provider: %s\n", c.emotion.Name())
	fmt.Printf("  Requests: %d\n", usage.Requests)
	if usage.InputTokens > 0 || usage.OutputTokens > 0 {
		fmt.Printf("  Tokens:   %d in / %d out\n", usage.InputTokens, usage.OutputTokens)
		fmt.Printf("  Cost:     $%.4f\n", usage.TotalCost)
	}
}

func (c *collaborators) Close() {
	if c.locator != nil {
		c.locator.Close()
	}
}
