package emotion

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/kozaktomas/facemood/internal/config"
	"github.com/kozaktomas/facemood/internal/pipeline"
)

//go:embed prompts/emotion.txt
var emotionPrompt string

// maxImageSize bounds the longest edge of frames uploaded to LLM providers.
const maxImageSize = 512

// Emotion is the classifier verdict shared with the capture pipeline.
type Emotion = pipeline.Emotion

// Provider is an emotion classifier backend.
type Provider interface {
	pipeline.EmotionClassifier
	Name() string
	GetUsage() Usage
	ResetUsage()
}

// Usage tracks token usage and calculates cost.
type Usage struct {
	Requests     int
	InputTokens  int
	OutputTokens int
	TotalCost    float64 // in USD
}

// RequestPricing holds input/output prices per 1M tokens
type RequestPricing struct {
	Input  float64
	Output float64
}

// usageMeter is shared by providers. Classify may be called from concurrent HTTP handlers.
type usageMeter struct {
	mu      sync.Mutex
	usage   Usage
	pricing RequestPricing
}

func (m *usageMeter) GetUsage() Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

func (m *usageMeter) ResetUsage() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = Usage{}
}

func (m *usageMeter) trackUsage(inputTokens, outputTokens int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage.Requests++
	m.usage.InputTokens += int(inputTokens)
	m.usage.OutputTokens += int(outputTokens)
	m.usage.TotalCost += float64(inputTokens) / 1_000_000 * m.pricing.Input
	m.usage.TotalCost += float64(outputTokens) / 1_000_000 * m.pricing.Output
}

// New builds the provider selected by cfg.Emotion.Provider.
func New(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.Emotion.Provider {
	case "", "deepface":
		return NewDeepFaceProvider(cfg.Emotion.URL), nil
	case "openai":
		if cfg.OpenAI.Token == "" {
			return nil, errors.New("OPENAI_TOKEN environment variable is required for the openai emotion provider")
		}
		return NewOpenAIProvider(cfg.OpenAI.Token, cfg.OpenAI.Model, pricingFor(cfg, cfg.OpenAI.Model)), nil
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, errors.New("GEMINI_API_KEY environment variable is required for the gemini emotion provider")
		}
		return NewGeminiProvider(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, pricingFor(cfg, cfg.Gemini.Model))
	case "ollama":
		return NewOllamaProvider(cfg.Ollama.URL, cfg.Ollama.Model), nil
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown emotion provider %q (expected deepface, openai, gemini, ollama or none)", cfg.Emotion.Provider)
}

func pricingFor(cfg *config.Config, model string) RequestPricing {
	p := cfg.GetModelPricing(model).Standard
	return RequestPricing{Input: p.Input, Output: p.Output}
}
