package emotion

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

type GeminiProvider struct {
	client *genai.Client
	model  string
	usage  usageMeter
}

func NewGeminiProvider(ctx context.Context, apiKey, model string, pricing RequestPricing) (*GeminiProvider, error) {
	if model == "" {
		model = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		model:  model,
		usage:  usageMeter{pricing: pricing},
	}, nil
}

func (p *GeminiProvider) Name() string {
	return p.model
}

func (p *GeminiProvider) GetUsage() Usage { return p.usage.GetUsage() }

func (p *GeminiProvider) ResetUsage() { p.usage.ResetUsage() }

func (p *GeminiProvider) Classify(ctx context.Context, image []byte) (Emotion, error) {
	resized, err := ResizeImage(image, maxImageSize)
	if err != nil {
		return Emotion{}, classificationError(p.Name(), err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: emotionPrompt},
				{InlineData: &genai.Blob{Data: resized, MIMEType: "image/jpeg"}},
			},
		},
	}

	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return Emotion{}, classificationError(p.Name(), fmt.Errorf("gemini API error: %w", err))
	}

	if result.UsageMetadata != nil {
		p.usage.trackUsage(int64(result.UsageMetadata.PromptTokenCount), int64(result.UsageMetadata.CandidatesTokenCount))
	}

	content := result.Text()
	if content == "" {
		return Emotion{}, classificationError(p.Name(), errors.New("no response from Gemini"))
	}

	emotion, err := parseVerdict(content)
	if err != nil {
		return Emotion{}, classificationError(p.Name(), err)
	}
	return emotion, nil
}
