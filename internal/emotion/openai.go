package emotion

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const defaultOpenAIModel = openai.ChatModelGPT4_1Mini

type OpenAIProvider struct {
	client *openai.Client
	model  string
	usage  usageMeter
}

func NewOpenAIProvider(apiKey, model string, pricing RequestPricing, opts ...option.RequestOption) *OpenAIProvider {
	if model == "" {
		model = defaultOpenAIModel
	}
	base := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	client := openai.NewClient(append(base, opts...)...)
	return &OpenAIProvider{
		client: &client,
		model:  model,
		usage:  usageMeter{pricing: pricing},
	}
}

func (p *OpenAIProvider) Name() string {
	return p.model
}

func (p *OpenAIProvider) GetUsage() Usage { return p.usage.GetUsage() }

func (p *OpenAIProvider) ResetUsage() { p.usage.ResetUsage() }

// Classify sends a single chat completion request; a malformed reply is a failure, not a retry.
func (p *OpenAIProvider) Classify(ctx context.Context, image []byte) (Emotion, error) {
	resized, err := ResizeImage(image, maxImageSize)
	if err != nil {
		return Emotion{}, classificationError(p.Name(), err)
	}
	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(resized)

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(emotionPrompt),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
							openai.TextContentPart("Classify the emotion of this face."),
							openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
								URL:    imageURL,
								Detail: "low",
							}),
						},
					},
				},
			},
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		MaxTokens: openai.Int(50),
	})
	if err != nil {
		return Emotion{}, classificationError(p.Name(), fmt.Errorf("OpenAI API error: %w", err))
	}

	if resp.Usage.PromptTokens > 0 || resp.Usage.CompletionTokens > 0 {
		p.usage.trackUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	if len(resp.Choices) == 0 {
		return Emotion{}, classificationError(p.Name(), errors.New("no response from OpenAI"))
	}

	emotion, err := parseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		return Emotion{}, classificationError(p.Name(), err)
	}
	return emotion, nil
}
