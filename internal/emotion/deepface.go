package emotion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/facemood/internal/embedding"
)

const defaultDeepFaceURL = "http://localhost:5005"

// DeepFaceProvider classifies emotions with a DeepFace-compatible /analyze endpoint.
// Its confidences are already on the 0-100 scale.
type DeepFaceProvider struct {
	baseURL string
	client  *http.Client
	usage   usageMeter
}

func NewDeepFaceProvider(baseURL string) *DeepFaceProvider {
	if baseURL == "" {
		baseURL = defaultDeepFaceURL
	}
	return &DeepFaceProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *DeepFaceProvider) Name() string {
	return "deepface"
}

func (p *DeepFaceProvider) GetUsage() Usage { return p.usage.GetUsage() }

func (p *DeepFaceProvider) ResetUsage() { p.usage.ResetUsage() }

type analyzeRequest struct {
	Img              string   `json:"img"`
	Actions          []string `json:"actions"`
	EnforceDetection bool     `json:"enforce_detection"`
}

type analyzeResponse struct {
	Results []struct {
		DominantEmotion string             `json:"dominant_emotion"`
		Emotion         map[string]float64 `json:"emotion"`
	} `json:"results"`
}

// Classify reports the dominant emotion and its score.
func (p *DeepFaceProvider) Classify(ctx context.Context, image []byte) (Emotion, error) {
	reqBody, err := json.Marshal(analyzeRequest{
		Img:              embedding.DataURI(image),
		Actions:          []string{"emotion"},
		EnforceDetection: false,
	})
	if err != nil {
		return Emotion{}, classificationError(p.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/analyze", bytes.NewReader(reqBody))
	if err != nil {
		return Emotion{}, classificationError(p.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Emotion{}, classificationError(p.Name(), fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Emotion{}, classificationError(p.Name(), fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return Emotion{}, classificationError(p.Name(), fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body)))
	}

	var result analyzeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return Emotion{}, classificationError(p.Name(), fmt.Errorf("failed to parse response: %w", err))
	}
	p.usage.trackUsage(0, 0)

	if len(result.Results) == 0 || result.Results[0].DominantEmotion == "" {
		return Emotion{}, classificationError(p.Name(), errors.New("no emotion in response"))
	}

	first := result.Results[0]
	return Emotion{
		Label:      first.DominantEmotion,
		Confidence: first.Emotion[first.DominantEmotion],
	}, nil
}
