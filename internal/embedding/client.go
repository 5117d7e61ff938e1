package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/facemood/internal/pipeline"
)

const (
	defaultURL   = "http://localhost:5005"
	defaultModel = "Facenet"

	// skip tells the service the input is already a cropped face.
	detectorSkip = "skip"
)

// Client computes face embeddings using a DeepFace-compatible /represent endpoint.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewClient creates a new embedding client.
func NewClient(baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = defaultURL
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type representRequest struct {
	Img              string `json:"img"`
	ModelName        string `json:"model_name"`
	DetectorBackend  string `json:"detector_backend"`
	EnforceDetection bool   `json:"enforce_detection"`
}

type representResponse struct {
	Results []struct {
		Embedding      []float32 `json:"embedding"`
		FaceConfidence float64   `json:"face_confidence"`
	} `json:"results"`
}

// Embed returns the embedding of a cropped face. Every failure wraps pipeline.ErrExtractionFailed.
func (c *Client) Embed(ctx context.Context, face []byte) ([]float32, error) {
	if len(face) == 0 {
		return nil, fmt.Errorf("%w: empty image", pipeline.ErrExtractionFailed)
	}

	body, err := c.postJSON(ctx, "/represent", representRequest{
		Img:              DataURI(face),
		ModelName:        c.model,
		DetectorBackend:  detectorSkip,
		EnforceDetection: false,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pipeline.ErrExtractionFailed, err)
	}

	var resp representResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %w", pipeline.ErrExtractionFailed, err)
	}
	if len(resp.Results) == 0 || len(resp.Results[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding returned", pipeline.ErrExtractionFailed)
	}

	return resp.Results[0].Embedding, nil
}

// Model returns the model name being used.
func (c *Client) Model() string {
	return c.model
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// DataURI encodes image bytes as a base64 data URI with a sniffed MIME type.
func DataURI(data []byte) string {
	return "data:" + DetectMIMEType(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DetectMIMEType detects the MIME type from image magic bytes.
func DetectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// BMP: 42 4D
	if data[0] == 0x42 && data[1] == 0x4D {
		return "image/bmp"
	}
	return "application/octet-stream"
}
