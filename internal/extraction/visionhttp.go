package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// VisionHTTP implements the Extractor interface against a generic OCR service
// reached over HTTPS. The service accepts a base64 image and returns plain
// text with a 0..1 confidence; everything about that wire shape stays inside
// this adapter.
type VisionHTTP struct {
	endpoint string
	apiKey   string
	locale   string
	client   *http.Client
}

// NewVisionHTTP creates a new VisionHTTP extractor. Both the endpoint and the
// API key are required; deployments without them simply do not register this
// back-end.
func NewVisionHTTP(endpoint, apiKey string) (*VisionHTTP, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("vision endpoint is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("vision api key is required")
	}

	return &VisionHTTP{
		endpoint: endpoint,
		apiKey:   apiKey,
		locale:   "en-US",
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

type visionRequest struct {
	Image  string `json:"image"`
	Locale string `json:"locale,omitempty"`
}

type visionResponse struct {
	RawAnswerText string   `json:"raw_answer_text"`
	Confidence    *float64 `json:"confidence"` // 0..1; absent when the service has no opinion
}

// Name returns the extractor identifier.
func (v *VisionHTTP) Name() string {
	return "vision-http"
}

// Extract sends the image to the OCR service and normalizes its response.
func (v *VisionHTTP) Extract(ctx context.Context, data []byte, contentType string) (Result, error) {
	pngData, err := normalizeImage(data, contentType)
	if err != nil {
		return Result{}, err
	}

	reqBody := visionRequest{
		Image:  base64.StdEncoding.EncodeToString(pngData),
		Locale: v.locale,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", v.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.apiKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("calling vision API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, fmt.Errorf("vision API error (status %d): %s", resp.StatusCode, string(body))
	}

	var visionResp visionResponse
	if err := json.NewDecoder(resp.Body).Decode(&visionResp); err != nil {
		return Result{}, fmt.Errorf("decoding response: %w", err)
	}

	if visionResp.RawAnswerText == "" {
		return Result{}, fmt.Errorf("empty text from vision API")
	}

	// An omitted confidence is "no opinion", not "worthless"; an explicit
	// zero is taken at face value.
	confidence := 50
	if visionResp.Confidence != nil {
		confidence = int(*visionResp.Confidence * 100)
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 100 {
			confidence = 100
		}
	}

	return Result{Text: visionResp.RawAnswerText, Confidence: confidence}, nil
}

// Close closes the extractor (no-op for an HTTP client).
func (v *VisionHTTP) Close() error {
	return nil
}
