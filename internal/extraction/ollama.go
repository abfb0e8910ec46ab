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

// ollamaConfidence is the base confidence for Ollama transcriptions. Local
// vision models read receipts noticeably worse than the cloud back-ends, so a
// usable answer ranks below the early-exit threshold and the orchestrator will
// keep it only if nothing better turned up.
const ollamaConfidence = 70

// Ollama implements the Extractor interface using a local Ollama instance.
// It is the baseline back-end: it needs no credential and defaults to the
// standard local address, so it is always registered.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates a new Ollama extractor.
// Recommended vision models, best first: llava:1.6, llava:latest, qwen2-vl:7b,
// bakllava, llava-phi3.
func NewOllama(baseURL string, modelName string) *Ollama {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}

	return &Ollama{
		baseURL: baseURL,
		model:   modelName,
		client: &http.Client{
			// Local vision models can be slow; per-call deadlines come from
			// the caller's context, this is a hard backstop.
			Timeout: 120 * time.Second,
		},
	}
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Images   []string        `json:"images,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Name returns the extractor identifier.
func (o *Ollama) Name() string {
	return "ollama"
}

// Extract transcribes all visible text from the image.
func (o *Ollama) Extract(ctx context.Context, data []byte, contentType string) (Result, error) {
	pngData, err := normalizeImage(data, contentType)
	if err != nil {
		return Result{}, err
	}

	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You are an expert at reading text in photographs of receipts and invoices. You transcribe exactly what is printed, without interpretation.",
			},
			{
				Role:    "user",
				Content: transcriptionPrompt,
			},
		},
		Images: []string{base64.StdEncoding.EncodeToString(pngData)},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Result{}, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return Result{}, fmt.Errorf("decoding response: %w", err)
	}

	text := stripCodeFences(chatResp.Message.Content)
	if text == "" {
		return Result{}, fmt.Errorf("empty transcription from ollama")
	}

	return Result{Text: text, Confidence: transcriptionConfidence(text, ollamaConfidence)}, nil
}

// Close closes the extractor (no-op for an HTTP client).
func (o *Ollama) Close() error {
	return nil
}
