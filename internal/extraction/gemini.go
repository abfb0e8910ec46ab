package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	// geminiConfidence is assigned to usable transcriptions. The API does not
	// report a numeric confidence, and Gemini is the strongest back-end in the
	// chain, so a usable answer clears the early-exit threshold.
	geminiConfidence = 92
	// shortTextConfidence is assigned when the transcription is too short to
	// plausibly be a receipt; the result still flows to the parser, ranked low.
	shortTextConfidence = 30
	// minUsableTextLen separates a real transcription from a refusal or an
	// empty-image answer.
	minUsableTextLen = 20
)

// Gemini implements the Extractor interface using Google Gemini.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini extractor.
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

// Name returns the extractor identifier.
func (g *Gemini) Name() string {
	return "gemini"
}

// Extract transcribes all visible text from the image.
func (g *Gemini) Extract(ctx context.Context, data []byte, contentType string) (Result, error) {
	pngData, err := normalizeImage(data, contentType)
	if err != nil {
		return Result{}, err
	}

	// genai.ImageData wants the bare format suffix, and normalizeImage always
	// yields PNG.
	parts := []genai.Part{
		genai.ImageData("png", pngData),
		genai.Text(transcriptionPrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return Result{}, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return Result{}, fmt.Errorf("no response from gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	text := stripCodeFences(sb.String())
	if text == "" {
		return Result{}, fmt.Errorf("empty transcription from gemini")
	}

	return Result{Text: text, Confidence: transcriptionConfidence(text, geminiConfidence)}, nil
}

// Close closes the underlying client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

// stripCodeFences removes markdown code fences that chat models wrap answers
// in despite instructions not to.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// transcriptionConfidence downgrades answers too short to be a real receipt.
func transcriptionConfidence(text string, base int) int {
	if len(text) < minUsableTextLen {
		return shortTextConfidence
	}
	return base
}
