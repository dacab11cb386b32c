package suggest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/alt-text-bot/internal/assets"
	"github.com/fpang/alt-text-bot/internal/retry"
)

// GeminiGenerator generates suggestions directly against the Gemini API,
// bypassing the suggestion-API hop. Used when only a Gemini key is
// configured.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Gemini-backed generator.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("suggest gemini: create client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Describe sends the image inline with the descriptive-task prompt and
// returns the model's text response.
func (g *GeminiGenerator) Describe(ctx context.Context, req Request) (string, error) {
	userPrompt := assets.AltTextUserPrompt
	if req.MetadataContext != "" {
		userPrompt = userPrompt + "\n\n" + req.MetadataContext
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: assets.AltTextSystemPrompt}},
		},
	}
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: req.MIMEType, Data: req.Image}},
			{Text: userPrompt},
		},
	}}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	duration := time.Since(start)
	if err != nil {
		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
			return "", fmt.Errorf("suggest gemini: %v: %w", err, retry.ErrRateLimited)
		}
		return "", fmt.Errorf("suggest gemini: generate content: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("suggest gemini: empty response")
	}

	log.Debug().
		Str("model", g.model).
		Str("file", req.Filename).
		Dur("duration", duration).
		Msg("Gemini response received")

	altText, ok := normalizeAltText(resp.Text())
	if !ok {
		return "", fmt.Errorf("suggest gemini: blank description in response")
	}
	return altText, nil
}
