package suggest

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/alt-text-bot/internal/assets"
	"github.com/fpang/alt-text-bot/internal/retry"
)

// maxResponseBodyRead limits how much of a response body is read for error
// messages.
const maxResponseBodyRead = 4096

// APIClient generates suggestions through the dedicated suggestion API.
//
// Request:  POST <url> {"image": <base64>, "fileName", "prompt", "userPrompt", "model", "backend"}
// Response: {"altText": "..."} — absence of the field is a failure.
// A 429 status is the only retryable response; other non-2xx statuses are
// terminal for the attempt.
type APIClient struct {
	httpClient *http.Client
	url        string
	apiKey     string
	model      string
	backend    string
}

// NewAPIClient creates a suggestion API client. Per-call deadlines come from
// the caller's context (the retry policy), so the underlying http.Client has
// no timeout of its own.
func NewAPIClient(url, apiKey, model, backend string) *APIClient {
	return &APIClient{
		httpClient: &http.Client{},
		url:        url,
		apiKey:     apiKey,
		model:      model,
		backend:    backend,
	}
}

type apiRequest struct {
	Image      string `json:"image"`
	FileName   string `json:"fileName"`
	Prompt     string `json:"prompt"`
	UserPrompt string `json:"userPrompt"`
	Model      string `json:"model"`
	Backend    string `json:"backend"`
}

type apiResponse struct {
	AltText string `json:"altText"`
}

// Describe submits the image and returns the generated description.
func (c *APIClient) Describe(ctx context.Context, req Request) (string, error) {
	userPrompt := assets.AltTextUserPrompt
	if req.MetadataContext != "" {
		userPrompt = userPrompt + "\n\n" + req.MetadataContext
	}

	payload, err := json.Marshal(apiRequest{
		Image:      base64.StdEncoding.EncodeToString(req.Image),
		FileName:   req.Filename,
		Prompt:     assets.AltTextSystemPrompt,
		UserPrompt: userPrompt,
		Model:      c.model,
		Backend:    c.backend,
	})
	if err != nil {
		return "", fmt.Errorf("suggest api: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("suggest api: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("suggest api: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))
	log.Debug().
		Int("statusCode", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Str("file", req.Filename).
		Msg("Suggestion API response")

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("suggest api: status 429: %w", retry.ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", fmt.Errorf("suggest api: status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("suggest api: parse response: %w", err)
	}

	altText, ok := normalizeAltText(parsed.AltText)
	if !ok {
		return "", fmt.Errorf("suggest api: response missing altText")
	}
	return altText, nil
}

// truncate shortens s to at most n characters for log/error output.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
