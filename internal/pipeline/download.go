package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/alt-text-bot/internal/retry"
)

// maxImageBytes bounds a single image download. Slack caps uploads well below
// this; anything larger is rejected rather than buffered.
const maxImageBytes = 50 << 20 // 50 MB

// Download is the fetched image payload.
type Download struct {
	Data     []byte
	MIMEType string
}

// Fetcher retrieves image bytes from a platform URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Download, error)
}

// HTTPFetcher fetches private Slack file URLs with bearer authentication.
// Per-call deadlines come from the caller's context (the retry policy).
type HTTPFetcher struct {
	httpClient *http.Client
	token      string
}

// NewHTTPFetcher creates a fetcher authenticating with the given bot token.
func NewHTTPFetcher(token string) *HTTPFetcher {
	return &HTTPFetcher{httpClient: &http.Client{}, token: token}
}

// Fetch performs an authenticated GET. A 429 is classified retryable; 401 and
// 403 indicate credential or scope misconfiguration and are surfaced loudly
// since no retry will fix them.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("download: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.token)

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("download: status 429: %w", retry.ErrRateLimited)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		log.Error().Int("statusCode", resp.StatusCode).Msg("File download rejected: check bot token scopes")
		return nil, fmt.Errorf("download: status %d: credential or scope misconfiguration", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("download: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("download: read body: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("download: image exceeds %d bytes", maxImageBytes)
	}

	log.Debug().
		Int("bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("Image downloaded")

	return &Download{Data: data, MIMEType: resp.Header.Get("Content-Type")}, nil
}
