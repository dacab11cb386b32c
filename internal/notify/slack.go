package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// defaultBaseURL is the Slack Web API base URL.
	defaultBaseURL = "https://slack.com/api"

	// defaultTimeout is the HTTP client timeout for notification sends.
	defaultTimeout = 10 * time.Second
)

// ErrDuplicateSend is returned when the platform reports the message was
// already delivered for this event. It is the one failure that entitles the
// caller to release the event's dedup slot so a legitimate retry can land.
var ErrDuplicateSend = errors.New("notify: message already delivered")

// Client posts ephemeral messages via the Slack Web API.
type Client struct {
	httpClient *http.Client
	token      string
	baseURL    string
}

// NewClient creates a Slack notification client using the bot token.
func NewClient(token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		token:      token,
		baseURL:    defaultBaseURL,
	}
}

// NewClientWithBaseURL creates a Client against a caller-supplied API base.
// This constructor exists for testing.
func NewClientWithBaseURL(token, baseURL string) *Client {
	c := NewClient(token)
	c.baseURL = baseURL
	return c
}

// postEphemeralRequest is the chat.postEphemeral payload.
type postEphemeralRequest struct {
	Channel  string `json:"channel"`
	User     string `json:"user"`
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// apiResponse is the generic Slack Web API response envelope.
type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// PostEphemeral sends message text visible only to the target user. threadTS
// may be empty for top-level messages.
func (c *Client) PostEphemeral(ctx context.Context, channel, user, text, threadTS string) error {
	payload, err := json.Marshal(postEphemeralRequest{
		Channel:  channel,
		User:     user,
		Text:     text,
		ThreadTS: threadTS,
	})
	if err != nil {
		return fmt.Errorf("notify: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat.postEphemeral", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("notify: read response: %w", err)
	}

	log.Debug().
		Int("statusCode", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Str("channel", channel).
		Msg("Ephemeral message response")

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("notify: parse response: %w", err)
	}

	if !parsed.OK {
		if parsed.Error == "duplicate_message" {
			return fmt.Errorf("notify: %s: %w", parsed.Error, ErrDuplicateSend)
		}
		return fmt.Errorf("notify: API error: %s", parsed.Error)
	}

	return nil
}
