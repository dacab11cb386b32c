// Package slackevent defines the inbound Slack Events API payload types and
// their boundary validation.
//
// Slack delivers events at-least-once: a slow acknowledgment triggers
// redelivery with the same event_id and an incremented x-slack-retry-num
// header. The types here are closed structs with explicit optional fields;
// unknown payload shapes are rejected at parse time rather than carried along.
package slackevent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Envelope types delivered to the events endpoint.
const (
	TypeURLVerification = "url_verification"
	TypeEventCallback   = "event_callback"
)

// SubtypeFileShare is the message subtype Slack sets on file uploads.
const SubtypeFileShare = "file_share"

var validate = validator.New()

// Envelope is the outer Events API payload.
//
// event_id is the platform-assigned identifier stable across redelivery
// attempts; it is present on event_callback envelopes from current API
// versions but treated as optional.
type Envelope struct {
	Type      string `json:"type" validate:"required"`
	Challenge string `json:"challenge,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	EventTime int64  `json:"event_time,omitempty"`
	Event     *Event `json:"event,omitempty"`
}

// Event is the inner message event: who posted what, where, with which files.
// Immutable once parsed.
type Event struct {
	Type     string `json:"type"`
	Subtype  string `json:"subtype,omitempty"`
	Channel  string `json:"channel"`
	User     string `json:"user"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts,omitempty"`
	BotID    string `json:"bot_id,omitempty"`
	Files    []File `json:"files,omitempty"`
}

// File is a single attachment. Slack supplies pre-resized thumbnail tiers in
// decreasing resolution plus the full-size private URL. AltTxt is a pointer
// on purpose: an absent field means no description, while an explicitly empty
// string counts as a (blank) description and is NOT treated as missing.
type File struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Mimetype   string  `json:"mimetype"`
	AltTxt     *string `json:"alt_txt,omitempty"`
	URLPrivate string  `json:"url_private,omitempty"`
	Thumb360   string  `json:"thumb_360,omitempty"`
	Thumb480   string  `json:"thumb_480,omitempty"`
	Thumb720   string  `json:"thumb_720,omitempty"`
	Thumb800   string  `json:"thumb_800,omitempty"`
}

// Parse decodes and validates an Events API payload.
func Parse(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("slackevent: decode payload: %w", err)
	}

	if err := validate.Struct(&env); err != nil {
		return nil, fmt.Errorf("slackevent: invalid payload: %w", err)
	}

	switch env.Type {
	case TypeURLVerification:
		if env.Challenge == "" {
			return nil, fmt.Errorf("slackevent: url_verification without challenge")
		}
	case TypeEventCallback:
		if env.Event == nil {
			return nil, fmt.Errorf("slackevent: event_callback without event")
		}
	default:
		return nil, fmt.Errorf("slackevent: unknown envelope type %q", env.Type)
	}

	return &env, nil
}

// IsImage reports whether the file's MIME type indicates an image.
func (f *File) IsImage() bool {
	return strings.HasPrefix(f.Mimetype, "image/")
}

// MissingAltText reports whether this file is an image lacking an
// accessibility description. An empty alt_txt string counts as present.
func (f *File) MissingAltText() bool {
	return f.IsImage() && f.AltTxt == nil
}

// MissingAltTextFiles returns the event's files lacking a description,
// preserving the attachment order.
func (e *Event) MissingAltTextFiles() []File {
	var missing []File
	for _, f := range e.Files {
		if f.MissingAltText() {
			missing = append(missing, f)
		}
	}
	return missing
}

// Fingerprint derives the dedup key identifying this logical event across
// redelivery attempts. The redelivery-stable event_id is preferred; the
// message timestamp is the fallback for older payloads that lack one.
// Channel and user are appended so distinct conversations never collide.
func (env *Envelope) Fingerprint() string {
	id := env.EventID
	if id == "" && env.Event != nil {
		id = env.Event.TS
	}

	var channel, user string
	if env.Event != nil {
		channel = env.Event.Channel
		user = env.Event.User
	}

	return id + ":" + channel + ":" + user
}
