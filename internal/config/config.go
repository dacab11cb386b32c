// Package config loads and validates process configuration for the bot.
//
// Configuration is resolved once at startup and immutable thereafter.
// Values come from OS environment variables (optionally populated from a
// .env file by the server binary), with secrets falling back to SSM
// Parameter Store in Lambda (see ssm.go).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Config is the top-level configuration for the alt-text bot. It is populated
// once during process initialization and never modified afterwards.
type Config struct {
	// Secrets. SigningSecret and BotToken are required; in Lambda they may be
	// resolved from SSM Parameter Store when the environment variables are
	// empty (LoadSecrets).
	SigningSecret string `envconfig:"SLACK_SIGNING_SECRET" validate:"required"`
	BotToken      string `envconfig:"SLACK_BOT_TOKEN" validate:"required"`

	// Suggestion generation. Both credentials are optional: with neither set
	// the bot still sends reminders, just without AI description suggestions.
	SuggestAPIURL string `envconfig:"SUGGEST_API_URL"`
	SuggestAPIKey string `envconfig:"SUGGEST_API_KEY"`
	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`

	// Model and backend identifiers forwarded to the suggestion API.
	SuggestModel   string `envconfig:"SUGGEST_MODEL" default:"gemini-2.5-flash"`
	SuggestBackend string `envconfig:"SUGGEST_BACKEND" default:"gemini"`

	// ExcludedUsers are user IDs whose uploads are never processed
	// (comma-separated in the environment).
	ExcludedUsers []string `envconfig:"EXCLUDED_USERS"`

	// Processing knobs.
	DedupCacheSize int           `envconfig:"DEDUP_CACHE_SIZE" default:"1000" validate:"gt=0"`
	AckTimeout     time.Duration `envconfig:"ACK_TIMEOUT" default:"1500ms"`
	PipelineBudget time.Duration `envconfig:"PIPELINE_BUDGET" default:"20s"`

	// Server settings (bot-server only).
	Port string `envconfig:"PORT" default:"8080"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load populates a Config from the environment. Validation is deferred to
// Validate so Lambda cold start can resolve SSM-backed secrets in between.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: process environment: %w", err)
	}
	return &cfg, nil
}

// Validate checks that all required values are present and well-formed.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// SuggestionsEnabled reports whether any generation backend is configured.
// Absence of credentials is not an error: it is the documented degraded mode
// where reminders are sent without suggestions.
func (c *Config) SuggestionsEnabled() bool {
	return (c.SuggestAPIURL != "" && c.SuggestAPIKey != "") || c.GeminiAPIKey != ""
}

// IsExcluded reports whether the given user ID is on the excluded list.
func (c *Config) IsExcluded(userID string) bool {
	for _, id := range c.ExcludedUsers {
		if strings.TrimSpace(id) == userID {
			return true
		}
	}
	return false
}
