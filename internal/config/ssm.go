package config

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

// Default SSM parameter paths for secrets in Lambda. Each can be overridden
// with the corresponding *_PARAM environment variable.
const (
	defaultSigningSecretParam = "/alt-text-bot/prod/slack-signing-secret"
	defaultBotTokenParam      = "/alt-text-bot/prod/slack-bot-token"
	defaultSuggestKeyParam    = "/alt-text-bot/prod/suggest-api-key"
	defaultGeminiKeyParam     = "/alt-text-bot/prod/gemini-api-key"
)

// ParameterGetter is the subset of the SSM client used for secret loading.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadSecrets fills in secrets that were not supplied via environment
// variables by reading them from SSM Parameter Store. Required secrets fail
// hard; optional generation keys degrade to reminders-only mode.
func (c *Config) LoadSecrets(ctx context.Context, client ParameterGetter) error {
	if c.SigningSecret == "" {
		val, err := getParameter(ctx, client, "SSM_SIGNING_SECRET_PARAM", defaultSigningSecretParam)
		if err != nil {
			return fmt.Errorf("config: signing secret: %w", err)
		}
		c.SigningSecret = val
		log.Info().Msg("Signing secret loaded from SSM")
	}

	if c.BotToken == "" {
		val, err := getParameter(ctx, client, "SSM_BOT_TOKEN_PARAM", defaultBotTokenParam)
		if err != nil {
			return fmt.Errorf("config: bot token: %w", err)
		}
		c.BotToken = val
		log.Info().Msg("Bot token loaded from SSM")
	}

	// Generation credentials are optional. A missing parameter only disables
	// suggestions, so lookups that fail are logged and ignored.
	if c.SuggestAPIKey == "" && c.SuggestAPIURL != "" {
		val, err := getParameter(ctx, client, "SSM_SUGGEST_API_KEY_PARAM", defaultSuggestKeyParam)
		if err != nil {
			log.Warn().Err(err).Msg("Suggestion API key unavailable, suggestions disabled")
		} else {
			c.SuggestAPIKey = val
			log.Info().Msg("Suggestion API key loaded from SSM")
		}
	}

	if c.GeminiAPIKey == "" && c.SuggestAPIURL == "" {
		val, err := getParameter(ctx, client, "SSM_GEMINI_API_KEY_PARAM", defaultGeminiKeyParam)
		if err != nil {
			log.Warn().Err(err).Msg("Gemini API key unavailable, suggestions disabled")
		} else {
			c.GeminiAPIKey = val
			log.Info().Msg("Gemini API key loaded from SSM")
		}
	}

	return nil
}

// getParameter reads a decrypted SSM parameter, with the path taken from the
// given environment variable when set, otherwise the provided default.
func getParameter(ctx context.Context, client ParameterGetter, pathEnvVar, defaultPath string) (string, error) {
	path := os.Getenv(pathEnvVar)
	if path == "" {
		path = defaultPath
	}

	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &path,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("read SSM parameter %s: %w", path, err)
	}
	return *result.Parameter.Value, nil
}
