// Package main provides the Lambda entry point for the alt-text bot.
//
// This is a lightweight Lambda (128 MB) that serves the Events API endpoint
// behind a function URL or API Gateway. Secrets missing from the environment
// are loaded from SSM Parameter Store at cold start:
//   - /alt-text-bot/prod/slack-signing-secret
//   - /alt-text-bot/prod/slack-bot-token
//   - /alt-text-bot/prod/gemini-api-key (optional, enables suggestions)
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/alt-text-bot/internal/config"
	"github.com/fpang/alt-text-bot/internal/dedup"
	"github.com/fpang/alt-text-bot/internal/dispatch"
	"github.com/fpang/alt-text-bot/internal/logging"
	"github.com/fpang/alt-text-bot/internal/notify"
	"github.com/fpang/alt-text-bot/internal/pipeline"
	"github.com/fpang/alt-text-bot/internal/signature"
	"github.com/fpang/alt-text-bot/internal/suggest"
	"github.com/fpang/alt-text-bot/internal/webhook"
)

var handler *webhook.Handler

func init() {
	start := time.Now()
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	if err := cfg.LoadSecrets(context.Background(), ssm.NewFromConfig(awsCfg)); err != nil {
		log.Fatal().Err(err).Msg("Failed to load secrets from SSM")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	handler = buildHandler(cfg)

	logging.NewStartupLogger("bot-lambda").
		Feature("suggestions", cfg.SuggestionsEnabled()).
		Config("model", cfg.SuggestModel).
		InitDuration(time.Since(start)).
		Log()
}

// buildHandler wires the endpoint from configuration. A missing generation
// backend degrades to reminders without suggestions.
func buildHandler(cfg *config.Config) *webhook.Handler {
	var generator suggest.Generator
	switch {
	case cfg.SuggestAPIURL != "" && cfg.SuggestAPIKey != "":
		generator = suggest.NewAPIClient(cfg.SuggestAPIURL, cfg.SuggestAPIKey, cfg.SuggestModel, cfg.SuggestBackend)
	case cfg.GeminiAPIKey != "":
		g, err := suggest.NewGeminiGenerator(context.Background(), cfg.GeminiAPIKey, cfg.SuggestModel)
		if err != nil {
			log.Warn().Err(err).Msg("Gemini client init failed, suggestions disabled")
		} else {
			generator = g
		}
	}

	var pipe dispatch.Runner
	if generator != nil {
		pipe = pipeline.New(pipeline.NewHTTPFetcher(cfg.BotToken), generator, cfg.PipelineBudget)
	}

	cache := dedup.NewCache(cfg.DedupCacheSize)
	dispatcher := dispatch.New(pipe, notify.NewClient(cfg.BotToken), cache, cfg.AckTimeout, cfg.PipelineBudget)

	return webhook.New(signature.NewVerifier(cfg.SigningSecret), cache, dispatcher, cfg.IsExcluded)
}

func main() {
	mux := http.NewServeMux()
	mux.Handle("/slack/events", handler)

	adapter := httpadapter.NewV2(mux)
	lambda.Start(adapter.ProxyWithContext)
}
