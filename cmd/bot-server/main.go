// Package main runs the alt-text bot as a standalone HTTP server for local
// development and non-Lambda deployments. Configuration comes from the
// environment, with a .env file loaded when present.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
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

func main() {
	// .env is a local-development convenience; absence is not an error.
	_ = godotenv.Load()
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	handler := buildHandler(cfg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Method(http.MethodPost, "/slack/events", handler)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Bool("suggestions", cfg.SuggestionsEnabled()).
			Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown did not complete cleanly")
	}
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
