// Package webhook implements the Events API endpoint.
//
// The endpoint acknowledges fast and never leaks failure detail to the
// caller: any accepted event gets {"ok":true}, a bad signature gets 401, an
// unparseable payload gets 400. All real work happens in the dispatcher.
package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/fpang/alt-text-bot/internal/dedup"
	"github.com/fpang/alt-text-bot/internal/dispatch"
	"github.com/fpang/alt-text-bot/internal/metrics"
	"github.com/fpang/alt-text-bot/internal/signature"
	"github.com/fpang/alt-text-bot/internal/slackevent"
)

// Slack delivery headers.
const (
	headerTimestamp = "X-Slack-Request-Timestamp"
	headerSignature = "X-Slack-Signature"
	headerRetryNum  = "X-Slack-Retry-Num"
	headerNoRetry   = "X-Slack-No-Retry"
)

// maxBodyBytes caps the request body read. Events API payloads are small;
// anything past this is not a legitimate event.
const maxBodyBytes = 1 << 20

// Dispatcher hands accepted events to background processing.
type Dispatcher interface {
	Dispatch(job dispatch.Job)
}

// Handler is the HTTP handler for the events endpoint.
type Handler struct {
	verifier   *signature.Verifier
	cache      *dedup.Cache
	dispatcher Dispatcher
	isExcluded func(userID string) bool
}

// New creates the endpoint handler. isExcluded may be nil when no users are
// excluded.
func New(verifier *signature.Verifier, cache *dedup.Cache, dispatcher Dispatcher, isExcluded func(string) bool) *Handler {
	if isExcluded == nil {
		isExcluded = func(string) bool { return false }
	}
	return &Handler{
		verifier:   verifier,
		cache:      cache,
		dispatcher: dispatcher,
		isExcluded: isExcluded,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read request body")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if !h.verifier.Verify(body, r.Header.Get(headerTimestamp), r.Header.Get(headerSignature)) {
		log.Warn().Msg("Rejected request with invalid signature")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	env, err := slackevent.Parse(body)
	if err != nil {
		log.Warn().Err(err).Msg("Rejected unparseable payload")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if env.Type == slackevent.TypeURLVerification {
		writeJSON(w, map[string]string{"challenge": env.Challenge})
		return
	}

	// Retries duplicate work we either already did or deliberately skipped.
	// Acknowledge and tell the platform to stop redelivering.
	if retryNum(r) > 0 {
		w.Header().Set(headerNoRetry, "1")
		writeOK(w)
		return
	}

	h.handleEvent(env)
	writeOK(w)
}

// handleEvent applies the skip filters and the dedup gate, then dispatches.
// It never fails the HTTP response: by this point the delivery is accepted.
func (h *Handler) handleEvent(env *slackevent.Envelope) {
	rec := metrics.New().Dimension("Operation", "webhook")
	defer rec.Flush()
	rec.Count(metrics.EventsReceived)

	ev := env.Event
	if ev.Type != "message" || ev.Subtype != slackevent.SubtypeFileShare {
		return
	}
	if ev.BotID != "" {
		return
	}
	if h.isExcluded(ev.User) {
		log.Debug().Str("user", ev.User).Msg("Skipping excluded user")
		return
	}

	missing := ev.MissingAltTextFiles()
	if len(missing) == 0 {
		return
	}

	fp := env.Fingerprint()
	if !h.cache.ShouldProcess(fp) {
		rec.Count(metrics.EventsDeduplicated)
		log.Debug().Str("fingerprint", fp).Msg("Skipping already-seen event")
		return
	}

	log.Info().
		Str("fingerprint", fp).
		Str("channel", ev.Channel).
		Int("missingFiles", len(missing)).
		Int("totalFiles", len(ev.Files)).
		Msg("Accepted event for processing")

	h.dispatcher.Dispatch(dispatch.Job{
		Fingerprint: fp,
		Channel:     ev.Channel,
		User:        ev.User,
		ThreadTS:    ev.ThreadTS,
		FileCount:   len(ev.Files),
		Missing:     missing,
	})
}

func retryNum(r *http.Request) int {
	v := r.Header.Get(headerRetryNum)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}
