// Package dispatch runs the suggestion pipeline and the reminder send in the
// background so the webhook endpoint can acknowledge within the platform's
// response deadline.
//
// Strategy: race-then-continue. The work is spawned as a goroutine and the
// dispatcher waits for its completion or for the ack timer, whichever fires
// first. Either way the caller returns; a detached job keeps running and
// reports its outcome through the log.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/alt-text-bot/internal/metrics"
	"github.com/fpang/alt-text-bot/internal/notify"
	"github.com/fpang/alt-text-bot/internal/pipeline"
	"github.com/fpang/alt-text-bot/internal/slackevent"
)

const (
	// DefaultAckTimeout bounds how long Dispatch blocks the webhook response
	// waiting for the fast path to finish.
	DefaultAckTimeout = 1500 * time.Millisecond

	// sendGrace is the extra allowance on top of the pipeline budget for
	// composing and delivering the reminder after generation finishes.
	sendGrace = 15 * time.Second
)

// Runner produces alt-text suggestions for a batch of files.
type Runner interface {
	Run(ctx context.Context, files []slackevent.File) map[string]pipeline.Result
}

// Sender delivers the reminder to the poster.
type Sender interface {
	PostEphemeral(ctx context.Context, channel, user, text, threadTS string) error
}

// Forgetter releases a fingerprint's dedup slot so a redelivery can retry.
type Forgetter interface {
	Forget(fingerprint string)
}

// Job carries everything the background work needs from the webhook request.
// It holds no references to request-scoped state.
type Job struct {
	Fingerprint string
	Channel     string
	User        string
	ThreadTS    string
	FileCount   int
	Missing     []slackevent.File
}

// Dispatcher owns the background processing of accepted events.
type Dispatcher struct {
	pipe       Runner // nil when suggestion generation is disabled
	sender     Sender
	cache      Forgetter
	ackTimeout time.Duration
	budget     time.Duration
}

// New creates a Dispatcher. pipe may be nil, in which case reminders are sent
// without suggestions. budget is the pipeline's cumulative time allowance and
// sizes the detached job's context.
func New(pipe Runner, sender Sender, cache Forgetter, ackTimeout, budget time.Duration) *Dispatcher {
	if ackTimeout <= 0 {
		ackTimeout = DefaultAckTimeout
	}
	if budget <= 0 {
		budget = pipeline.DefaultBudget
	}
	return &Dispatcher{
		pipe:       pipe,
		sender:     sender,
		cache:      cache,
		ackTimeout: ackTimeout,
		budget:     budget,
	}
}

// Dispatch starts the job and returns once it completes or the ack timer
// fires. The job itself always runs to completion on its own context.
func (d *Dispatcher) Dispatch(job Job) {
	jobID := uuid.NewString()
	done := make(chan struct{})

	go func() {
		defer close(done)
		d.process(jobID, job)
	}()

	timer := time.NewTimer(d.ackTimeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Debug().
			Str("jobId", jobID).
			Str("fingerprint", job.Fingerprint).
			Msg("Job finished before ack deadline")
	case <-timer.C:
		log.Info().
			Str("jobId", jobID).
			Str("fingerprint", job.Fingerprint).
			Dur("ackTimeout", d.ackTimeout).
			Msg("Detaching job, ack deadline reached")
	}
}

// process runs the pipeline, composes the reminder, and sends it. It uses a
// fresh context so detaching from the webhook request does not cancel it.
func (d *Dispatcher) process(jobID string, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.budget+sendGrace)
	defer cancel()

	rec := metrics.New().
		Dimension("Operation", "dispatch").
		Property("jobId", jobID)
	defer rec.Flush()

	start := time.Now()

	var suggestions map[string]string
	if d.pipe != nil {
		results := d.pipe.Run(ctx, job.Missing)
		suggestions = make(map[string]string, len(results))
		failures := 0
		for name, r := range results {
			if r.OK() {
				suggestions[name] = r.AltText
			} else {
				failures++
			}
		}
		rec.Metric(metrics.SuggestionsGenerated, float64(len(suggestions)), metrics.UnitCount)
		rec.Metric(metrics.SuggestionFailures, float64(failures), metrics.UnitCount)
		rec.Latency(metrics.PipelineLatencyMs, time.Since(start))
	}

	names := make([]string, 0, len(job.Missing))
	for _, f := range job.Missing {
		names = append(names, f.Name)
	}
	text := notify.Compose(job.FileCount, names, suggestions)

	if err := d.sender.PostEphemeral(ctx, job.Channel, job.User, text, job.ThreadTS); err != nil {
		if errors.Is(err, notify.ErrDuplicateSend) {
			d.cache.Forget(job.Fingerprint)
			log.Info().
				Str("jobId", jobID).
				Str("fingerprint", job.Fingerprint).
				Msg("Reminder already delivered, released dedup slot")
			return
		}
		rec.Count(metrics.NotificationFailures)
		log.Error().
			Err(err).
			Str("jobId", jobID).
			Str("channel", job.Channel).
			Str("fingerprint", job.Fingerprint).
			Msg("Reminder send failed")
		return
	}

	rec.Count(metrics.RemindersSent)
	log.Info().
		Str("jobId", jobID).
		Str("channel", job.Channel).
		Int("missingFiles", len(job.Missing)).
		Int("suggestions", len(suggestions)).
		Dur("duration", time.Since(start)).
		Msg("Reminder sent")
}
