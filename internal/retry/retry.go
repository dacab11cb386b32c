// Package retry wraps outbound network calls with bounded retries and
// per-attempt timeouts.
//
// Only two failure classes are worth a second attempt: rate limiting (the
// generation API returns 429 under load) and timeouts (transient network
// stalls). Everything else — other 4xx, malformed responses — fails
// immediately. Backoff is fixed and differentiated: rate-limit retries wait
// longer because hammering a throttled API compounds the problem, while
// timeout retries wait less since they are latency-sensitive under a
// serverless execution-time budget.
package retry

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrRateLimited marks a rate-limited (HTTP 429) attempt. Callers wrap or
// return it so the policy can pick the longer backoff.
var ErrRateLimited = errors.New("rate limited")

// Reference policy values.
const (
	DefaultMaxAttempts      = 3
	DownloadAttemptTimeout  = 20 * time.Second
	GenerateAttemptTimeout  = 24 * time.Second
	RateLimitBackoff        = 10 * time.Second
	TimeoutBackoff          = 5 * time.Second
)

// Policy configures a retried call. The zero value is unusable; use a
// constructor or fill every field.
type Policy struct {
	// Op names the call in logs, e.g. "download" or "generate".
	Op string

	// MaxAttempts is the total attempt budget (first try included).
	MaxAttempts int

	// AttemptTimeout is the hard per-attempt deadline.
	AttemptTimeout time.Duration

	// Backoff delays per failure class.
	RateLimitBackoff time.Duration
	TimeoutBackoff   time.Duration

	// Sleep waits for the backoff delay, honouring context cancellation.
	// Injectable for tests; nil means a real timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DownloadPolicy returns the reference policy for image downloads.
func DownloadPolicy() Policy {
	return Policy{
		Op:               "download",
		MaxAttempts:      DefaultMaxAttempts,
		AttemptTimeout:   DownloadAttemptTimeout,
		RateLimitBackoff: RateLimitBackoff,
		TimeoutBackoff:   TimeoutBackoff,
	}
}

// GeneratePolicy returns the reference policy for generation-API calls.
func GeneratePolicy() Policy {
	return Policy{
		Op:               "generate",
		MaxAttempts:      DefaultMaxAttempts,
		AttemptTimeout:   GenerateAttemptTimeout,
		RateLimitBackoff: RateLimitBackoff,
		TimeoutBackoff:   TimeoutBackoff,
	}
}

// Do runs call under the policy. It returns the first successful result, or
// (zero, false) once the attempt budget is exhausted or a non-retryable
// error occurs. Absence of a result means "no suggestion" for the caller;
// errors are logged here and never propagated.
func Do[T any](ctx context.Context, p Policy, call func(ctx context.Context) (T, error)) (T, bool) {
	var zero T

	sleep := p.Sleep
	if sleep == nil {
		sleep = realSleep
	}

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
		result, err := call(attemptCtx)
		cancel()

		if err == nil {
			return result, true
		}

		rateLimited := errors.Is(err, ErrRateLimited)
		timedOut := isTimeout(err)

		if !rateLimited && !timedOut {
			log.Warn().Err(err).Str("op", p.Op).Int("attempt", attempt).Msg("Call failed, not retryable")
			return zero, false
		}
		if attempt == p.MaxAttempts {
			log.Warn().Err(err).Str("op", p.Op).Int("attempts", attempt).Msg("Call failed, retry budget exhausted")
			return zero, false
		}

		backoff := p.TimeoutBackoff
		class := "timeout"
		if rateLimited {
			backoff = p.RateLimitBackoff
			class = "rate_limited"
		}

		log.Warn().
			Str("op", p.Op).
			Str("class", class).
			Int("attempt", attempt).
			Int("remaining", p.MaxAttempts-attempt).
			Dur("backoff", backoff).
			Msg("Call failed, backing off before retry")

		if err := sleep(ctx, backoff); err != nil {
			log.Warn().Err(err).Str("op", p.Op).Msg("Backoff interrupted")
			return zero, false
		}
	}

	return zero, false
}

// isTimeout reports whether err is a deadline/timeout class failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// realSleep blocks for d or until ctx is cancelled.
func realSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
