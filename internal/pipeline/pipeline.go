// Package pipeline orchestrates description generation for the images of one
// event: per attachment, pick a source URL, download, decide on
// recompression, and call the generation backend — all under a cumulative
// time budget.
//
// Attachments are processed sequentially, not in parallel, to bound the load
// on the rate-limited generation API. Partial success beats total failure: a
// failing attachment is recorded and the batch continues, and when the budget
// runs out the remaining attachments are marked rather than processed.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/alt-text-bot/internal/imagesource"
	"github.com/fpang/alt-text-bot/internal/retry"
	"github.com/fpang/alt-text-bot/internal/slackevent"
	"github.com/fpang/alt-text-bot/internal/suggest"
	"github.com/fpang/alt-text-bot/internal/transcode"
)

// DefaultBudget is the cumulative time allowance for one event's batch.
const DefaultBudget = 20 * time.Second

// FailureReason distinguishes why no suggestion was produced. All reasons
// collapse to "no suggestion available" in the user-facing message; the
// distinction exists for logs.
type FailureReason string

const (
	FailureNone       FailureReason = ""
	FailureNoSource   FailureReason = "no_source_url"
	FailureDownload   FailureReason = "download_failed"
	FailureGeneration FailureReason = "generation_failed"
	FailureBudget     FailureReason = "budget_exhausted"
)

// Result is the per-filename outcome: a description, or an explicit failure.
type Result struct {
	AltText string
	Failure FailureReason
}

// OK reports whether a suggestion was produced.
func (r Result) OK() bool { return r.Failure == FailureNone }

// Pipeline runs the download → recompress → generate sequence.
type Pipeline struct {
	fetcher   Fetcher
	generator suggest.Generator
	budget    time.Duration

	// Policies and clock are injectable for tests.
	downloadPolicy retry.Policy
	generatePolicy retry.Policy
	now            func() time.Time
}

// New creates a Pipeline with the reference policies.
func New(fetcher Fetcher, generator suggest.Generator, budget time.Duration) *Pipeline {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Pipeline{
		fetcher:        fetcher,
		generator:      generator,
		budget:         budget,
		downloadPolicy: retry.DownloadPolicy(),
		generatePolicy: retry.GeneratePolicy(),
		now:            time.Now,
	}
}

// Run produces a Result for every file, in the attachment list's original
// order. The map always contains an entry per input filename: files skipped
// by the budget early-exit are marked FailureBudget, never dropped.
func (p *Pipeline) Run(ctx context.Context, files []slackevent.File) map[string]Result {
	results := make(map[string]Result, len(files))
	start := p.now()

	for i := range files {
		f := &files[i]

		if elapsed := p.now().Sub(start); elapsed > p.budget {
			log.Warn().
				Dur("elapsed", elapsed).
				Int("remaining", len(files)-i).
				Msg("Pipeline budget exhausted, returning partial results")
			for _, rest := range files[i:] {
				results[rest.Name] = Result{Failure: FailureBudget}
			}
			break
		}

		results[f.Name] = p.processOne(ctx, f)
	}

	return results
}

// processOne handles a single attachment.
func (p *Pipeline) processOne(ctx context.Context, f *slackevent.File) Result {
	src := imagesource.Select(f)
	if src == nil {
		log.Warn().Str("file", f.Name).Msg("Attachment has no downloadable URL")
		return Result{Failure: FailureNoSource}
	}

	dl, ok := retry.Do(ctx, p.downloadPolicy, func(ctx context.Context) (*Download, error) {
		return p.fetcher.Fetch(ctx, src.URL)
	})
	if !ok {
		return Result{Failure: FailureDownload}
	}

	data, mimeType := dl.Data, dl.MIMEType
	if mimeType == "" {
		mimeType = f.Mimetype
	}

	// A small pre-resized thumbnail is used as-is; everything else is
	// recompressed to the target width. A failed recompression falls back to
	// the original bytes — worst case the submission is just bigger.
	if !src.IsThumbnail() || len(data) > transcode.SmallFileCeiling {
		if res, err := transcode.Recompress(data, mimeType); err != nil {
			log.Warn().Err(err).Str("file", f.Name).Msg("Recompression failed, submitting original bytes")
		} else {
			data, mimeType = res.Data, res.MIMEType
		}
	}

	altText, ok := retry.Do(ctx, p.generatePolicy, func(ctx context.Context) (string, error) {
		return p.generator.Describe(ctx, suggest.Request{
			Image:           data,
			MIMEType:        mimeType,
			Filename:        f.Name,
			MetadataContext: suggest.ExtractMetadataContext(data),
		})
	})
	if !ok {
		return Result{Failure: FailureGeneration}
	}

	log.Info().Str("file", f.Name).Int("altTextLength", len(altText)).Msg("Suggestion generated")
	return Result{AltText: altText}
}
