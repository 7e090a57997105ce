// Package pipeline sequences the card-to-record pipeline: extraction,
// validation against search evidence, conditional enrichment, finalization,
// and submission. One Run is one inbound request: strictly sequential, no
// retries, no state kept across runs.
package pipeline

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shpitdev/bizcard-pipeline/internal/card"
	"github.com/shpitdev/bizcard-pipeline/internal/model"
	"github.com/shpitdev/bizcard-pipeline/internal/redact"
	"github.com/shpitdev/bizcard-pipeline/internal/search"
	"github.com/shpitdev/bizcard-pipeline/internal/sink"
	"github.com/shpitdev/bizcard-pipeline/internal/stage"
)

// Options tune a Runner without changing its wiring.
type Options struct {
	// SearchResults is how many results each search query asks for.
	SearchResults int
}

func (o Options) withDefaults() Options {
	if o.SearchResults <= 0 {
		o.SearchResults = 3
	}
	return o
}

// Runner owns the external collaborators for the pipeline.
type Runner struct {
	gen      model.Generator
	searcher search.Searcher
	sink     sink.Submitter
	opts     Options
}

func NewRunner(gen model.Generator, searcher search.Searcher, submitter sink.Submitter, opts Options) *Runner {
	if searcher == nil {
		searcher = search.Disabled{}
	}
	return &Runner{
		gen:      gen,
		searcher: searcher,
		sink:     submitter,
		opts:     opts.withDefaults(),
	}
}

// Run executes the full pipeline for one card. front and back are base64
// image payloads with any data-URI prefix already stripped; back is empty
// when only one side was photographed. On any error no record is returned.
func (r *Runner) Run(ctx context.Context, front, back string) (card.ContactRecord, error) {
	runID := uuid.New().String()
	log := zerolog.Ctx(ctx).With().Str("run_id", runID).Logger()
	ctx = log.WithContext(ctx)

	// Stage 1: extraction.
	frontImg := model.Image{Base64: front}
	var backImg *model.Image
	if strings.TrimSpace(back) != "" {
		backImg = &model.Image{Base64: back}
	}
	ocr, err := stage.Extract(ctx, r.gen, frontImg, backImg)
	if err != nil {
		return card.ContactRecord{}, err
	}

	// Stage 2: validation search. No query means no external evidence;
	// search failures degrade the same way.
	results := r.search(ctx, card.ValidationQuery(ocr))

	// Stage 3: validation.
	validated, err := stage.Validate(ctx, r.gen, ocr, results)
	if err != nil {
		return card.ContactRecord{}, err
	}

	// Stages 4-5: targeted enrichment, only for validated records with
	// fresh evidence to merge.
	final := card.FromValidation(validated)
	if validated.IsValidated {
		enrichResults := r.search(ctx, card.EnrichmentQuery(validated.Company))
		if len(enrichResults) > 0 {
			enriched, err := stage.Enrich(ctx, r.gen, validated, enrichResults)
			if err != nil {
				return card.ContactRecord{}, err
			}
			final = enriched
		} else {
			log.Info().Msg("pipeline.enrich.skip")
		}
	} else {
		log.Info().Msg("pipeline.enrich.skip")
	}

	// Finalization is local and deterministic.
	rec := card.Finalize(final)

	// Submission: an unsaved record has no value to the caller.
	if err := r.sink.Submit(ctx, front, back, rec); err != nil {
		return card.ContactRecord{}, err
	}
	log.Info().Bool("is_validated", rec.IsValidated).Msg("pipeline.done")

	return rec, nil
}

// search runs one query and downgrades every failure to "no evidence".
func (r *Runner) search(ctx context.Context, query string) []search.Result {
	log := zerolog.Ctx(ctx)
	if strings.TrimSpace(query) == "" {
		log.Info().Msg("search.skip")
		return nil
	}
	results, err := r.searcher.Search(ctx, query, r.opts.SearchResults)
	if err != nil {
		log.Warn().Str("error", redact.Secrets(err.Error())).Msg("search.unavailable")
		return nil
	}
	log.Info().Int("results", len(results)).Msg("search.done")
	return results
}
