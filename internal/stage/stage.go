// Package stage implements the three generation-backed pipeline stages:
// extraction from card images, validation against search evidence, and
// enrichment from a second targeted search. Each stage is one blocking
// round trip through the model.Generator plus strict reply validation.
package stage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/shpitdev/bizcard-pipeline/internal/card"
	"github.com/shpitdev/bizcard-pipeline/internal/model"
	"github.com/shpitdev/bizcard-pipeline/internal/search"
)

// extractMaxTokens caps the extraction reply; card data is small.
const extractMaxTokens = 500

// Extract submits the card images and parses the OCR mapping. The reply may
// arrive fenced; anything that does not decode to the full key set is a
// *model.ParseError.
func Extract(ctx context.Context, gen model.Generator, front model.Image, back *model.Image) (card.Extraction, error) {
	log := zerolog.Ctx(ctx)
	start := time.Now()

	images := []model.Image{front}
	if back != nil {
		images = append(images, *back)
	}
	log.Info().Int("images", len(images)).Msg("stage.extract.start")

	reply, err := gen.Generate(ctx, model.Request{
		Instruction: extractionPrompt,
		Images:      images,
		MaxTokens:   extractMaxTokens,
	})
	if err != nil {
		return card.Extraction{}, err
	}

	var rawObj map[string]any
	if err := model.DecodeObject("extract", reply, &rawObj); err != nil {
		return card.Extraction{}, err
	}
	rawJSON := []byte(mustJSON(rawObj))
	if err := validateAgainstSchema(extractionSchema(), rawJSON); err != nil {
		return card.Extraction{}, &model.ParseError{Stage: "extract", Err: err}
	}
	var out card.Extraction
	if err := json.Unmarshal(rawJSON, &out); err != nil {
		return card.Extraction{}, &model.ParseError{Stage: "extract", Err: err}
	}

	log.Info().
		Str("company", out.Company).
		Str("name", out.Name).
		Dur("elapsed", time.Since(start)).
		Msg("stage.extract.ok")
	return out, nil
}

// Validate cross-checks the OCR data against search results and returns the
// corrected record plus the verdict. With no evidence the model is still
// consulted so that the is_validated=false shape comes back uniformly.
func Validate(ctx context.Context, gen model.Generator, ocr card.Extraction, results []search.Result) (card.Validation, error) {
	log := zerolog.Ctx(ctx)
	start := time.Now()

	resultsJSON := noResultsMarker
	if len(results) > 0 {
		resultsJSON = mustJSON(results)
	}
	log.Info().Int("results", len(results)).Msg("stage.validate.start")

	reply, err := gen.Generate(ctx, model.Request{
		Instruction: validationPrompt(mustJSON(ocr), resultsJSON),
		StrictJSON:  true,
	})
	if err != nil {
		return card.Validation{}, err
	}

	if err := validateAgainstSchema(validationSchema(), []byte(reply)); err != nil {
		return card.Validation{}, &model.ParseError{Stage: "validate", Err: err}
	}
	var out card.Validation
	if err := model.DecodeObjectStrict("validate", reply, &out); err != nil {
		return card.Validation{}, err
	}
	// The verdict invariant holds regardless of what the model returned.
	if !out.IsValidated {
		out.Website = ""
		out.ValidationSource = ""
	}

	log.Info().
		Bool("is_validated", out.IsValidated).
		Str("validation_source", out.ValidationSource).
		Dur("elapsed", time.Since(start)).
		Msg("stage.validate.ok")
	return out, nil
}

// Enrich merges snippet evidence from the second search into the validated
// record. Callers only reach this stage with a non-empty result set.
func Enrich(ctx context.Context, gen model.Generator, validated card.Validation, results []search.Result) (card.Enrichment, error) {
	log := zerolog.Ctx(ctx)
	start := time.Now()
	log.Info().Int("results", len(results)).Msg("stage.enrich.start")

	reply, err := gen.Generate(ctx, model.Request{
		Instruction: enrichmentPrompt(mustJSON(validated), mustJSON(results)),
		StrictJSON:  true,
	})
	if err != nil {
		return card.Enrichment{}, err
	}

	if err := validateAgainstSchema(enrichmentSchema(), []byte(reply)); err != nil {
		return card.Enrichment{}, &model.ParseError{Stage: "enrich", Err: err}
	}
	var out card.Enrichment
	if err := model.DecodeObjectStrict("enrich", reply, &out); err != nil {
		return card.Enrichment{}, err
	}
	// Enrichment must never move the validation verdict or its source.
	out.IsValidated = validated.IsValidated
	out.ValidationSource = validated.ValidationSource

	log.Info().
		Str("location", out.Location).
		Dur("elapsed", time.Since(start)).
		Msg("stage.enrich.ok")
	return out, nil
}
