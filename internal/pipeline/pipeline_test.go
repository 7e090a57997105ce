package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shpitdev/bizcard-pipeline/internal/card"
	"github.com/shpitdev/bizcard-pipeline/internal/model"
	"github.com/shpitdev/bizcard-pipeline/internal/pipeline"
	"github.com/shpitdev/bizcard-pipeline/internal/search"
	"github.com/shpitdev/bizcard-pipeline/internal/sink"
)

type fakeGenerator struct {
	replies  []string
	requests []model.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req model.Request) (string, error) {
	f.requests = append(f.requests, req)
	if len(f.replies) == 0 {
		return "", errors.New("fakeGenerator: no reply scripted")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

type fakeSearcher struct {
	byQuery map[string][]search.Result
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) ([]search.Result, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.byQuery[query], nil
}

type fakeSink struct {
	err     error
	records []card.ContactRecord
	fronts  []string
	backs   []string
}

func (f *fakeSink) Submit(_ context.Context, front, back string, rec card.ContactRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	f.fronts = append(f.fronts, front)
	f.backs = append(f.backs, back)
	return nil
}

const ocrReply = `{"company":"Acme","name":"Jane Doe","title":"CTO","phone":"+14155551234","email":"","address":"","slogan":"Build the future","location":""}`

const validatedReply = `{"company":"Acme Corp","name":"Jane Doe","title":"CTO","phone":"+14155551234","email":"","address":"","slogan":"Build the future","location":"","website":"https://acme.example","validation_source":"https://acme.example","is_validated":true}`

const notValidatedReply = `{"company":"Acme","name":"Jane Doe","title":"CTO","phone":"+14155551234","email":"","address":"","slogan":"Build the future","location":"","website":"","validation_source":"","is_validated":false}`

const enrichedReply = `{"company":"Acme Corp","name":"Jane Doe","title":"CTO","phone":"+14155551234","email":"info@acme.example","address":"1 Main St, San Francisco, CA","slogan":"Build the future","location":"San Francisco, CA","website":"https://acme.example","validation_source":"https://acme.example","is_validated":true,"about_the_company":"Acme makes anvils."}`

func TestRunFullPipeline(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []string{ocrReply, validatedReply, enrichedReply}}
	searcher := &fakeSearcher{byQuery: map[string][]search.Result{
		"Acme Build the future": {{Title: "Acme Corp", Link: "https://acme.example", Snippet: "Anvils"}},
		card.EnrichmentQuery("Acme Corp"): {{Title: "About Acme", Link: "https://acme.example/about", Snippet: "Acme makes anvils."}},
	}}
	snk := &fakeSink{}

	r := pipeline.NewRunner(gen, searcher, snk, pipeline.Options{})
	rec, err := r.Run(context.Background(), "front-b64", "back-b64")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(gen.requests) != 3 {
		t.Fatalf("expected 3 generation calls, got %d", len(gen.requests))
	}
	if len(searcher.queries) != 2 {
		t.Fatalf("expected 2 searches, got %v", searcher.queries)
	}
	if searcher.queries[0] != "Acme Build the future" {
		t.Fatalf("unexpected validation query %q", searcher.queries[0])
	}

	if rec.Phone != "'+14155551234" {
		t.Fatalf("expected escaped phone, got %q", rec.Phone)
	}
	if !rec.IsValidated || rec.ValidationSource != "https://acme.example" {
		t.Fatalf("unexpected validation state: %#v", rec)
	}
	if rec.AboutTheCompany != "Acme makes anvils." || rec.Location != "San Francisco, CA" {
		t.Fatalf("unexpected enrichment: %#v", rec)
	}

	if len(snk.records) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(snk.records))
	}
	if snk.fronts[0] != "front-b64" || snk.backs[0] != "back-b64" {
		t.Fatalf("sink got wrong images: %q %q", snk.fronts[0], snk.backs[0])
	}
}

func TestRunNotValidatedSkipsEnrichment(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []string{ocrReply, notValidatedReply}}
	searcher := &fakeSearcher{byQuery: map[string][]search.Result{}}
	snk := &fakeSink{}

	r := pipeline.NewRunner(gen, searcher, snk, pipeline.Options{})
	rec, err := r.Run(context.Background(), "front-b64", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(gen.requests) != 2 {
		t.Fatalf("expected 2 generation calls, got %d", len(gen.requests))
	}
	if len(searcher.queries) != 1 {
		t.Fatalf("expected only the validation search, got %v", searcher.queries)
	}
	if rec.IsValidated || rec.ValidationSource != "" {
		t.Fatalf("unexpected validation state: %#v", rec)
	}
	if len(snk.records) != 1 {
		t.Fatal("unvalidated records still get submitted")
	}
}

func TestRunValidatedButNoEnrichmentResults(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []string{ocrReply, validatedReply}}
	searcher := &fakeSearcher{byQuery: map[string][]search.Result{
		"Acme Build the future": {{Link: "https://acme.example"}},
	}}
	snk := &fakeSink{}

	r := pipeline.NewRunner(gen, searcher, snk, pipeline.Options{})
	rec, err := r.Run(context.Background(), "front-b64", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(gen.requests) != 2 {
		t.Fatalf("expected 2 generation calls, got %d", len(gen.requests))
	}
	if rec.Company != "Acme Corp" || rec.Website != "https://acme.example" {
		t.Fatalf("unexpected record: %#v", rec)
	}
	if rec.Phone != "'+14155551234" {
		t.Fatalf("expected escaped phone, got %q", rec.Phone)
	}
	if rec.AboutTheCompany != "" {
		t.Fatalf("no enrichment should have happened: %#v", rec)
	}
}

func TestRunSearchFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []string{ocrReply, notValidatedReply}}
	searcher := &fakeSearcher{err: errors.New("search api status 429")}
	snk := &fakeSink{}

	r := pipeline.NewRunner(gen, searcher, snk, pipeline.Options{})
	if _, err := r.Run(context.Background(), "front-b64", ""); err != nil {
		t.Fatalf("search failure must not fail the run: %v", err)
	}
	if len(snk.records) != 1 {
		t.Fatal("record should still be submitted")
	}
}

func TestRunExtractionParseFailureIsFatal(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []string{"not json at all"}}
	snk := &fakeSink{}

	r := pipeline.NewRunner(gen, &fakeSearcher{}, snk, pipeline.Options{})
	_, err := r.Run(context.Background(), "front-b64", "")
	var pe *model.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if len(snk.records) != 0 {
		t.Fatal("nothing must be submitted on failure")
	}
}

func TestRunSinkFailureIsFatal(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []string{ocrReply, notValidatedReply}}
	snk := &fakeSink{err: &sink.SubmissionError{Message: "sheet is locked"}}

	r := pipeline.NewRunner(gen, &fakeSearcher{}, snk, pipeline.Options{})
	_, err := r.Run(context.Background(), "front-b64", "")

	var se *sink.SubmissionError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SubmissionError, got %v", err)
	}
}

func TestRunNoQueryableFieldsSkipsSearch(t *testing.T) {
	t.Parallel()

	emptyOCR := `{"company":"","name":"","title":"CTO","phone":"","email":"","address":"","slogan":"","location":""}`
	noMatch := `{"company":"","name":"","title":"CTO","phone":"","email":"","address":"","slogan":"","location":"","website":"","validation_source":"","is_validated":false}`
	gen := &fakeGenerator{replies: []string{emptyOCR, noMatch}}
	searcher := &fakeSearcher{}
	snk := &fakeSink{}

	r := pipeline.NewRunner(gen, searcher, snk, pipeline.Options{})
	if _, err := r.Run(context.Background(), "front-b64", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(searcher.queries) != 0 {
		t.Fatalf("expected no searches, got %v", searcher.queries)
	}
}

func TestRunNilSearcherUsesDisabled(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{replies: []string{ocrReply, notValidatedReply}}
	snk := &fakeSink{}

	r := pipeline.NewRunner(gen, nil, snk, pipeline.Options{})
	if _, err := r.Run(context.Background(), "front-b64", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
