package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/shpitdev/bizcard-pipeline/internal/card"
	"github.com/shpitdev/bizcard-pipeline/internal/model"
	"github.com/shpitdev/bizcard-pipeline/internal/server"
	"github.com/shpitdev/bizcard-pipeline/internal/sink"
)

type fakePipeline struct {
	rec    card.ContactRecord
	err    error
	fronts []string
	backs  []string
}

func (f *fakePipeline) Run(_ context.Context, front, back string) (card.ContactRecord, error) {
	f.fronts = append(f.fronts, front)
	f.backs = append(f.backs, back)
	if f.err != nil {
		return card.ContactRecord{}, f.err
	}
	return f.rec, nil
}

func newTestServer(t *testing.T, p server.Pipeline) *httptest.Server {
	t.Helper()
	srv := server.New(p, zerolog.Nop(), server.Options{})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postOCR(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/ocr", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeDetail(t *testing.T, resp *http.Response) string {
	t.Helper()
	var out struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return out.Detail
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &fakePipeline{})

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["status"] != "OCR Backend is running" {
		t.Fatalf("unexpected body %v", out)
	}

	headResp, err := http.Head(ts.URL + "/")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	_ = headResp.Body.Close()
	if headResp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected HEAD status %d", headResp.StatusCode)
	}
}

func TestOCRHappyPath(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{rec: card.ContactRecord{Company: "Acme Corp", Name: "Jane Doe", IsValidated: true}}
	ts := newTestServer(t, p)

	resp := postOCR(t, ts, `{"base64Image1":"Zm9v","base64Image2":"YmFy"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var rec card.ContactRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Company != "Acme Corp" || !rec.IsValidated {
		t.Fatalf("unexpected record %#v", rec)
	}
	if p.fronts[0] != "Zm9v" || p.backs[0] != "YmFy" {
		t.Fatalf("pipeline got wrong images: %q %q", p.fronts[0], p.backs[0])
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("expected a request id header")
	}
}

func TestOCRStripsDataURIPrefix(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{}
	ts := newTestServer(t, p)

	resp := postOCR(t, ts, `{"base64Image1":"data:image/jpeg;base64,Zm9v"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if p.fronts[0] != "Zm9v" {
		t.Fatalf("prefix not stripped: %q", p.fronts[0])
	}
	if p.backs[0] != "" {
		t.Fatalf("expected empty back, got %q", p.backs[0])
	}
}

func TestOCRMissingFrontImage(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &fakePipeline{})

	resp := postOCR(t, ts, `{"base64Image2":"YmFy"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if d := decodeDetail(t, resp); !strings.Contains(d, "base64Image1") {
		t.Fatalf("unexpected detail %q", d)
	}
}

func TestOCRInvalidJSON(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &fakePipeline{})

	resp := postOCR(t, ts, `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}

func TestOCRMethodNotAllowed(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &fakePipeline{})

	resp, err := http.Get(ts.URL + "/ocr")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}

func TestOCRSubmissionErrorMapsToBadGateway(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{err: &sink.SubmissionError{Message: "sheet is locked"}}
	ts := newTestServer(t, p)

	resp := postOCR(t, ts, `{"base64Image1":"Zm9v"}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if d := decodeDetail(t, resp); d != "sheet is locked" {
		t.Fatalf("unexpected detail %q", d)
	}
}

func TestOCRParseErrorMapsToInternal(t *testing.T) {
	t.Parallel()

	p := &fakePipeline{err: &model.ParseError{Stage: "extraction", Err: errors.New("bad json")}}
	ts := newTestServer(t, p)

	resp := postOCR(t, ts, `{"base64Image1":"Zm9v"}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if d := decodeDetail(t, resp); !strings.Contains(d, "malformed") {
		t.Fatalf("unexpected detail %q", d)
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &fakePipeline{})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/ocr", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}

func TestUnknownPath(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &fakePipeline{})

	resp, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}
