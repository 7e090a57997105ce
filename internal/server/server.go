// Package server exposes the card pipeline over HTTP: one POST endpoint
// that accepts photographed cards and returns the saved contact record,
// plus a health probe on the root path.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/shpitdev/bizcard-pipeline/internal/card"
	"github.com/shpitdev/bizcard-pipeline/internal/model"
	"github.com/shpitdev/bizcard-pipeline/internal/sink"
)

// Pipeline runs one card through extraction, validation, enrichment and
// submission.
type Pipeline interface {
	Run(ctx context.Context, front, back string) (card.ContactRecord, error)
}

// Server handles inbound HTTP requests.
type Server struct {
	pipeline Pipeline
	logger   zerolog.Logger
	timeout  time.Duration
}

// Options tune a Server.
type Options struct {
	// RequestTimeout bounds one /ocr request end to end. Zero means no
	// server-side deadline.
	RequestTimeout time.Duration
}

func New(p Pipeline, logger zerolog.Logger, opts Options) *Server {
	return &Server{
		pipeline: p,
		logger:   logger,
		timeout:  opts.RequestTimeout,
	}
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/ocr", s.handleOCR)
	return s.withRequestLog(withCORS(mux))
}

type ocrRequest struct {
	Base64Image1 string `json:"base64Image1"`
	Base64Image2 string `json:"base64Image2"`
}

type errorReply struct {
	Detail string `json:"detail"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{"status": "OCR Backend is running"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ocrRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	front := stripDataURI(req.Base64Image1)
	back := stripDataURI(req.Base64Image2)
	if strings.TrimSpace(front) == "" {
		writeError(w, http.StatusBadRequest, "base64Image1 is required")
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rec, err := s.pipeline.Run(ctx, front, back)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) writePipelineError(w http.ResponseWriter, r *http.Request, err error) {
	log := zerolog.Ctx(r.Context())

	var se *sink.SubmissionError
	if errors.As(err, &se) {
		log.Error().Str("error", se.Error()).Msg("http.submit_failed")
		writeError(w, http.StatusBadGateway, se.Message)
		return
	}

	var pe *model.ParseError
	if errors.As(err, &pe) {
		log.Error().Str("stage", pe.Stage).Str("error", pe.Error()).Msg("http.malformed_model_output")
		writeError(w, http.StatusInternalServerError, "model returned malformed output")
		return
	}

	log.Error().Str("error", err.Error()).Msg("http.pipeline_failed")
	writeError(w, http.StatusInternalServerError, "processing failed")
}

// stripDataURI drops a "data:<mime>;base64," prefix when present, so
// clients may send either raw base64 or a full data URI.
func stripDataURI(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		return s[i+1:]
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorReply{Detail: detail})
}

// withCORS allows browser clients from any origin and answers preflights.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, HEAD, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRequestLog attaches a request-scoped logger with a fresh request id
// and logs one line per request.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := xid.New().String()
		log := s.logger.With().Str("request_id", reqID).Logger()
		r = r.WithContext(log.WithContext(r.Context()))
		w.Header().Set("X-Request-Id", reqID)

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", time.Since(start)).
			Msg("http.request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
