// Package mocksink implements an in-memory stand-in for the external
// submission endpoint, for client- and handler-level tests.
package mocksink

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
)

// Submission records one payload received by the mock.
type Submission struct {
	Action string         `json:"action"`
	Photo1 string         `json:"photo1Base64"`
	Photo2 string         `json:"photo2Base64"`
	Record map[string]any `json:"extractedData"`
}

// Server accepts save submissions and can be told to fail.
type Server struct {
	mu          sync.Mutex
	submissions []Submission

	rejectMessage string
	statusCode    int
}

func New() *Server {
	return &Server{}
}

// RejectWith makes subsequent submissions fail with success=false and the
// given message. Pass an empty string to accept again.
func (s *Server) RejectWith(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectMessage = message
}

// FailWithStatus makes subsequent submissions fail at the HTTP level.
// Pass 0 to restore normal behavior.
func (s *Server) FailWithStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCode = code
}

// Submissions returns a snapshot of accepted submissions.
func (s *Server) Submissions() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Submission, len(s.submissions))
	copy(out, s.submissions)
	return out
}

// Handler returns an http.Handler serving the mock endpoint at any path.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		s.mu.Lock()
		statusCode := s.statusCode
		rejectMessage := s.rejectMessage
		s.mu.Unlock()

		if statusCode != 0 {
			http.Error(w, "sink unavailable", statusCode)
			return
		}

		b, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		var sub Submission
		if err := json.Unmarshal(b, &sub); err != nil {
			http.Error(w, "parse body", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if rejectMessage != "" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"message": rejectMessage,
			})
			return
		}

		s.mu.Lock()
		s.submissions = append(s.submissions, sub)
		s.mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	})
}
