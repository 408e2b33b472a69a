// Package server exposes the note-capture HTTP JSON API: classification,
// metadata operations, search, cost reporting, and health.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/quickjot/quickjot/classify"
	"github.com/quickjot/quickjot/note"
	"github.com/quickjot/quickjot/store"
)

// maxRequestBodySize limits POST body sizes to prevent DoS.
const maxRequestBodySize = 1 << 20 // 1 MB

// Classifier is the pipeline surface the handlers depend on.
type Classifier interface {
	Classify(ctx context.Context, noteID, content string) (*classify.Result, error)
	ExtractMetadata(ctx context.Context, noteID, content string, category note.Category) (note.Metadata, error)
}

// Server wires the store, the classification pipeline, and middleware into
// HTTP handlers.
type Server struct {
	store    *store.DB
	pipeline Classifier
	limiter  *RateLimiter
	logger   *slog.Logger
	version  string

	// llmProbe checks LLM provider reachability for /api/health.
	// nil reports the service as unconfigured.
	llmProbe func(ctx context.Context) error

	// allowedEmails restricts access behind an authenticating proxy.
	// Empty or nil allows everyone.
	allowedEmails map[string]bool

	startTime time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the version string reported by /api/health.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithRateLimiter replaces the default rate limiter.
func WithRateLimiter(l *RateLimiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// WithLLMProbe sets the LLM reachability check used by /api/health.
func WithLLMProbe(probe func(ctx context.Context) error) Option {
	return func(s *Server) {
		s.llmProbe = probe
	}
}

// WithAllowedEmails restricts API access to the given identities when
// an authenticating proxy forwards the user's email in
// X-Forwarded-Email. Empty allows everyone.
func WithAllowedEmails(emails []string) Option {
	return func(s *Server) {
		s.allowedEmails = make(map[string]bool, len(emails))
		for _, e := range emails {
			s.allowedEmails[strings.ToLower(e)] = true
		}
	}
}

// New creates a Server.
func New(db *store.DB, pipeline Classifier, opts ...Option) *Server {
	s := &Server{
		store:     db,
		pipeline:  pipeline,
		limiter:   NewRateLimiter(DefaultRateLimits()),
		logger:    slog.Default(),
		version:   "development",
		startTime: time.Now(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// RegisterHTTPHandlers registers all API handlers on the mux.
func (s *Server) RegisterHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/api/notes", s.limit("/api/notes", s.handleNotes))
	mux.HandleFunc("/api/classify", s.limit("/api/classify", s.handleClassify))
	mux.HandleFunc("/api/extract-metadata", s.limit("/api/metadata", s.handleExtractMetadata))
	mux.HandleFunc("/api/metadata", s.limit("/api/metadata", s.handleMetadata))
	mux.HandleFunc("/api/search", s.limit("/api/search", s.handleSearch))
	mux.HandleFunc("/api/llm-costs", s.limit("/api/llm-costs", s.handleLLMCosts))
	mux.HandleFunc("/api/health", s.handleHealth)
}

// limit wraps a handler with the identity check and the per-IP,
// per-endpoint rate limiter.
func (s *Server) limit(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(s.allowedEmails) > 0 {
			email := strings.ToLower(r.Header.Get("X-Forwarded-Email"))
			if !s.allowedEmails[email] {
				writeError(w, http.StatusForbidden, "Forbidden")
				return
			}
		}

		verdict := s.limiter.Allow(clientIP(r), endpoint)
		w.Header().Set("X-RateLimit-Limit", itoa(verdict.Limit))
		w.Header().Set("X-RateLimit-Remaining", itoa(verdict.Remaining))
		w.Header().Set("X-RateLimit-Reset", itoa(int(verdict.Reset.Unix())))

		if !verdict.Allowed {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":      "Rate limit exceeded",
				"retryAfter": int(time.Until(verdict.Reset).Seconds()) + 1,
			})
			return
		}

		next(w, r)
	}
}

// writeJSON marshals v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Response is already partially written; nothing to recover.
		_ = err
	}
}

// writeError writes the standard {error: string} body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
