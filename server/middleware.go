package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// rateWindow is the sliding window for rate limiting.
const rateWindow = time.Minute

// evictInterval bounds how often expired counters are swept. The counter
// map is per-process and best-effort by design; multi-instance deployments
// need an external store instead.
const evictInterval = 5 * time.Minute

// DefaultRateLimits returns the per-endpoint requests-per-minute limits.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Limits: map[string]int{
			"/api/classify":  30,
			"/api/search":    60,
			"/api/metadata":  120,
			"/api/llm-costs": 10,
		},
		Default: 100,
	}
}

// RateLimits configures per-endpoint request budgets per minute.
type RateLimits struct {
	Limits  map[string]int
	Default int
}

// Verdict is the outcome of one rate-limit check.
type Verdict struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

type rateCounter struct {
	requests int
	reset    time.Time
}

// RateLimiter is an in-process sliding counter keyed by client IP and
// endpoint, with TTL eviction of expired windows.
type RateLimiter struct {
	mu        sync.Mutex
	limits    RateLimits
	counters  map[string]*rateCounter
	lastSweep time.Time

	// now is injectable for tests.
	now func() time.Time
}

// NewRateLimiter creates a rate limiter with the given limits.
func NewRateLimiter(limits RateLimits) *RateLimiter {
	if limits.Default <= 0 {
		limits.Default = 100
	}
	return &RateLimiter{
		limits:   limits,
		counters: make(map[string]*rateCounter),
		now:      time.Now,
	}
}

// Allow records one request for the ip/endpoint pair and reports whether it
// fits in the current window.
func (l *RateLimiter) Allow(ip, endpoint string) Verdict {
	limit, ok := l.limits.Limits[endpoint]
	if !ok {
		limit = l.limits.Default
	}

	now := l.now()
	key := ip + ":" + endpoint

	l.mu.Lock()
	defer l.mu.Unlock()

	l.maybeSweep(now)

	c, ok := l.counters[key]
	if !ok || now.After(c.reset) {
		c = &rateCounter{requests: 0, reset: now.Add(rateWindow)}
		l.counters[key] = c
	}

	if c.requests >= limit {
		return Verdict{Allowed: false, Limit: limit, Remaining: 0, Reset: c.reset}
	}

	c.requests++
	return Verdict{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - c.requests,
		Reset:     c.reset,
	}
}

// maybeSweep drops expired counters. Called with the lock held.
func (l *RateLimiter) maybeSweep(now time.Time) {
	if now.Sub(l.lastSweep) < evictInterval {
		return
	}
	l.lastSweep = now
	for key, c := range l.counters {
		if now.After(c.reset) {
			delete(l.counters, key)
		}
	}
}

// clientIP extracts the caller's IP, honoring X-Forwarded-For when present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
