package server

import (
	"context"
	"net/http"
	"time"
)

// probeTimeout bounds each dependency check so a hung dependency cannot
// stall the health endpoint.
const probeTimeout = 5 * time.Second

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status    string            `json:"status"` // healthy | degraded | unhealthy
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
	UptimeSec int64             `json:"uptime"`
}

// handleHealth probes the database and the LLM provider. A down database
// makes the service unhealthy (503); a down provider only degrades it,
// since notes can still be captured and classified later.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	dbStatus := "healthy"
	{
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		if err := s.store.Ping(ctx); err != nil {
			s.logger.Warn("Health: database probe failed", "error", err)
			dbStatus = "unhealthy"
		}
		cancel()
	}

	llmStatus := "healthy"
	if s.llmProbe == nil {
		llmStatus = "unhealthy"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		if err := s.llmProbe(ctx); err != nil {
			s.logger.Warn("Health: LLM probe failed", "error", err)
			llmStatus = "unhealthy"
		}
		cancel()
	}

	status := "healthy"
	statusCode := http.StatusOK
	switch {
	case dbStatus == "unhealthy":
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	case llmStatus == "unhealthy":
		status = "degraded"
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	writeJSON(w, statusCode, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Version:   s.version,
		Services: map[string]string{
			"database": dbStatus,
			"llm":      llmStatus,
		},
		UptimeSec: int64(time.Since(s.startTime).Seconds()),
	})
}
