package server

import (
	"context"
	"net/http"
	"time"

	"blind-book-reader/internal/catalog"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the health of an individual component
type ComponentStatus string

const (
	ComponentStatusUp       ComponentStatus = "up"
	ComponentStatusDown     ComponentStatus = "down"
	ComponentStatusDegraded ComponentStatus = "degraded"
)

// slowProbe marks a component degraded when its probe takes longer.
const slowProbe = time.Second

// Health represents the complete health check response
type Health struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents the health of a single system component
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs float64         `json:"latency_ms,omitempty"`
}

// HandleHealth provides a detailed health check endpoint
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := s.checkHealth(ctx)

	// Degraded still answers 200.
	statusCode := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, health)
}

// checkHealth probes every dependency that can report on itself.
func (s *Server) checkHealth(ctx context.Context) Health {
	health := Health{
		Timestamp:  time.Now().UTC(),
		Version:    s.version,
		Components: make(map[string]ComponentHealth),
	}

	if p, ok := s.catalog.(catalog.Pinger); ok {
		health.Components["catalog"] = probe(ctx, "catalog", p.Ping)
	} else {
		health.Components["catalog"] = ComponentHealth{Status: ComponentStatusUp, Message: "no probe available"}
	}
	health.Components["artifacts"] = probe(ctx, "artifacts", s.artifacts.Ping)

	health.Status = determineOverallHealth(health.Components)
	return health
}

func probe(ctx context.Context, name string, ping func(context.Context) error) ComponentHealth {
	start := time.Now()
	if err := ping(ctx); err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: name + " check failed: " + err.Error(),
		}
	}
	latency := time.Since(start)

	status := ComponentStatusUp
	message := name + " healthy"
	if latency > slowProbe {
		status = ComponentStatusDegraded
		message = name + " latency high"
	}
	return ComponentHealth{
		Status:    status,
		Message:   message,
		LatencyMs: float64(latency.Microseconds()) / 1000,
	}
}

// determineOverallHealth calculates overall health from component statuses
func determineOverallHealth(components map[string]ComponentHealth) HealthStatus {
	var (
		downCount     int
		degradedCount int
	)

	for _, component := range components {
		switch component.Status {
		case ComponentStatusDown:
			downCount++
		case ComponentStatusDegraded:
			degradedCount++
		}
	}

	if downCount > 0 {
		return HealthStatusUnhealthy
	}
	if degradedCount > 0 {
		return HealthStatusDegraded
	}
	return HealthStatusHealthy
}
