package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger is any dependency that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type healthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]string      `json:"checks,omitempty"`
	Pools  map[string]interface{} `json:"pools,omitempty"`
}

type HealthHandler struct {
	checks  map[string]Pinger
	pools   map[string]func() interface{}
	timeout time.Duration
}

func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		pools:   make(map[string]func() interface{}),
		timeout: 2 * time.Second,
	}
}

// WithPool adds a connection pool snapshot to the health body.
func (h *HealthHandler) WithPool(name string, stats func() interface{}) *HealthHandler {
	h.pools[name] = stats
	return h
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	if len(h.pools) > 0 {
		resp.Pools = make(map[string]interface{}, len(h.pools))
		for name, stats := range h.pools {
			resp.Pools[name] = stats()
		}
	}
	respondJSON(w, status, resp)
}
