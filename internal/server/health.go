package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
	healthStatusUnreachable  = "unreachable"
	healthStatusSimulation   = "simulation"
)

const storePingTimeout = 2 * time.Second

// HealthResponse is the body of /healthz and /readyz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse is the body of /healthz/detailed.
type DetailedHealthResponse struct {
	Status   string `json:"status"`
	Uptime   string `json:"uptime"`
	Calendar string `json:"calendar"`
}

// readinessCheck returns healthStatusOK or the reason the server should not
// receive traffic.
type readinessCheck struct {
	name  string
	check func(ctx context.Context) string
}

// HealthChecker serves liveness and readiness probes for the chat API and the
// MCP HTTP server. Readiness fails once SetReady(false) is called, while the
// server context shuts down, or when the booking store stops answering pings.
type HealthChecker struct {
	sc      *ServerContext
	ready   atomic.Bool
	started time.Time
	checks  []readinessCheck
}

// NewHealthChecker returns a ready checker. sc may be nil, in which case only
// the ready flag is consulted.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{sc: sc, started: time.Now()}
	h.ready.Store(true)

	h.checks = append(h.checks, readinessCheck{"ready", func(context.Context) string {
		if h.ready.Load() {
			return healthStatusOK
		}
		return healthStatusNotReady
	}})
	if sc == nil {
		return h
	}
	h.checks = append(h.checks,
		readinessCheck{"shutdown", func(context.Context) string {
			if sc.IsShutdown() {
				return healthStatusShuttingDown
			}
			return healthStatusOK
		}},
		readinessCheck{"store", func(ctx context.Context) string {
			ctx, cancel := context.WithTimeout(ctx, storePingTimeout)
			defer cancel()
			if err := sc.Store().Ping(ctx); err != nil {
				return healthStatusUnreachable
			}
			return healthStatusOK
		}},
	)
	return h
}

func (h *HealthChecker) SetReady(ready bool) { h.ready.Store(ready) }

func (h *HealthChecker) IsReady() bool { return h.ready.Load() }

// LivenessHandler always answers ok while the process can serve HTTP.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeHealthJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler runs every check and answers 503 if any of them fails.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: healthStatusOK, Checks: make(map[string]string, len(h.checks))}
		for _, c := range h.checks {
			result := c.check(r.Context())
			resp.Checks[c.name] = result
			if result != healthStatusOK {
				resp.Status = healthStatusNotReady
			}
		}
		code := http.StatusOK
		if resp.Status != healthStatusOK {
			code = http.StatusServiceUnavailable
		}
		writeHealthJSON(w, code, resp)
	})
}

// DetailedHealthHandler adds uptime and whether bookings reach an external
// calendar.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := DetailedHealthResponse{
			Status:   healthStatusOK,
			Uptime:   time.Since(h.started).Truncate(time.Second).String(),
			Calendar: healthStatusOK,
		}
		if h.sc != nil && h.sc.Assistant().Simulated() {
			resp.Calendar = healthStatusSimulation
		}

		code := http.StatusOK
		switch {
		case !h.IsReady():
			resp.Status, code = healthStatusNotReady, http.StatusServiceUnavailable
		case h.sc != nil && h.sc.IsShutdown():
			resp.Status, code = healthStatusShuttingDown, http.StatusServiceUnavailable
		}
		writeHealthJSON(w, code, resp)
	})
}

// RegisterHealthEndpoints mounts the probes on mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("GET /healthz", h.LivenessHandler())
	mux.Handle("GET /readyz", h.ReadinessHandler())
	mux.Handle("GET /healthz/detailed", h.DetailedHealthHandler())
}

func writeHealthJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
