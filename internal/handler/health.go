package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segyhp/ledger-engine/internal/repository"
	"github.com/segyhp/ledger-engine/pkg/response"
)

type dependency struct {
	name string
	ping func(ctx context.Context) error
}

type HealthHandler struct {
	deps    []dependency
	timeout time.Duration
}

// NewHealthHandler pings the store and, when configured, redis.
func NewHealthHandler(store repository.Store, client *redis.Client, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	h := &HealthHandler{timeout: timeout}
	h.deps = append(h.deps, dependency{name: "database", ping: store.Ping})
	if client != nil {
		h.deps = append(h.deps, dependency{name: "redis", ping: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
	}
	return h
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Health reports liveness only.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, HealthStatus{Status: "ok", Timestamp: time.Now().UTC()})
}

// Ready answers 503 when any dependency fails its ping.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := HealthStatus{Status: "ok", Timestamp: time.Now().UTC(), Checks: make(map[string]string, len(h.deps))}
	for _, p := range h.deps {
		if err := p.ping(ctx); err != nil {
			status.Status = "unavailable"
			status.Checks[p.name] = "failed: " + err.Error()
			continue
		}
		status.Checks[p.name] = "ok"
	}

	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, code, status)
}
