package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const readinessTimeout = time.Second

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db    Pinger
	redis redis.Cmdable
}

// NewHealthHandler accepts nil for either dependency when it is not in use.
func NewHealthHandler(db Pinger, redis redis.Cmdable) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Live reports the process is serving.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready pings the ledger database and, when configured, Redis. The body
// lists every check so a failing probe names the dependency.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	out := readiness{Status: "ready", Checks: map[string]string{}}
	check := func(name string, ping func(context.Context) error) {
		if ping == nil {
			out.Checks[name] = "disabled"
			return
		}
		if err := ping(ctx); err != nil {
			zap.L().Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
			out.Checks[name] = "unavailable"
			out.Status = "unavailable"
			return
		}
		out.Checks[name] = "ok"
	}

	var dbPing, redisPing func(context.Context) error
	if h.db != nil {
		dbPing = h.db.Ping
	}
	if h.redis != nil {
		redisPing = func(ctx context.Context) error { return h.redis.Ping(ctx).Err() }
	}
	check("postgres", dbPing)
	check("redis", redisPing)

	status := http.StatusOK
	if out.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	RespondJSON(w, status, out)
}
