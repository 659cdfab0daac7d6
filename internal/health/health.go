package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statusConnected    = "connected"
	statusDisconnected = "disconnected"
	pingTimeout        = 2 * time.Second
)

// Status 健康状态
type Status struct {
	NATS     string `json:"nats"`
	Redis    string `json:"redis"`
	Database string `json:"database"`
}

// Healthy 所有依赖均可用
func (s *Status) Healthy() bool {
	return s.NATS == statusConnected &&
		s.Redis == statusConnected &&
		s.Database == statusConnected
}

// NATSConn *nats.Conn 的连接状态
type NATSConn interface {
	IsConnected() bool
}

// RedisPinger *redis.Client
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// DBPinger *pgxpool.Pool
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Checker 健康检查器
type Checker struct {
	nc    NATSConn
	redis RedisPinger
	db    DBPinger
}

// NewChecker 创建健康检查器
func NewChecker(nc NATSConn, redisClient RedisPinger, db DBPinger) *Checker {
	return &Checker{
		nc:    nc,
		redis: redisClient,
		db:    db,
	}
}

// Check 执行健康检查
func (h *Checker) Check(ctx context.Context) *Status {
	status := &Status{
		NATS:     statusDisconnected,
		Redis:    statusDisconnected,
		Database: statusDisconnected,
	}

	if h.nc.IsConnected() {
		status.NATS = statusConnected
	}

	redisCtx, redisCancel := context.WithTimeout(ctx, pingTimeout)
	defer redisCancel()
	if err := h.redis.Ping(redisCtx).Err(); err == nil {
		status.Redis = statusConnected
	}

	dbCtx, dbCancel := context.WithTimeout(ctx, pingTimeout)
	defer dbCancel()
	if err := h.db.Ping(dbCtx); err == nil {
		status.Database = statusConnected
	}

	return status
}

// IsHealthy 检查是否健康
func (h *Checker) IsHealthy(ctx context.Context) bool {
	return h.Check(ctx).Healthy()
}

// ServeHTTP /health
func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if status.Healthy() {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// NewMux 注册 /health、/ready 与 /metrics
func NewMux(checker *Checker, metricsHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/health", checker)
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if checker.IsHealthy(r.Context()) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Not Ready"))
	})
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	return mux
}
