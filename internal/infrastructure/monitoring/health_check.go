package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/ports"
)

type HealthCheck struct {
	Name    string
	Check   func(ctx context.Context) error
	Timeout time.Duration
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// HealthChecker runs named dependency checks on demand.
type HealthChecker struct {
	mu     sync.RWMutex
	checks []HealthCheck
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

func (h *HealthChecker) AddCheck(name string, timeout time.Duration, check func(ctx context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, HealthCheck{Name: name, Check: check, Timeout: timeout})
}

// AddRedisCheck verifies the Redis connection.
func (h *HealthChecker) AddRedisCheck(client *redis.Client, timeout time.Duration) {
	h.AddCheck("redis", timeout, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

// AddRepositoryCheck verifies the stream repository responds.
func (h *HealthChecker) AddRepositoryCheck(repo ports.StreamRepository, timeout time.Duration) {
	h.AddCheck("repository", timeout, func(ctx context.Context) error {
		_, err := repo.ListActive(ctx)
		return err
	})
}

func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	for _, check := range h.checks {
		checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
		err := check.Check(checkCtx)
		cancel()

		if err != nil {
			status.Status = "unhealthy"
			status.Checks[check.Name] = err.Error()
		} else {
			status.Checks[check.Name] = "healthy"
		}
	}

	return status
}

// IsReady reports whether every dependency check passes.
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	return h.CheckAll(ctx).Status == "healthy"
}
