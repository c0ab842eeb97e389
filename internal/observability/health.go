package observability

import (
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthChecker manages liveness and readiness state for the HTTP surface:
// /healthz (liveness) and /readyz (readiness).
type HealthChecker struct {
	ready     atomic.Bool
	startTime time.Time
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		startTime: time.Now(),
	}
}

// SetReady marks the service as ready to accept traffic: config initialized,
// ledgers seeded, feed and persistence workers running.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// LivenessHandler always returns OK while the process is running.
func (h *HealthChecker) LivenessHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "alive",
		"uptime": time.Since(h.startTime).String(),
	})
}

// ReadinessHandler returns 200 once startup completed, 503 before.
func (h *HealthChecker) ReadinessHandler(c *fiber.Ctx) error {
	if h.ready.Load() {
		return c.JSON(fiber.Map{"status": "ready"})
	}
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not_ready"})
}
