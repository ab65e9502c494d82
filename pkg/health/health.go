// Package health serves the liveness and readiness probes. Liveness only says the process
// answers. Readiness pings the backend instance and the optional stores.
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// deadline for a single ping
const checkTimeout = 5 * time.Second

type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type Response struct {
	Status     Status                 `json:"status"`
	Version    string                 `json:"version,omitempty"`
	Uptime     string                 `json:"uptime,omitempty"`
	Checks     map[string]CheckResult `json:"checks,omitempty"`
	ReportedAt time.Time              `json:"reported_at"`
}

// Pinger is anything that can tell whether it is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type registered struct {
	pinger   Pinger
	optional bool
}

// Checker owns the registered dependencies and the ready flag
type Checker struct {
	version string
	started time.Time
	ready   atomic.Bool

	mu   sync.RWMutex
	deps map[string]registered
}

func NewChecker(version string) *Checker {
	return &Checker{
		version: version,
		started: time.Now(),
		deps:    map[string]registered{},
	}
}

// AddCheck registers a dependency the service cannot work without
func (c *Checker) AddCheck(name string, pinger Pinger) {
	c.register(name, registered{pinger: pinger})
}

// AddOptionalCheck registers a dependency whose outage only degrades the service
func (c *Checker) AddOptionalCheck(name string, pinger Pinger) {
	c.register(name, registered{pinger: pinger, optional: true})
}

func (c *Checker) register(name string, dep registered) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deps[name] = dep
}

func (c *Checker) SetReady(ready bool) { c.ready.Store(ready) }

func (c *Checker) IsReady() bool { return c.ready.Load() }

func (c *Checker) report(status Status, checks map[string]CheckResult) Response {
	return Response{
		Status:     status,
		Version:    c.version,
		Uptime:     time.Since(c.started).Round(time.Second).String(),
		Checks:     checks,
		ReportedAt: time.Now().UTC(),
	}
}

func (c *Checker) LivenessHandler(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.report(StatusHealthy, nil))
}

// ReadinessHandler fails until startup has finished, then reports the dependency checks
func (c *Checker) ReadinessHandler(ctx echo.Context) error {
	if !c.IsReady() {
		return ctx.JSON(http.StatusServiceUnavailable, c.report(StatusUnhealthy, map[string]CheckResult{
			"startup": {Status: StatusUnhealthy, Message: "service is still starting up"},
		}))
	}
	return c.HealthHandler(ctx)
}

func (c *Checker) HealthHandler(ctx echo.Context) error {
	checks := c.RunChecks(ctx.Request().Context())
	status := OverallStatus(checks)

	code := http.StatusOK
	if status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, c.report(status, checks))
}

// RunChecks pings every dependency concurrently
func (c *Checker) RunChecks(ctx context.Context) map[string]CheckResult {
	c.mu.RLock()
	deps := make(map[string]registered, len(c.deps))
	for name, dep := range c.deps {
		deps[name] = dep
	}
	c.mu.RUnlock()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(deps))
	)
	for name, dep := range deps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := ping(ctx, dep)
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

func ping(ctx context.Context, dep registered) CheckResult {
	down := StatusUnhealthy
	if dep.optional {
		down = StatusDegraded
	}
	if dep.pinger == nil {
		return CheckResult{Status: down, Message: "not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := dep.pinger.Ping(ctx)
	latency := time.Since(start).String()
	if err != nil {
		return CheckResult{Status: down, Message: err.Error(), Latency: latency}
	}
	return CheckResult{Status: StatusHealthy, Latency: latency}
}

// OverallStatus is the worst status among checks
func OverallStatus(checks map[string]CheckResult) Status {
	overall := StatusHealthy
	for _, result := range checks {
		switch {
		case result.Status == StatusUnhealthy:
			return StatusUnhealthy
		case result.Status == StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

// RegisterRoutes mounts /health, /health/live and /health/ready
func (c *Checker) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/health")
	g.GET("", c.HealthHandler)
	g.GET("/live", c.LivenessHandler)
	g.GET("/ready", c.ReadinessHandler)
}
