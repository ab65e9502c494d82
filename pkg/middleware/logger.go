package middleware

import (
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/metrics"
)

// Logger writes one access line per request and observes the inbound request metrics.
// Health probes and scrapes are measured but not logged.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			started := time.Now()
			if err := next(c); err != nil {
				// render now so the status below is the one the client sees
				c.Error(err)
			}
			elapsed := time.Since(started)

			req := c.Request()
			res := c.Response()
			route := c.Path()
			metrics.RecordServedRequest(req.Method, route, res.Status, elapsed.Seconds())

			if isQuietRoute(route) {
				return nil
			}

			entry := logger.WithContext(req.Context()).WithFields(map[string]any{
				"request_id":  GetRequestID(req.Context()),
				"method":      req.Method,
				"route":       route,
				"path":        GetRoute(req.Context()),
				"status":      res.Status,
				"duration_ms": elapsed.Milliseconds(),
				"bytes_in":    req.Header.Get(echo.HeaderContentLength),
				"bytes_out":   strconv.FormatInt(res.Size, 10),
				"remote_ip":   c.RealIP(),
			})
			if res.Status >= 500 {
				entry.Warn("Request failed")
				return nil
			}
			entry.Info("Request")
			return nil
		}
	}
}

func isQuietRoute(route string) bool {
	switch route {
	case "/health", "/health/live", "/health/ready", "/metrics":
		return true
	}
	return false
}
