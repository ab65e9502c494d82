package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok() Pinger { return PingFunc(func(context.Context) error { return nil }) }

func failing(msg string) Pinger {
	return PingFunc(func(context.Context) error { return errors.New(msg) })
}

func serve(t *testing.T, c *Checker, path string) (int, Response) {
	t.Helper()
	e := echo.New()
	c.RegisterRoutes(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestLiveness(t *testing.T) {
	c := NewChecker("1.0.0")
	c.AddCheck("backend", failing("down"))

	code, body := serve(t, c, "/health/live")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusHealthy, body.Status)
	assert.Equal(t, "1.0.0", body.Version)
}

func TestReadiness_NotReady(t *testing.T) {
	c := NewChecker("1.0.0")

	code, body := serve(t, c, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "service is still starting up", body.Checks["startup"].Message)
}

func TestReadiness_Checks(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(c *Checker)
		code     int
		expected Status
	}{
		{
			name:     "all healthy",
			setup:    func(c *Checker) { c.AddCheck("backend", ok()); c.AddOptionalCheck("redis", ok()) },
			code:     http.StatusOK,
			expected: StatusHealthy,
		},
		{
			name:     "optional down degrades",
			setup:    func(c *Checker) { c.AddCheck("backend", ok()); c.AddOptionalCheck("redis", failing("refused")) },
			code:     http.StatusOK,
			expected: StatusDegraded,
		},
		{
			name:     "required down",
			setup:    func(c *Checker) { c.AddCheck("backend", failing("refused")); c.AddOptionalCheck("redis", ok()) },
			code:     http.StatusServiceUnavailable,
			expected: StatusUnhealthy,
		},
		{
			name:     "required not configured",
			setup:    func(c *Checker) { c.AddCheck("redis", nil) },
			code:     http.StatusServiceUnavailable,
			expected: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker("1.0.0")
			tt.setup(c)
			c.SetReady(true)

			code, body := serve(t, c, "/health/ready")
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.expected, body.Status)
		})
	}
}

func TestRunChecks_Message(t *testing.T) {
	c := NewChecker("")
	c.AddOptionalCheck("redis", failing("connection refused"))

	checks := c.RunChecks(context.Background())
	assert.Equal(t, StatusDegraded, checks["redis"].Status)
	assert.Equal(t, "connection refused", checks["redis"].Message)
	assert.NotEmpty(t, checks["redis"].Latency)
}
