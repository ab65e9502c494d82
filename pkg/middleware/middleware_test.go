package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
)

func newTestServer(handler echo.HandlerFunc) *echo.Echo {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	e := echo.New()
	e.HTTPErrorHandler = Error(logger)
	e.Use(Context())
	e.Use(Logger(logger))
	e.GET("/test", handler)
	return e
}

func call(t *testing.T, e *echo.Echo, requestID string) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if requestID != "" {
		req.Header.Set(echo.HeaderXRequestID, requestID)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body ErrorResponse
	if rec.Code >= http.StatusBadRequest {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
		meta    map[string]any
	}{
		{
			name:    "query parse error",
			err:     ferrors.NewQueryParseError([]string{"Invalid condition: state ~ 1"}).AddTable("incident"),
			code:    http.StatusBadRequest,
			message: "table 'incident': invalid query: Invalid condition: state ~ 1",
			meta: map[string]any{
				"kind":   "query_parse",
				"table":  "incident",
				"errors": []any{"Invalid condition: state ~ 1"},
			},
		},
		{
			name:    "wrapped transport error",
			err:     fmt.Errorf("failed to list incident records: %w", ferrors.NewTransportErrorf("authentication failed: 401")),
			code:    http.StatusBadGateway,
			message: "authentication failed: 401",
			meta:    map[string]any{"kind": "transport"},
		},
		{
			name:    "http error",
			err:     httperror.NewHTTPError(http.StatusNotFound, "record not found"),
			code:    http.StatusNotFound,
			message: "record not found",
		},
		{
			name:    "echo error",
			err:     echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"),
			code:    http.StatusMethodNotAllowed,
			message: "nope",
		},
		{
			name:    "unknown error",
			err:     errors.New("boom"),
			code:    http.StatusInternalServerError,
			message: "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestServer(func(echo.Context) error { return tt.err })

			rec, body := call(t, e, "req-1")
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, body.Message, tt.message)
			assert.Equal(t, "req-1", body.RequestID)
			for key, value := range tt.meta {
				assert.Equal(t, value, body.Meta[key], key)
			}
		})
	}
}

func TestContext_GeneratesRequestID(t *testing.T) {
	var seen string
	e := newTestServer(func(c echo.Context) error {
		seen = GetRequestID(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})

	rec, _ := call(t, e, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(echo.HeaderXRequestID))
}

func TestContext_KeepsIncomingRequestID(t *testing.T) {
	var seen string
	e := newTestServer(func(c echo.Context) error {
		seen = GetRequestID(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})

	call(t, e, "abc")
	assert.Equal(t, "abc", seen)
}
