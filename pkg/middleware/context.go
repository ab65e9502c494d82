package middleware

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	routeKey
)

// SetRequestID stores the request id in ctx
func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the request id stored in ctx, or ""
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// GetRoute returns the raw request path stored by Context
func GetRoute(ctx context.Context) string {
	path, _ := ctx.Value(routeKey).(string)
	return path
}

// Context puts the request id and route on the request context and echoes the id back
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			// a caller-supplied id is kept
			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := context.WithValue(SetRequestID(req.Context(), requestID), routeKey, req.URL.Path)
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}
