// Package middleware holds the echo middleware of the fern service.
package middleware

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type ErrorResponse struct {
	Message   string         `json:"message"`
	RequestID string         `json:"request_id"`
	TraceID   string         `json:"trace_id"`
	Meta      map[string]any `json:"meta"`
}

// Error renders handler errors as ErrorResponse. Domain errors carry their own status.
func Error(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		ctx := c.Request().Context()
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := "Internal Server Error"
		meta := map[string]any{}

		var echoErr *echo.HTTPError
		if errors.As(err, &echoErr) {
			code = echoErr.Code
			if msg, ok := echoErr.Message.(string); ok {
				message = msg
			}
		}

		httpErr := asHTTPError(err)
		if httpErr != nil {
			code = httperror.GetStatusCode(httpErr)
			message = httpErr.Error()
			if httpErr.Meta != nil {
				meta = httpErr.Meta
			}
		}

		if code >= http.StatusInternalServerError {
			logger.WithContext(ctx).WithError(err).Errorf("%s %s failed with %d", c.Request().Method, c.Path(), code)
		} else {
			logger.WithContext(ctx).WithError(err).Warnf("%s %s rejected with %d", c.Request().Method, c.Path(), code)
		}

		_ = c.JSON(code, ErrorResponse{
			Message:   message,
			RequestID: GetRequestID(ctx),
			TraceID:   tracing.GetTraceID(ctx),
			Meta:      meta,
		})
	}
}

func asHTTPError(err error) *httperror.HTTPError {
	if domainErr, ok := ferrors.AsError(err); ok {
		return domainErr.ToHTTPError()
	}

	var httpErr *httperror.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	if httperror.IsHTTPError(err) {
		return httperror.ToHTTPError(err)
	}
	return nil
}
