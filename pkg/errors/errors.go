package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

type Kind string

const (
	KindQueryParse      Kind = "query_parse"
	KindInvalidState    Kind = "invalid_state"
	KindTransport       Kind = "transport"
	KindAmbiguousLookup Kind = "ambiguous_lookup"
)

// Error is a structured failure raised by the query and reconcile layers
type Error struct {
	Kind    Kind
	Message string
	Details []string
	Table   string
	Field   string
	cause   error
}

func newError(kind Kind, msg string) *Error {
	return &Error{
		Kind:    kind,
		Message: msg,
	}
}

// NewQueryParseError collects every per-condition parse message of one query
func NewQueryParseError(messages []string) *Error {
	e := newError(KindQueryParse, "invalid query")
	e.Details = append([]string(nil), messages...)
	return e
}

func NewInvalidState(msg string) *Error {
	return newError(KindInvalidState, msg)
}

func NewInvalidStatef(format string, args ...any) *Error {
	return newError(KindInvalidState, fmt.Sprintf(format, args...))
}

// NewTransportError wraps a connection or authentication failure of the transport
func NewTransportError(err error) *Error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) && existing.Kind == KindTransport {
		return existing
	}

	e := newError(KindTransport, err.Error())
	e.cause = err
	return e
}

func NewTransportErrorf(format string, args ...any) *Error {
	return newError(KindTransport, fmt.Sprintf(format, args...))
}

// NewAmbiguousLookup reports that a lookup expected to be unique matched several records
func NewAmbiguousLookup(table, query string, count int) *Error {
	e := newError(KindAmbiguousLookup, fmt.Sprintf("%d records match query %q, expected at most one", count, query))
	e.Table = table
	return e
}

func (e *Error) Error() string {
	path := []string{}
	if e.Table != "" {
		path = append(path, fmt.Sprintf("table '%s'", e.Table))
	}
	if e.Field != "" {
		path = append(path, fmt.Sprintf("field '%s'", e.Field))
	}

	msg := e.Message
	if len(e.Details) > 0 {
		msg = msg + ": " + strings.Join(e.Details, " ")
	}

	if len(path) == 0 {
		return msg
	}

	return strings.Join(path, " -> ") + ": " + msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) AddTable(table string) *Error {
	e.Table = table
	return e
}

func (e *Error) AddField(field string) *Error {
	e.Field = field
	return e
}

// StatusCode is the HTTP status the error is served with
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindQueryParse:
		return http.StatusBadRequest
	case KindInvalidState:
		return http.StatusUnprocessableEntity
	case KindAmbiguousLookup:
		return http.StatusConflict
	case KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (e *Error) ToHTTPError() *httperror.HTTPError {
	httpErr := httperror.NewHTTPError(e.StatusCode(), e.Error()).AddMetaValue("kind", string(e.Kind))
	if e.Table != "" {
		httpErr = httpErr.AddMetaValue("table", e.Table)
	}
	if e.Field != "" {
		httpErr = httpErr.AddMetaValue("field", e.Field)
	}
	if len(e.Details) > 0 {
		httpErr = httpErr.AddMetaValue("errors", e.Details)
	}
	return httpErr
}

func kindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func IsQueryParseError(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindQueryParse
}

func IsInvalidState(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindInvalidState
}

func IsTransportError(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindTransport
}

func IsAmbiguousLookup(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindAmbiguousLookup
}

// AsError extracts the structured error from a chain
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
