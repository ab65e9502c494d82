// Package handlers serves the record, query and CMDB endpoints of the fern service.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/query"
	"github.com/Ramsey-B/fern/pkg/records"
	"github.com/Ramsey-B/fern/pkg/relationships"
)

// RecordService is the part of records.Service the handlers use
type RecordService interface {
	CompileQuery(ctx context.Context, table string, groups []query.Group) (string, error)
	List(ctx context.Context, table, encodedQuery string, opts records.FindOptions) ([]models.Record, error)
	Ensure(ctx context.Context, req records.EnsureRequest) (records.Result, error)
	EnsureAbsent(ctx context.Context, req records.AbsentRequest) (records.Result, error)
	EnhanceByIDs(ctx context.Context, ciTable string, sysIDs []string) ([]relationships.Enhanced, error)
}

// SuccessResponse returns a 200 OK with data
func SuccessResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, data)
}

// BadRequest returns a 400 Bad Request error
func BadRequest(message string) error {
	return httperror.NewHTTPError(http.StatusBadRequest, message)
}

// QueryBool parses an optional boolean query parameter
func QueryBool(c echo.Context, name string) (bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid %s: must be true or false", name)
	}
	return value, nil
}

// QueryInt parses an optional non-negative integer query parameter
func QueryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid %s: must be a non-negative integer", name)
	}
	return value, nil
}

// QueryList splits a comma-separated query parameter, dropping empty entries
func QueryList(c echo.Context, name string) []string {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil
	}
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
