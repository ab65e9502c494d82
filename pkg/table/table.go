// Package table reads and writes records of a backend table through the REST table API.
package table

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/expressions"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/query"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	// APIPath is the prefix of the table API
	APIPath = "api/now/table"

	// DefaultPageSize is the number of records requested per page
	DefaultPageSize = 1000
)

// Transport sends a request to the backend
type Transport interface {
	Request(ctx context.Context, method, path string, query url.Values, body any) (*httpclient.Response, error)
}

// ListOptions controls a list call
type ListOptions struct {
	// Query is an encoded query
	Query string
	// Fields restricts the returned columns
	Fields []string
	// Limit caps the total number of records, 0 means no cap
	Limit int
	// PageSize overrides the client's page size
	PageSize int
}

// Client is the table access layer
type Client struct {
	transport Transport
	evaluator *expressions.Evaluator
	pageSize  int
	logger    ectologger.Logger
}

// NewClient creates a table client. A pageSize of 0 uses DefaultPageSize.
func NewClient(transport Transport, pageSize int, logger ectologger.Logger) *Client {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Client{
		transport: transport,
		evaluator: expressions.NewEvaluator(),
		pageSize:  pageSize,
		logger:    logger,
	}
}

// Ping reads at most one sys_id of tableName to verify connectivity and credentials
func (c *Client) Ping(ctx context.Context, tableName string) error {
	params := url.Values{}
	params.Set("sysparm_limit", "1")
	params.Set("sysparm_fields", models.SysIDField)

	resp, err := c.transport.Request(ctx, http.MethodGet, tablePath(tableName, ""), params, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return c.unexpectedStatus(resp, "ping", tableName)
	}
	return nil
}

func tablePath(table string, sysID string) string {
	path := APIPath + "/" + url.PathEscape(table)
	if sysID != "" {
		path += "/" + url.PathEscape(sysID)
	}
	return path
}

// List fetches every record matching opts.Query, following pages until the backend
// returns a short page or opts.Limit is reached.
func (c *Client) List(ctx context.Context, table string, opts ListOptions) (records []models.Record, err error) {
	ctx, span := tracing.StartSpan(ctx, "table.List",
		attribute.String("table", table),
		attribute.String("query", opts.Query),
	)
	defer func() { tracing.EndSpan(span, err) }()

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = c.pageSize
	}

	records = []models.Record{}
	for offset := 0; ; offset += pageSize {
		limit := pageSize
		if opts.Limit > 0 && opts.Limit-len(records) < limit {
			limit = opts.Limit - len(records)
		}

		params := url.Values{}
		params.Set("sysparm_exclude_reference_link", "true")
		params.Set("sysparm_limit", strconv.Itoa(limit))
		params.Set("sysparm_offset", strconv.Itoa(offset))
		if opts.Query != "" {
			params.Set("sysparm_query", opts.Query)
		}
		if len(opts.Fields) > 0 {
			params.Set("sysparm_fields", strings.Join(opts.Fields, ","))
		}

		resp, err := c.transport.Request(ctx, http.MethodGet, tablePath(table, ""), params, nil)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, c.unexpectedStatus(resp, "list", table)
		}

		page, err := c.results(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s records: %w", table, err)
		}
		records = append(records, page...)

		if len(page) < limit || (opts.Limit > 0 && len(records) >= opts.Limit) {
			break
		}
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"table": table,
		"query": opts.Query,
		"count": len(records),
	}).Debugf("listed %d %s records", len(records), table)

	return records, nil
}

// Get returns the single record matching the encoded query. No match yields nil, or a
// 404 error when mustExist is set. More than one match is an AmbiguousLookup error.
func (c *Client) Get(ctx context.Context, table, encodedQuery string, mustExist bool) (models.Record, error) {
	records, err := c.List(ctx, table, ListOptions{Query: encodedQuery})
	if err != nil {
		return nil, err
	}

	switch len(records) {
	case 0:
		if mustExist {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "no %s record matches query %q", table, encodedQuery)
		}
		return nil, nil
	case 1:
		return records[0], nil
	default:
		return nil, ferrors.NewAmbiguousLookup(table, encodedQuery, len(records))
	}
}

// GetByID returns the record with the given sys_id
func (c *Client) GetByID(ctx context.Context, table, sysID string, mustExist bool) (models.Record, error) {
	encoded, err := query.Compile([]query.Group{{query.Equals(models.SysIDField, sysID)}})
	if err != nil {
		return nil, err
	}
	return c.Get(ctx, table, encoded, mustExist)
}

// Create inserts a record. In check mode the backend is not called and the payload is
// returned as the would-be record.
func (c *Client) Create(ctx context.Context, table string, payload models.Record, checkMode bool) (record models.Record, err error) {
	if checkMode {
		return payload.Clone(), nil
	}

	ctx, span := tracing.StartSpan(ctx, "table.Create", attribute.String("table", table))
	defer func() { tracing.EndSpan(span, err) }()

	resp, err := c.transport.Request(ctx, http.MethodPost, tablePath(table, ""), nil, payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, c.unexpectedStatus(resp, "create", table)
	}

	record, err = c.result(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to decode created %s record: %w", table, err)
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"table":  table,
		"sys_id": record.SysID(),
	}).Info("created record")

	return record, nil
}

// Update patches the record with sysID. The backend merges payload into the record.
// In check mode the backend is not called and the payload is returned.
func (c *Client) Update(ctx context.Context, table, sysID string, payload models.Record, checkMode bool) (record models.Record, err error) {
	if checkMode {
		record = payload.Clone()
		record[models.SysIDField] = models.String(sysID)
		return record, nil
	}

	ctx, span := tracing.StartSpan(ctx, "table.Update",
		attribute.String("table", table),
		attribute.String("sys_id", sysID),
	)
	defer func() { tracing.EndSpan(span, err) }()

	resp, err := c.transport.Request(ctx, http.MethodPatch, tablePath(table, sysID), nil, payload.Without(models.SysIDField))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.unexpectedStatus(resp, "update", table)
	}

	record, err = c.result(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to decode updated %s record: %w", table, err)
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"table":  table,
		"sys_id": sysID,
	}).Info("updated record")

	return record, nil
}

// Delete removes the record with sysID. In check mode the backend is not called.
func (c *Client) Delete(ctx context.Context, table, sysID string, checkMode bool) (err error) {
	if checkMode {
		return nil
	}

	ctx, span := tracing.StartSpan(ctx, "table.Delete",
		attribute.String("table", table),
		attribute.String("sys_id", sysID),
	)
	defer func() { tracing.EndSpan(span, err) }()

	resp, err := c.transport.Request(ctx, http.MethodDelete, tablePath(table, sysID), nil, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return c.unexpectedStatus(resp, "delete", table)
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"table":  table,
		"sys_id": sysID,
	}).Info("deleted record")

	return nil
}
