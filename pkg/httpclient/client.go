// Package httpclient is the transport to the backend REST API.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"

	ferrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	DefaultTimeout = 30 * time.Second

	// body limits in bytes
	MaxResponseSize = 10 << 20
	MaxRequestSize  = 5 << 20
)

// Config holds the backend connection settings
type Config struct {
	BaseURL         string `validate:"required,url"`
	Username        string
	Password        string
	Token           string
	Timeout         time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
}

// Client sends authenticated JSON requests to the backend
type Client struct {
	client  *http.Client
	baseURL *url.URL
	cfg     Config
	logger  ectologger.Logger
}

// Response is a fully read backend response. BodyJSON holds the decoded JSON document, or
// the raw text when the backend answered with something else (HTML error pages).
type Response struct {
	StatusCode  int
	Headers     http.Header
	Body        []byte
	BodyJSON    any
	ContentType string
	Duration    time.Duration
}

// NewClient creates a client for the instance at cfg.BaseURL
func NewClient(cfg Config, logger ectologger.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", cfg.BaseURL)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		MaxIdleConns:    cfg.MaxIdleConns,
		IdleConnTimeout: cfg.IdleConnTimeout,
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		baseURL: base,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Request sends a request to path (relative to the base URL) with optional query
// parameters and a JSON body. Connection failures and rejected credentials are returned
// as transport errors; any other status is returned as a response for the caller to judge.
func (c *Client) Request(ctx context.Context, method, path string, query url.Values, body any) (resp *Response, err error) {
	ctx, span := tracing.StartSpan(ctx, "httpclient.Request",
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	)
	defer func() { tracing.EndSpan(span, err) }()

	req, err := c.buildRequest(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}

	resp, err = c.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ferrors.NewTransportErrorf("authentication failed: %s %s -> %d", method, path, resp.StatusCode)
	}

	if err := decodeBody(resp); err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	return resp, nil
}

func (c *Client) buildRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	reqURL := *c.baseURL
	reqURL.Path = c.baseURL.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		reqURL.RawQuery = query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to build body: %w", err)
		}
		if len(bodyBytes) > MaxRequestSize {
			return nil, fmt.Errorf("request body too large: %d bytes (max %d)", len(bodyBytes), MaxRequestSize)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	switch {
	case c.cfg.Token != "":
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	case c.cfg.Username != "":
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	return req, nil
}

// Do sends req and reads the whole body, bounded by MaxResponseSize
func (c *Client) Do(ctx context.Context, req *http.Request) (*Response, error) {
	start := time.Now()

	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		metrics.RecordHTTPRequest(req.Method, "error", time.Since(start).Seconds())
		c.logger.WithContext(ctx).WithError(err).Errorf("HTTP request failed: %s %s", req.Method, req.URL.Path)
		return nil, ferrors.NewTransportError(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	duration := time.Since(start)
	metrics.RecordHTTPRequest(req.Method, strconv.Itoa(resp.StatusCode), duration.Seconds())

	if resp.ContentLength > MaxResponseSize {
		return nil, fmt.Errorf("response too large: %d bytes (max %d)", resp.ContentLength, MaxResponseSize)
	}

	limitedReader := io.LimitReader(resp.Body, MaxResponseSize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, ferrors.NewTransportError(fmt.Errorf("failed to read response body: %w", err))
	}

	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response body too large: %d bytes (max %d)", len(body), MaxResponseSize)
	}

	c.logger.WithContext(ctx).Debugf("HTTP %s %s -> %d (%s)", req.Method, req.URL.Path, resp.StatusCode, duration)

	return &Response{
		StatusCode:  resp.StatusCode,
		Headers:     resp.Header.Clone(),
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Duration:    duration,
	}, nil
}
