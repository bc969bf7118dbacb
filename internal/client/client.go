// Package client talks to the REST backend. Each call maps a resource name
// and an operation onto one HTTP request and decodes the JSON answer into
// typed records.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"sales-console/internal/config"
	"sales-console/internal/errors"
	"sales-console/internal/observability"
)

const (
	Categories = "categories"
	Products   = "products"
	Orders     = "orders"
	Dashboard  = "dashboard"
)

// drainLimit bounds how much of a failed response body is read before the
// connection is released. Failure bodies are never interpreted.
const drainLimit = 4 << 10

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Checker is implemented by records that can verify their own shape after
// decoding.
type Checker interface {
	Check() error
}

type Client struct {
	api     config.APIConfig
	http    HTTPClient
	logger  *slog.Logger
	metrics *observability.Metrics
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(metrics *observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// New builds a client for the backend described by api. A nil httpClient
// selects an instrumented default bounded by api.Timeout.
func New(api config.APIConfig, httpClient HTTPClient, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   api.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	c := &Client{
		api:    api,
		http:   httpClient,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List issues GET {base}/{resource}/ and decodes a JSON array of T.
func List[T any](ctx context.Context, c *Client, resource string) ([]T, error) {
	var items []T
	err := c.do(ctx, http.MethodGet, resource, nil, &items, func() error {
		if items == nil {
			return fmt.Errorf("expected a JSON array")
		}
		for i := range items {
			if err := check(items[i]); err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Get issues GET {base}/{resource}/ for singleton resources.
func Get[T any](ctx context.Context, c *Client, resource string) (T, error) {
	var item T
	err := c.do(ctx, http.MethodGet, resource, nil, &item, func() error {
		return check(item)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return item, nil
}

// Create issues POST {base}/{resource}/ with payload as JSON and decodes the
// created record.
func Create[T any](ctx context.Context, c *Client, resource string, payload any) (T, error) {
	var item T
	err := c.do(ctx, http.MethodPost, resource, payload, &item, func() error {
		return check(item)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return item, nil
}

func check(v any) error {
	if c, ok := v.(Checker); ok {
		return c.Check()
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, resource string, payload, out any, validate func() error) error {
	start := time.Now()
	outcome := "ok"
	defer func() {
		c.metrics.ObserveBackend(resource, method, outcome, time.Since(start))
	}()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			outcome = "encode_error"
			return fmt.Errorf("encode %s payload: %w", resource, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.api.Endpoint(resource), body)
	if err != nil {
		outcome = "transport_error"
		return &errors.TransportError{Method: method, Resource: resource, Cause: err}
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestID := observability.GetRequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		outcome = "transport_error"
		return &errors.TransportError{Method: method, Resource: resource, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
		outcome = "response_error"
		return &errors.ResponseError{Method: method, Resource: resource, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		outcome = "decode_error"
		return &errors.ResponseError{
			Method:     method,
			Resource:   resource,
			StatusCode: resp.StatusCode,
			Cause:      fmt.Errorf("decode body: %w", err),
		}
	}

	if err := validate(); err != nil {
		outcome = "shape_error"
		c.logger.WarnContext(ctx, "backend record rejected",
			"resource", resource,
			"method", method,
			"error", err,
		)
		return &errors.ResponseError{
			Method:     method,
			Resource:   resource,
			StatusCode: resp.StatusCode,
			Cause:      err,
		}
	}

	return nil
}
