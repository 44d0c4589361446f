// Package gateway performs HTTP calls to collaborator services with a bounded
// per-attempt timeout and linear backoff retries.
//
// Only requests marked Idempotent are retried, and only on transport errors or
// 5xx responses. A 404 is reported as CategoryNotFound, any other 4xx as
// CategoryRejected, and exhausted retries as CategoryUnavailable.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"smartlib/pkg/requestcontext"
)

const (
	DefaultTimeout     = 5 * time.Second
	DefaultMaxRetries  = 3
	DefaultBackoffBase = time.Second

	maxResponseBytes = 1 << 20
	requestIDHeader  = "X-Request-Id"
)

// Config bounds a single logical call.
type Config struct {
	// Timeout applies to each attempt separately.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BackoffBase is multiplied by the retry number: 1x, 2x, 3x.
	BackoffBase time.Duration
}

// DefaultConfig is 5s per attempt, 3 retries, 1s/2s/3s backoff.
func DefaultConfig() Config {
	return Config{
		Timeout:     DefaultTimeout,
		MaxRetries:  DefaultMaxRetries,
		BackoffBase: DefaultBackoffBase,
	}
}

// Request is one logical call. Body, when set, is encoded as JSON.
type Request struct {
	Operation  string
	Method     string
	Path       string
	Body       any
	Idempotent bool
}

// Response is a successful (2xx) reply.
type Response struct {
	StatusCode int
	Body       []byte
}

// DecodeJSON unmarshals the response body into v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Client calls one collaborator service rooted at baseURL.
type Client struct {
	service string
	baseURL string
	cfg     Config
	http    *http.Client
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer("smartlib/gateway") }
}

// New creates a client for service at baseURL. Zero config fields fall back to defaults,
// except MaxRetries which may legitimately be zero.
func New(service, baseURL string, cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	c := &Client{
		service: service,
		baseURL: baseURL,
		cfg:     cfg,
		http:    &http.Client{},
		logger:  slog.Default(),
		tracer:  otel.Tracer("smartlib/gateway"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Service returns the collaborator name used in errors and metrics.
func (c *Client) Service() string { return c.service }

// Do performs req, retrying when allowed. Any non-2xx outcome is returned as *Error.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, c.service+"."+req.Operation, trace.WithAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("gateway.service", c.service),
		attribute.Bool("gateway.idempotent", req.Idempotent),
	))
	defer span.End()

	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", req.Operation, err)
		}
	}

	maxAttempts := 1
	if req.Idempotent {
		maxAttempts += c.cfg.MaxRetries
	}

	start := time.Now()
	var lastErr *Error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			c.metrics.IncrementRetry(c.service, req.Operation)
			delay := time.Duration(attempt-1) * c.cfg.BackoffBase
			c.logger.WarnContext(ctx, "retrying collaborator call",
				"service", c.service,
				"operation", req.Operation,
				"attempt", attempt,
				"delay", delay,
				"error", lastErr,
				"request_id", requestcontext.RequestID(ctx),
			)
			if err := sleep(ctx, delay); err != nil {
				lastErr.Underlying = err
				break
			}
		}

		resp, gErr, retryable := c.attempt(ctx, req, payload)
		if gErr == nil {
			c.metrics.ObserveCall(c.service, req.Operation, "success", time.Since(start))
			span.SetAttributes(attribute.Int("gateway.attempts", attempt))
			return resp, nil
		}
		gErr.Attempts = attempt
		lastErr = gErr
		if !retryable {
			break
		}
	}

	c.metrics.ObserveCall(c.service, req.Operation, string(lastErr.Category), time.Since(start))
	span.SetAttributes(attribute.Int("gateway.attempts", lastErr.Attempts))
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, string(lastErr.Category))
	return nil, lastErr
}

// attempt performs a single HTTP exchange under the per-attempt timeout.
func (c *Client) attempt(ctx context.Context, req Request, payload []byte) (*Response, *Error, bool) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, c.newError(req, CategoryUnavailable, 0, nil, err), false
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if reqID := requestcontext.RequestID(ctx); reqID != "" {
		httpReq.Header.Set(requestIDHeader, reqID)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, c.newError(req, CategoryUnavailable, 0, nil, err), true
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, c.newError(req, CategoryUnavailable, httpResp.StatusCode, nil, err), true
	}

	switch status := httpResp.StatusCode; {
	case status >= 200 && status < 300:
		return &Response{StatusCode: status, Body: respBody}, nil, false
	case status == http.StatusNotFound:
		return nil, c.newError(req, CategoryNotFound, status, respBody, nil), false
	case status >= 500:
		return nil, c.newError(req, CategoryUnavailable, status, respBody, nil), true
	default:
		return nil, c.newError(req, CategoryRejected, status, respBody, nil), false
	}
}

func (c *Client) newError(req Request, cat Category, status int, body []byte, err error) *Error {
	return &Error{
		Category:   cat,
		Service:    c.service,
		Operation:  req.Operation,
		StatusCode: status,
		Body:       body,
		Underlying: err,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
