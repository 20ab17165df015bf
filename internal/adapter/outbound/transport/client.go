package transport

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rulectl/rulectl/internal/observability"
	outbound "github.com/rulectl/rulectl/internal/port/outbound"
)

const (
	// maxResponseBodySize bounds how much of a response this client will
	// read into memory, guarding against a misbehaving remote sending an
	// unbounded body.
	maxResponseBodySize = 10 * 1024 * 1024 // 10MB

	rateLimitResetHeader = "x-rate-limit-reset"
	rateLimitFudge       = 50 * time.Millisecond

	// bareArrayKey smuggles a top-level JSON array decoded by do() into
	// the outbound.JSON shape every other response uses.
	bareArrayKey = "\x00array"
)

// RetryPolicy controls how Client retries failed requests.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts per request,
	// including the first. 0 means retry forever.
	MaxAttempts int
	// Backoff is the constant delay between retries of network/parse
	// failures (not rate-limit responses, which use the server-directed
	// delay instead).
	Backoff time.Duration
}

// DefaultRetryPolicy is 5 attempts with a constant 500ms backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, Backoff: 500 * time.Millisecond}
}

// Client is the HTTP implementation of outbound.Transport.
type Client struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
	retry      RetryPolicy
	logger     *slog.Logger
	metrics    *observability.Metrics
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithLogger overrides the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics attaches a Prometheus metrics recorder.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracer attaches an OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// NewClient creates a Client for the given base URL (e.g.
// "https://api.example.com") using creds to sign every request.
func NewClient(baseURL string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		creds:   creds,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry:  DefaultRetryPolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ outbound.Transport = (*Client)(nil)

func (c *Client) url(path string) string {
	return c.baseURL + path
}

// do sends method/path with body (nil for no body), retrying per the
// configured RetryPolicy, and returns the decoded JSON response body on
// success. A 2xx with an empty body returns a nil JSON value.
func (c *Client) do(ctx context.Context, method, path string, body outbound.JSON) (outbound.JSON, error) {
	var payload []byte
	var err error
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	ctx, span := c.startSpan(ctx, method, path)
	defer span.End()

	attempt := 0
	var lastErr error
	for c.retry.MaxAttempts == 0 || attempt < c.retry.MaxAttempts {
		attempt++

		start := time.Now()
		status, respBody, rlErr, reqErr := c.sendOnce(ctx, method, path, payload)
		c.recordRequest(method, status, time.Since(start))

		if rlErr != nil {
			c.recordRateLimitSleep()
			sleep := time.Duration(rlErr.resetAfterMS)*time.Millisecond + rateLimitFudge
			c.logger.Warn("rate limited, sleeping before retry",
				"method", method, "path", path, "sleep", sleep)
			if err := c.sleep(ctx, sleep); err != nil {
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			continue
		}

		if reqErr != nil {
			lastErr = reqErr
			c.logger.Debug("transport request failed, retrying",
				"method", method, "path", path, "attempt", attempt, "error", reqErr)
			if err := c.sleep(ctx, c.retry.Backoff); err != nil {
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			continue
		}

		if status < 200 || status >= 300 {
			apiErr := &APIError{Method: method, Path: path, StatusCode: status, Body: string(respBody)}
			span.SetStatus(codes.Error, apiErr.Error())
			return nil, apiErr
		}

		if len(respBody) == 0 {
			return nil, nil
		}
		// List endpoints return a bare JSON array; every other endpoint
		// returns an object. Bare arrays are smuggled through under a
		// reserved key so callers can use one decoded-JSON shape.
		trimmed := bytes.TrimLeft(respBody, " \t\r\n")
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var list []interface{}
			if err := json.Unmarshal(respBody, &list); err != nil {
				return nil, fmt.Errorf("transport: decode response: %w", err)
			}
			return outbound.JSON{bareArrayKey: list}, nil
		}
		var out outbound.JSON
		if err := json.Unmarshal(respBody, &out); err != nil {
			return nil, fmt.Errorf("transport: decode response: %w", err)
		}
		return out, nil
	}

	span.SetStatus(codes.Error, "retries exhausted")
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrServerUnreachable, lastErr)
	}
	return nil, ErrServerUnreachable
}

// sendOnce performs exactly one HTTP round trip. It returns either a
// rate-limit condition (rlErr), a network/transport error (reqErr), or a
// status code plus body.
func (c *Client) sendOnce(ctx context.Context, method, path string, payload []byte) (status int, body []byte, rlErr *rateLimitError, reqErr error) {
	url := c.url(path)
	var bodyReader io.Reader
	contentType := ""
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	nonce, err := randomNonce()
	if err != nil {
		return 0, nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	authz := signRequest(c.creds, method, url, payload, contentType, time.Now().Unix(), nonce)
	req.Header.Set("Authorization", authz)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		if reset := resp.Header.Get(rateLimitResetHeader); reset != "" {
			var ms int64
			if _, err := fmt.Sscanf(reset, "%d", &ms); err == nil {
				return resp.StatusCode, nil, &rateLimitError{resetAfterMS: ms}, nil
			}
		}
		// No usable reset header: fall through and surface as a
		// retryable network-class failure with the default backoff.
		return 0, nil, nil, fmt.Errorf("rate limited without usable %s header", rateLimitResetHeader)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil, nil
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func randomNonce() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (c *Client) startSpan(ctx context.Context, method, path string) (context.Context, trace.Span) {
	if c.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return c.tracer.Start(ctx, "transport."+method,
		trace.WithAttributes(attribute.String("http.method", method), attribute.String("http.path", path)))
}

func (c *Client) recordRequest(method string, status int, dur time.Duration) {
	if c.metrics == nil {
		return
	}
	outcome := "error"
	if status >= 200 && status < 300 {
		outcome = "ok"
	}
	c.metrics.RequestsTotal.WithLabelValues(method, outcome).Inc()
	c.metrics.RequestDuration.WithLabelValues(method).Observe(dur.Seconds())
}

func (c *Client) recordRateLimitSleep() {
	if c.metrics != nil {
		c.metrics.RateLimitSleepsTotal.Inc()
	}
}
