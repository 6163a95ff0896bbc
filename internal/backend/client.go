package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NaveenV-27/MangaKart-ui/internal/platform/requestctx"
)

const (
	defaultTimeout         = 10 * time.Second
	defaultBreakerFailures = 5
	defaultBreakerOpenFor  = 30 * time.Second
	maxBodyBytes           = 4 << 20
	tracerName             = "github.com/NaveenV-27/MangaKart-ui/internal/backend"
)

var errInvalidJSON = errors.New("invalid JSON body")

// HTTPClient matches the subset of http.Client used by Client.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// ClientDeps wires the backend client.
type ClientDeps struct {
	BaseURL         string
	HTTPClient      HTTPClient
	Timeout         time.Duration
	BreakerFailures int
	BreakerOpenFor  time.Duration
	UserCookie      string
	AdminCookie     string
	Logger          *zap.Logger
	Tracer          trace.Tracer
	Meter           metric.Meter
}

// Client talks JSON over HTTP to the MangaKart REST backend. It forwards the
// caller's auth cookies, decodes the response envelope and classifies failures.
type Client struct {
	base        *url.URL
	http        HTTPClient
	breaker     *gobreaker.CircuitBreaker[*response]
	userCookie  string
	adminCookie string
	logger      *zap.Logger
	tracer      trace.Tracer
	latency     metric.Float64Histogram
}

type response struct {
	status  int
	body    []byte
	cookies []*http.Cookie
}

// RequestOption mutates an outbound request before it is sent.
type RequestOption func(*http.Request)

// WithIdempotencyKey stamps a fresh Idempotency-Key header on the request.
func WithIdempotencyKey() RequestOption {
	return func(r *http.Request) {
		r.Header.Set("Idempotency-Key", uuid.NewString())
	}
}

// NewClient constructs a Client. An empty base URL yields ErrNotConfigured.
func NewClient(deps ClientDeps) (*Client, error) {
	if strings.TrimSpace(deps.BaseURL) == "" {
		return nil, ErrNotConfigured
	}
	parsed, err := url.Parse(strings.TrimSpace(deps.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("backend: parse base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("backend: base URL %q must be absolute", deps.BaseURL)
	}

	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	failures := deps.BreakerFailures
	if failures <= 0 {
		failures = defaultBreakerFailures
	}
	openFor := deps.BreakerOpenFor
	if openFor <= 0 {
		openFor = defaultBreakerOpenFor
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(tracerName)
	}
	latency, err := meter.Float64Histogram(
		"backend.call.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds of backend calls by endpoint and outcome"),
	)
	if err != nil {
		logger.Warn("backend: unable to register latency metric", zap.Error(err))
		latency = nil
	}

	userCookie := deps.UserCookie
	if userCookie == "" {
		userCookie = "USER"
	}
	adminCookie := deps.AdminCookie
	if adminCookie == "" {
		adminCookie = "ADMIN"
	}

	breaker := gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:    "mangakart-backend",
		Timeout: openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		IsSuccessful: func(err error) bool {
			// Only transport failures and 5xx answers count against the backend.
			return err == nil || errors.Is(err, errClientStatus)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("backend circuit state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		base:        parsed,
		http:        httpClient,
		breaker:     breaker,
		userCookie:  userCookie,
		adminCookie: adminCookie,
		logger:      logger,
		tracer:      tracer,
		latency:     latency,
	}, nil
}

var errClientStatus = errors.New("client status")

// Call POSTs body as JSON to endpoint and requires an envelope with apiSuccess == 1.
func (c *Client) Call(ctx context.Context, endpoint string, body any, opts ...RequestOption) (*Envelope, error) {
	env, err := c.send(ctx, http.MethodPost, endpoint, body, opts...)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return env, &Error{Kind: KindRejected, Path: endpoint, Status: http.StatusOK, Message: env.Message}
	}
	return env, nil
}

// Query sends a request to an endpoint that may answer without an envelope.
// Only an explicit apiSuccess flag other than 1 is treated as a rejection.
func (c *Client) Query(ctx context.Context, method, endpoint string, body any, opts ...RequestOption) (*Envelope, error) {
	env, err := c.send(ctx, method, endpoint, body, opts...)
	if err != nil {
		return nil, err
	}
	if env.Flagged && !env.Success {
		return env, &Error{Kind: KindRejected, Path: endpoint, Status: http.StatusOK, Message: env.Message}
	}
	return env, nil
}

// Upload POSTs a pre-encoded body such as multipart form data and requires a successful envelope.
func (c *Client) Upload(ctx context.Context, endpoint, contentType string, body []byte, opts ...RequestOption) (*Envelope, error) {
	opts = append([]RequestOption{func(r *http.Request) { r.Header.Set("Content-Type", contentType) }}, opts...)
	env, err := c.do(ctx, http.MethodPost, endpoint, body, opts...)
	if err != nil {
		return nil, err
	}
	if env.Flagged && !env.Success {
		return env, &Error{Kind: KindRejected, Path: endpoint, Status: http.StatusOK, Message: env.Message}
	}
	return env, nil
}

func (c *Client) send(ctx context.Context, method, endpoint string, body any, opts ...RequestOption) (*Envelope, error) {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("backend: encode %s request: %w", endpoint, err)
		}
		payload = encoded
		opts = append([]RequestOption{func(r *http.Request) { r.Header.Set("Content-Type", "application/json") }}, opts...)
	}
	return c.do(ctx, method, endpoint, payload, opts...)
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte, opts ...RequestOption) (*Envelope, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}
	ctx, span := c.tracer.Start(ctx, "backend "+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("mangakart.endpoint", endpoint),
		),
	)
	defer span.End()

	started := time.Now()
	resp, err := c.breaker.Execute(func() (*response, error) {
		return c.roundTrip(ctx, method, endpoint, payload, opts...)
	})
	logger := requestctx.Logger(ctx)
	if logger == requestctx.NoopLogger() {
		logger = c.logger
	}

	if err != nil && resp == nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		c.observe(ctx, endpoint, "transport", started)
		logger.Warn("backend call failed",
			zap.String("endpoint", endpoint),
			zap.Duration("latency", time.Since(started)),
			zap.Error(err),
		)
		return nil, &Error{Kind: KindTransport, Path: endpoint, Err: err}
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.status))
	if resp.status < 200 || resp.status >= 300 {
		span.SetStatus(codes.Error, http.StatusText(resp.status))
		c.observe(ctx, endpoint, "status", started)
		logger.Warn("backend returned error status",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.status),
			zap.Duration("latency", time.Since(started)),
		)
		return nil, &Error{Kind: KindStatus, Path: endpoint, Status: resp.status, Message: messageFrom(resp.body)}
	}

	env, decodeErr := parseEnvelope(resp.body)
	if decodeErr != nil {
		span.RecordError(decodeErr)
		span.SetStatus(codes.Error, "decode")
		c.observe(ctx, endpoint, "decode", started)
		return nil, &Error{Kind: KindDecode, Path: endpoint, Status: resp.status, Err: decodeErr}
	}
	env.Cookies = resp.cookies
	c.observe(ctx, endpoint, "ok", started)

	logger.Debug("backend call completed",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.status),
		zap.Duration("latency", time.Since(started)),
	)
	return env, nil
}

func (c *Client) observe(ctx context.Context, endpoint, outcome string, started time.Time) {
	if c.latency == nil {
		return
	}
	c.latency.Record(ctx, float64(time.Since(started))/float64(time.Millisecond), metric.WithAttributes(
		attribute.String("mangakart.endpoint", endpoint),
		attribute.String("outcome", outcome),
	))
}

// roundTrip performs the HTTP exchange. Non-5xx error statuses are returned
// together with errClientStatus so the breaker does not count them.
func (c *Client) roundTrip(ctx context.Context, method, endpoint string, payload []byte, opts ...RequestOption) (*response, error) {
	req, err := c.newRequest(ctx, method, endpoint, payload)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(req)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	out := &response{status: res.StatusCode, body: body, cookies: res.Cookies()}
	switch {
	case res.StatusCode >= 500:
		return out, fmt.Errorf("server status %d", res.StatusCode)
	case res.StatusCode >= 400:
		return out, errClientStatus
	}
	return out, nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, payload []byte) (*http.Request, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(endpoint), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	requestID := middleware.GetReqID(ctx)
	if requestID == "" {
		requestID = ulid.Make().String()
	}
	req.Header.Set("X-Request-ID", requestID)

	session := requestctx.SessionFrom(ctx)
	if session.UserToken != "" {
		req.AddCookie(&http.Cookie{Name: c.userCookie, Value: session.UserToken})
	}
	if session.AdminToken != "" {
		req.AddCookie(&http.Cookie{Name: c.adminCookie, Value: session.AdminToken})
	}
	return req, nil
}

func (c *Client) resolve(endpoint string) string {
	u := *c.base
	u.Path = path.Join("/", c.base.Path, endpoint)
	return u.String()
}
