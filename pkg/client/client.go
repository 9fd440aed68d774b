// Package client fetches a single upstream endpoint and turns the response
// into a normalized tree, applying the aggregation's failure policy.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Sternrassler/epoxy/pkg/logging"
	"github.com/Sternrassler/epoxy/pkg/normalize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Prometheus metrics for upstream calls.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epoxy_upstream_requests_total",
		Help: "Total upstream requests by HTTP status (or transport failure)",
	}, []string{"status"})

	upstreamRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "epoxy_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	upstreamFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epoxy_upstream_failures_total",
		Help: "Total endpoint failures by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of endpoint failures.
type ErrorClass string

const (
	// ErrorClassInvalidEndpoint represents endpoints that are not valid URLs.
	ErrorClassInvalidEndpoint ErrorClass = "invalid_endpoint"

	// ErrorClassNetwork represents transport errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassTimeout represents calls that exceeded their timeout.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassClient represents 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx and other non-2xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassEmptyBody represents 2xx responses without a body.
	ErrorClassEmptyBody ErrorClass = "empty_body"

	// ErrorClassTooLarge represents bodies above the configured limit.
	ErrorClassTooLarge ErrorClass = "too_large"

	// ErrorClassDecode represents bodies that could not be normalized.
	ErrorClassDecode ErrorClass = "decode"
)

const acceptHeader = "application/json, application/xml;q=0.9, */*;q=0.8"

// Client performs endpoint fetches.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Transport used for upstream calls (default: a clone of
	// http.DefaultTransport). It is wrapped for tracing.
	Transport http.RoundTripper

	// DefaultUserAgent is sent when a CallConfig carries none.
	DefaultUserAgent string
}

// DefaultConfig returns a default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		DefaultUserAgent: userAgent,
	}
}

// New creates a new Client.
func New(cfg Config) (*Client, error) {
	if cfg.DefaultUserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	return &Client{
		// No client-wide timeout: every call carries its own deadline.
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(transport),
		},
		config: cfg,
		logger: logging.NewLogger("endpoint-client"),
	}, nil
}

// Fetch performs one bounded GET against endpoint and normalizes the body.
//
// Under PolicyReplace any failure yields Absent and a nil error. Under
// PolicyFailFast a failure is returned as an error wrapping both
// ErrAggregationFailed and the *EndpointError.
func (c *Client) Fetch(ctx context.Context, endpoint string, policy Policy, call CallConfig) (Outcome, error) {
	tree, err := c.get(ctx, endpoint, call)
	if err == nil {
		return Present(tree), nil
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		// Canceled by the caller or by a failed sibling, not an upstream failure.
		c.logger.Debug().
			Err(err).
			Str("endpoint", endpoint).
			Msg("Endpoint fetch canceled")
		if policy == PolicyFailFast {
			return Outcome{}, fmt.Errorf("%w: %w", ErrAggregationFailed, err)
		}
		return Absent(), nil
	}

	var endpointErr *EndpointError
	if errors.As(err, &endpointErr) {
		upstreamFailuresTotal.WithLabelValues(string(endpointErr.ErrorClass)).Inc()
	}

	if policy == PolicyFailFast {
		c.logger.Warn().
			Err(err).
			Str("endpoint", endpoint).
			Msg("Endpoint failed, aborting aggregation")
		return Outcome{}, fmt.Errorf("%w: %w", ErrAggregationFailed, err)
	}

	c.logger.Warn().
		Err(err).
		Str("endpoint", endpoint).
		Msg("Endpoint failed, replacing outcome")
	return Absent(), nil
}

// get performs the request and returns the normalized tree or an
// *EndpointError.
func (c *Client) get(ctx context.Context, endpoint string, call CallConfig) (normalize.Tree, error) {
	if call.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, call.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &EndpointError{
			Endpoint:   endpoint,
			ErrorClass: ErrorClassInvalidEndpoint,
			Message:    "invalid endpoint",
			Err:        err,
		}
	}

	userAgent := call.UserAgent
	if userAgent == "" {
		userAgent = c.config.DefaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	c.logger.Debug().
		Str("endpoint", endpoint).
		Dur("timeout", call.Timeout).
		Msg("Fetching endpoint")

	startTime := time.Now()
	defer func() {
		upstreamRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		upstreamRequestsTotal.WithLabelValues("transport_error").Inc()
		return nil, &EndpointError{
			Endpoint:   endpoint,
			ErrorClass: classifyTransportError(ctx, err),
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	upstreamRequestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if class := classifyStatus(resp.StatusCode); class != "" {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &EndpointError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    resp.Status,
		}
	}

	body, err := readBody(resp.Body, call.MaxBodyBytes)
	if err != nil {
		class := classifyTransportError(ctx, err)
		if errors.Is(err, errBodyTooLarge) {
			class = ErrorClassTooLarge
		}
		return nil, &EndpointError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    "read response body",
			Err:        err,
		}
	}

	if len(body) == 0 {
		return nil, &EndpointError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassEmptyBody,
			Message:    "empty response body",
		}
	}

	tree, err := normalize.Normalize(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &EndpointError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "unparseable response body",
			Err:        err,
		}
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("duration", time.Since(startTime)).
		Msg("Endpoint fetched")

	return tree, nil
}

var errBodyTooLarge = errors.New("response body exceeds limit")

func readBody(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", errBodyTooLarge, limit)
	}
	return body, nil
}

// classifyStatus returns the failure class of a status code, or "" for 2xx.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return ""
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	default:
		return ErrorClassServer
	}
}

// classifyTransportError separates deadline expiry from other transport
// failures.
func classifyTransportError(ctx context.Context, err error) ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrorClassTimeout
	}
	return ErrorClassNetwork
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
