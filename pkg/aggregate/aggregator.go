package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/epoxy/pkg/client"
	"github.com/Sternrassler/epoxy/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout applies to every endpoint call of a request that does not
// set its own timeout.
const DefaultTimeout = 1000 * time.Millisecond

// Shapes of the assembled output.
const (
	ShapeCombined = "combined"
	ShapeAppended = "appended"
)

var (
	aggregationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epoxy_aggregations_total",
		Help: "Total aggregation requests by output shape and result",
	}, []string{"shape", "result"})

	aggregationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "epoxy_aggregation_duration_seconds",
		Help:    "Aggregation duration in seconds by output shape",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"shape"})

	aggregationEndpoints = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "epoxy_aggregation_endpoints",
		Help:    "Number of endpoints per aggregation request",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
	})
)

var tracer = otel.Tracer("github.com/Sternrassler/epoxy/pkg/aggregate")

// Fetcher is the interface the endpoint client must implement for
// single-endpoint fetching.
type Fetcher interface {
	// Fetch fetches one endpoint. Under client.PolicyReplace it never
	// returns an error; under client.PolicyFailFast a failure is returned
	// as an error wrapping client.ErrAggregationFailed.
	Fetch(ctx context.Context, endpoint string, policy client.Policy, call client.CallConfig) (client.Outcome, error)
}

// Config holds aggregator configuration.
type Config struct {
	// DefaultTimeout is used for requests without a timeout.
	DefaultTimeout time.Duration

	// MaxConcurrency bounds parallel fetches per request (0 = one
	// goroutine per endpoint).
	MaxConcurrency int

	// UserAgent is sent with upstream requests.
	UserAgent string

	// MaxBodyBytes caps accepted upstream bodies (0 = unlimited).
	MaxBodyBytes int64
}

// DefaultConfig returns the default aggregator configuration.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: DefaultTimeout,
		MaxBodyBytes:   10 << 20,
	}
}

// Request is one aggregation request.
type Request struct {
	// Endpoints in caller order. Duplicates are fetched independently.
	Endpoints []string

	// Policy applies uniformly to all endpoints.
	Policy client.Policy

	// Timeout per endpoint call (0 = Config.DefaultTimeout).
	Timeout time.Duration
}

// Slot pairs an endpoint with its outcome.
type Slot struct {
	Endpoint string
	Outcome  client.Outcome
}

// Result holds one slot per requested endpoint, in request order.
type Result []Slot

// Aggregator runs aggregation requests. It holds no per-request state and
// is safe for concurrent use.
type Aggregator struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger
}

// New creates a new Aggregator.
func New(fetcher Fetcher, config Config) *Aggregator {
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = DefaultTimeout
	}
	if config.MaxConcurrency < 0 {
		config.MaxConcurrency = 0
	}

	return &Aggregator{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger("aggregator"),
	}
}

// Combined fetches every endpoint and returns the combined shape.
func (a *Aggregator) Combined(ctx context.Context, req Request) (map[string]any, error) {
	result, err := a.run(ctx, ShapeCombined, req)
	if err != nil {
		return nil, err
	}
	return Combine(result), nil
}

// Appended fetches every endpoint and returns the appended shape.
func (a *Aggregator) Appended(ctx context.Context, req Request) ([]map[string]any, error) {
	result, err := a.run(ctx, ShapeAppended, req)
	if err != nil {
		return nil, err
	}
	return Append(result), nil
}

func (a *Aggregator) run(ctx context.Context, shape string, req Request) (Result, error) {
	start := time.Now()
	defer func() {
		aggregationDuration.WithLabelValues(shape).Observe(time.Since(start).Seconds())
	}()

	result, err := a.FetchAll(ctx, req)
	if err != nil {
		aggregationsTotal.WithLabelValues(shape, "failed").Inc()
		return nil, err
	}

	aggregationsTotal.WithLabelValues(shape, "ok").Inc()
	return result, nil
}

// FetchAll fetches all endpoints concurrently and returns their outcomes in
// request order. The call returns only after every started fetch finished.
func (a *Aggregator) FetchAll(ctx context.Context, req Request) (Result, error) {
	if !req.Policy.Valid() {
		return nil, fmt.Errorf("%w: %q", client.ErrInvalidPolicy, req.Policy)
	}

	// Configure once, then fan out. Fetches only ever see this copy.
	call := client.CallConfig{
		Timeout:      req.Timeout,
		UserAgent:    a.config.UserAgent,
		MaxBodyBytes: a.config.MaxBodyBytes,
	}
	if call.Timeout <= 0 {
		call.Timeout = a.config.DefaultTimeout
	}

	ctx, span := tracer.Start(ctx, "aggregate.FetchAll",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Int("epoxy.endpoints", len(req.Endpoints)),
			attribute.String("epoxy.policy", req.Policy.String()),
			attribute.Int64("epoxy.timeout_ms", call.Timeout.Milliseconds()),
		),
	)
	defer span.End()

	start := time.Now()
	aggregationEndpoints.Observe(float64(len(req.Endpoints)))

	a.logger.Debug().
		Int("endpoints", len(req.Endpoints)).
		Str("policy", req.Policy.String()).
		Dur("timeout", call.Timeout).
		Msg("Starting aggregation")

	// Each goroutine owns exactly one index.
	outcomes := make([]client.Outcome, len(req.Endpoints))

	g, gctx := errgroup.WithContext(ctx)
	if a.config.MaxConcurrency > 0 {
		g.SetLimit(a.config.MaxConcurrency)
	}

	for i, endpoint := range req.Endpoints {
		g.Go(func() error {
			outcome, err := a.fetcher.Fetch(gctx, endpoint, req.Policy, call)
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregation failed")
		a.logger.Warn().
			Err(err).
			Int("endpoints", len(req.Endpoints)).
			Dur("duration", time.Since(start)).
			Msg("Aggregation failed")
		return nil, err
	}

	result := make(Result, len(req.Endpoints))
	absent := 0
	for i, endpoint := range req.Endpoints {
		result[i] = Slot{Endpoint: endpoint, Outcome: outcomes[i]}
		if outcomes[i].IsAbsent() {
			absent++
		}
	}
	span.SetAttributes(attribute.Int("epoxy.absent", absent))

	a.logger.Info().
		Int("endpoints", len(req.Endpoints)).
		Int("absent", absent).
		Dur("duration", time.Since(start)).
		Msg("Aggregation complete")

	return result, nil
}
