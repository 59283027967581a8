package monitoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

// Attribute keys for console-specific metrics
const (
	attrOutcome           = "itops.outcome"
	attrFacet             = "itops.consolidation.facet"
	attrExternalTarget    = "itops.external.target"
	attrExternalOperation = "itops.external.operation"
	attrHTTPMethod        = "http.request.method"
	attrHTTPRoute         = "http.route"
	attrHTTPStatus        = "http.response.status_code"
)

// Config holds the configuration for OpenTelemetry metrics
type Config struct {
	// ExporterType can be "prometheus", "otlp", or "none"
	ExporterType   string
	ServiceName    string
	ServiceVersion string
	// OTLPEndpoint is the full OTLP endpoint URL, required for the otlp exporter
	OTLPEndpoint string
	// OTLPTLSInsecure allows plain HTTP to the OTLP endpoint
	OTLPTLSInsecure bool
}

// DefaultConfig returns a configuration read from the environment
func DefaultConfig(serviceName string) Config {
	return Config{
		ExporterType:    getEnvOrDefault("OTEL_METRICS_EXPORTER", "prometheus"),
		ServiceName:     serviceName,
		ServiceVersion:  getEnvOrDefault("SERVICE_VERSION", "dev"),
		OTLPEndpoint:    getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPTLSInsecure: getEnvBoolOrDefault("OTEL_EXPORTER_OTLP_INSECURE", false),
	}
}

type instruments struct {
	httpRequests          metric.Int64Counter
	httpDuration          metric.Float64Histogram
	consolidations        metric.Int64Counter
	consolidationDuration metric.Float64Histogram
	facetFailures         metric.Int64Counter
	externalCalls         metric.Int64Counter
	externalDuration      metric.Float64Histogram
}

var (
	initOnce       sync.Once
	initErr        error
	inst           *instruments
	metricsHandler http.Handler
)

// errDisabled marks metrics that were switched off through the environment
var errDisabled = errors.New("observability disabled via environment variable")

// ensureInitialized sets up metrics with DefaultConfig on first use.
// Observability can be disabled via ENABLE_OBSERVABILITY=false.
func ensureInitialized() {
	initOnce.Do(func() {
		if !getEnvBoolOrDefault("ENABLE_OBSERVABILITY", true) {
			slog.Info("Observability disabled via environment variable, skipping metrics initialization")
			initErr = errDisabled
			return
		}
		initErr = initialize(context.Background(), DefaultConfig(getEnvOrDefault("SERVICE_NAME", "itops-console")))
		if initErr != nil {
			slog.Error("Failed to initialize metrics, metrics will be disabled", "error", initErr)
		}
	})
}

// IsInitialized returns true if metrics have been successfully initialized
func IsInitialized() bool {
	ensureInitialized()
	return initErr == nil
}

func initialize(ctx context.Context, config Config) error {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var reader sdkmetric.Reader
	switch config.ExporterType {
	case "prometheus", "":
		reg := prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
		if err != nil {
			return fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		reader = exporter
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	case "otlp":
		if config.OTLPEndpoint == "" {
			return fmt.Errorf("OTLP endpoint is required when using OTLP exporter")
		}
		endpointURL, err := url.Parse(config.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("invalid OTLP endpoint URL: %w", err)
		}
		if endpointURL.Scheme != "https" && !config.OTLPTLSInsecure {
			return fmt.Errorf("OTLP endpoint must use HTTPS (got: %s)", endpointURL.Scheme)
		}

		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpointURL.Host)}
		if endpointURL.Path != "" && endpointURL.Path != "/" {
			opts = append(opts, otlpmetrichttp.WithURLPath(endpointURL.Path))
		}
		if config.OTLPTLSInsecure && endpointURL.Scheme == "http" {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))
		metricsHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("metrics are exported via OTLP\n"))
		})

	case "none":
		return errDisabled

	default:
		return fmt.Errorf("unsupported metrics exporter: %s", config.ExporterType)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	meter := provider.Meter("github.com/itops-console/console-backend")

	created, err := newInstruments(meter)
	if err != nil {
		return err
	}
	inst = created

	slog.Info("Initialized OpenTelemetry metrics", "exporter", config.ExporterType, "service", config.ServiceName)
	return nil
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	var i instruments
	var err error

	if i.httpRequests, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("HTTP requests served")); err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total: %w", err)
	}
	if i.httpDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request latency"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds: %w", err)
	}
	if i.consolidations, err = meter.Int64Counter("user_consolidations_total",
		metric.WithDescription("User consolidation calls by outcome")); err != nil {
		return nil, fmt.Errorf("failed to create user_consolidations_total: %w", err)
	}
	if i.consolidationDuration, err = meter.Float64Histogram("user_consolidation_duration_seconds",
		metric.WithDescription("Time spent consolidating one user"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create user_consolidation_duration_seconds: %w", err)
	}
	if i.facetFailures, err = meter.Int64Counter("user_consolidation_facet_failures_total",
		metric.WithDescription("Enrichment lookups that failed and degraded to empty")); err != nil {
		return nil, fmt.Errorf("failed to create user_consolidation_facet_failures_total: %w", err)
	}
	if i.externalCalls, err = meter.Int64Counter("external_calls_total",
		metric.WithDescription("Calls to external services by outcome")); err != nil {
		return nil, fmt.Errorf("failed to create external_calls_total: %w", err)
	}
	if i.externalDuration, err = meter.Float64Histogram("external_call_duration_seconds",
		metric.WithDescription("External call latency"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create external_call_duration_seconds: %w", err)
	}
	return &i, nil
}

// Handler returns the HTTP handler serving the metrics endpoint
func Handler() http.Handler {
	ensureInitialized()
	if metricsHandler == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "metrics disabled", http.StatusServiceUnavailable)
		})
	}
	return metricsHandler
}

// RecordConsolidation records one consolidation call. outcome is "found",
// "not_found" or "error".
func RecordConsolidation(ctx context.Context, outcome string, duration time.Duration) {
	ensureInitialized()
	if inst == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(attrOutcome, outcome))
	inst.consolidations.Add(ctx, 1, attrs)
	inst.consolidationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordFacetFailure records an enrichment lookup that failed
func RecordFacetFailure(ctx context.Context, facet string) {
	ensureInitialized()
	if inst == nil {
		return
	}
	inst.facetFailures.Add(ctx, 1, metric.WithAttributes(attribute.String(attrFacet, facet)))
}

// RecordExternalCall records a call to an external service such as Microsoft Graph
func RecordExternalCall(ctx context.Context, target, operation string, duration time.Duration, err error) {
	ensureInitialized()
	if inst == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String(attrExternalTarget, target),
		attribute.String(attrExternalOperation, operation),
		attribute.String(attrOutcome, outcome),
	)
	inst.externalCalls.Add(ctx, 1, attrs)
	inst.externalDuration.Record(ctx, duration.Seconds(), attrs)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware records request counts and latency per route
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	ensureInitialized()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		if inst == nil {
			return
		}
		attrs := metric.WithAttributes(
			attribute.String(attrHTTPMethod, r.Method),
			attribute.String(attrHTTPRoute, NormalizeRoute(r.URL.Path)),
			attribute.Int(attrHTTPStatus, rw.statusCode),
		)
		inst.httpRequests.Add(r.Context(), 1, attrs)
		inst.httpDuration.Record(r.Context(), time.Since(start).Seconds(), attrs)
	})
}

// NormalizeRoute collapses ticket ids in a path so metrics keep a bounded
// label set
func NormalizeRoute(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, part := range parts {
		if strings.HasPrefix(part, "tkt_") {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
