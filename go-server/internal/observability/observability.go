package observability

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.uber.org/zap"

	"github.com/gfranca/shortly/go-server/internal/logger"
	"github.com/gfranca/shortly/go-server/internal/tracing"
)

// Observability holds all observability components
type Observability struct {
	tracerShutdown    func(ctx context.Context) error
	meterShutdown     func(ctx context.Context) error
	loggerShutdown    func(ctx context.Context) error
	Logger            *zap.Logger
	PrometheusHandler http.Handler
	initialized       Status
}

// Status tracks which components are initialized
type Status struct {
	TracingEnabled bool
	MetricsEnabled bool
	LoggingEnabled bool
}

// Shutdown gracefully shuts down all observability components
func (o *Observability) Shutdown(ctx context.Context) error {
	var errs []error

	if o.tracerShutdown != nil {
		if err := o.tracerShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}

	if o.meterShutdown != nil {
		if err := o.meterShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
	}

	if o.loggerShutdown != nil {
		if err := o.loggerShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("logger shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("observability shutdown errors: %v", errs)
	}

	return nil
}

// GetStatus returns the current observability status
func (o *Observability) GetStatus() Status {
	return o.initialized
}

// Setup initializes logging, and — when OTEL_EXPORTER_OTLP_ENDPOINT is set —
// OTLP tracing and metrics with a local prometheus bridge.
func Setup(ctx context.Context) (*Observability, error) {
	obs := &Observability{}

	serviceName := getEnv("SERVICE_NAME", "shortly")
	environment := getEnv("ENV", "development")

	loggerShutdown, err := initLogging(serviceName, environment)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	obs.loggerShutdown = loggerShutdown
	obs.Logger = logger.Logger
	obs.initialized.LoggingEnabled = true
	zap.ReplaceGlobals(logger.Logger)

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		return obs, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.DeploymentEnvironment(environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tracerShutdown, err := initTracing(ctx, res)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	obs.tracerShutdown = tracerShutdown
	obs.initialized.TracingEnabled = true

	meterShutdown, promHandler, err := initMetrics(ctx, res)
	if err != nil {
		// Metrics are optional, log warning but continue
		obs.Logger.Warn("Failed to initialize OTLP metrics", zap.Error(err))
	} else {
		obs.meterShutdown = meterShutdown
		obs.PrometheusHandler = promHandler
		obs.initialized.MetricsEnabled = true
	}

	return obs, nil
}

// initTracing initializes OpenTelemetry tracing with the OTLP HTTP exporter.
func initTracing(ctx context.Context, res *resource.Resource) (func(context.Context) error, error) {
	endpoint := getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://otel-collector:4318")

	httpClient := &http.Client{
		Transport: tracing.NewLoggingTransport(logger.Logger),
	}

	exporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpoint(stripProtocol(endpoint)),
		otlptracehttp.WithInsecure(), // internal network
		otlptracehttp.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(exporter)

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	logger.Logger.Info("OTLP trace exporter initialized", zap.String("endpoint", endpoint))
	return tracerProvider.Shutdown, nil
}

// initMetrics initializes the OTLP metric exporter and a prometheus bridge
// whose handler is served on /metrics alongside the default registry.
func initMetrics(ctx context.Context, res *resource.Resource) (func(context.Context) error, http.Handler, error) {
	endpoint := getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://otel-collector:4318")

	httpClient := &http.Client{
		Transport: tracing.NewLoggingTransport(logger.Logger),
	}

	exporter, err := otlpmetrichttp.New(
		ctx,
		otlpmetrichttp.WithEndpoint(stripProtocol(endpoint)),
		otlpmetrichttp.WithInsecure(),
		otlpmetrichttp.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	bridge, err := promexporter.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(15*time.Second))),
		metric.WithReader(bridge),
	)
	otel.SetMeterProvider(meterProvider)

	handler := promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})

	logger.Logger.Info("OTLP metric exporter initialized", zap.String("endpoint", endpoint))
	return meterProvider.Shutdown, handler, nil
}

func initLogging(serviceName, environment string) (func(context.Context) error, error) {
	if err := logger.InitLokiLogger(serviceName, environment); err != nil {
		return nil, err
	}
	return logger.Shutdown, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// stripProtocol removes http:// or https:// from the beginning of an endpoint
func stripProtocol(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}
