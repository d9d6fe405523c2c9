// Package capture records telemetry for one validation run in isolation.
// Every Capture owns its own tracer and meter providers backed by
// in-memory stores, so concurrent runs never observe each other's spans or
// metrics and no state leaks between runs.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/otelconform/otelconform/pkg/validate"
)

// Capture is one run's private telemetry recorder.
type Capture struct {
	exporter *tracetest.InMemoryExporter
	reader   *sdkmetric.ManualReader
	tp       *sdktrace.TracerProvider
	mp       *sdkmetric.MeterProvider
	warn     io.Writer
}

// Option configures a Capture.
type Option func(*options)

type options struct {
	res            *resource.Resource
	spanProcessors []sdktrace.SpanProcessor
	readers        []sdkmetric.Reader
	warn           io.Writer
}

// WithResource sets the resource attached to both providers, so forwarded
// telemetry carries the right service identity.
func WithResource(res *resource.Resource) Option {
	return func(o *options) { o.res = res }
}

// WithSpanProcessor registers an additional span processor alongside the
// in-memory store, letting one emission feed an external exporter too.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) { o.spanProcessors = append(o.spanProcessors, sp) }
}

// WithMetricReader registers an additional metric reader alongside the
// in-memory one.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) { o.readers = append(o.readers, r) }
}

// WithWarningWriter sets the destination for snapshot warnings, such as
// spans whose parent never reached the exporter. Defaults to discarding.
func WithWarningWriter(w io.Writer) Option {
	return func(o *options) { o.warn = w }
}

// New builds an isolated capture.
func New(opts ...Option) *Capture {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	exporter := tracetest.NewInMemoryExporter()
	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithSyncer(exporter)}
	if o.res != nil {
		tpOpts = append(tpOpts, sdktrace.WithResource(o.res))
	}
	for _, sp := range o.spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}

	reader := sdkmetric.NewManualReader()
	mpOpts := []sdkmetric.Option{sdkmetric.WithReader(reader)}
	if o.res != nil {
		mpOpts = append(mpOpts, sdkmetric.WithResource(o.res))
	}
	for _, r := range o.readers {
		mpOpts = append(mpOpts, sdkmetric.WithReader(r))
	}

	return &Capture{
		exporter: exporter,
		reader:   reader,
		tp:       sdktrace.NewTracerProvider(tpOpts...),
		mp:       sdkmetric.NewMeterProvider(mpOpts...),
		warn:     o.warn,
	}
}

// Tracer returns a tracer writing into this capture.
func (c *Capture) Tracer(name string) trace.Tracer {
	return c.tp.Tracer(name)
}

// Meter returns a meter writing into this capture.
func (c *Capture) Meter(name string) metric.Meter {
	return c.mp.Meter(name)
}

// Snapshot flushes both providers and converts everything recorded so far
// into the validation model.
func (c *Capture) Snapshot(ctx context.Context) (*validate.Telemetry, error) {
	if err := c.tp.ForceFlush(ctx); err != nil {
		return nil, fmt.Errorf("flushing spans: %w", err)
	}
	var rm metricdata.ResourceMetrics
	if err := c.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collecting metrics: %w", err)
	}
	return &validate.Telemetry{
		Roots:   SpanForest(c.exporter.GetSpans(), c.warn),
		Metrics: Metrics(rm),
	}, nil
}

// Shutdown releases both providers.
func (c *Capture) Shutdown(ctx context.Context) error {
	return errors.Join(c.tp.Shutdown(ctx), c.mp.Shutdown(ctx))
}
