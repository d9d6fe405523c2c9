// OTLP export plumbing: exporter construction, endpoint checks, and the
// forwarding layer that mirrors captured signals to a collector or stdout.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/otelconform/otelconform/pkg/capture"
)

const (
	protoHTTP = "http/protobuf"
	protoGRPC = "grpc"

	defaultHTTPPort = "4318"
	defaultGRPCPort = "4317"

	shutdownTimeout = 5 * time.Second
	dialTimeout     = 2 * time.Second
)

// validateProtocol rejects anything but the two OTLP transport names.
func validateProtocol(p string) error {
	switch p {
	case protoHTTP, protoGRPC:
		return nil
	default:
		return fmt.Errorf("unsupported protocol %q, supported: http/protobuf, grpc", p)
	}
}

func defaultPort(protocol string) string {
	if protocol == protoGRPC {
		return defaultGRPCPort
	}
	return defaultHTTPPort
}

// checkEndpoint dials the collector before any scenario runs so a dead
// endpoint fails fast instead of hanging inside the batch exporter.
func checkEndpoint(endpoint, protocol string) error {
	host := endpoint
	if host == "" {
		host = "localhost"
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, defaultPort(protocol))
	}

	conn, err := net.DialTimeout("tcp", host, dialTimeout)
	if err != nil {
		return fmt.Errorf("cannot reach OTLP collector at %s\n\n"+
			"Use --stdout to print signals as JSON instead:\n"+
			"  otelconform run --stdout scenario.yaml\n\n"+
			"Or point --endpoint at a collector:\n"+
			"  otelconform run --endpoint collector.example.com:4318 scenario.yaml", host)
	}
	_ = conn.Close()
	return nil
}

// exportOptions selects how forwarded signals leave the process.
type exportOptions struct {
	endpoint string
	protocol string
	stdout   bool
}

// Exporter factories. stdout wins over the OTLP transports; an empty
// endpoint leaves the exporter on its environment-driven defaults.

func newTraceExporter(ctx context.Context, opts exportOptions) (sdktrace.SpanExporter, error) {
	if opts.stdout {
		return stdouttrace.New(stdouttrace.WithWriter(os.Stdout))
	}
	switch opts.protocol {
	case protoGRPC:
		if opts.endpoint == "" {
			return otlptracegrpc.New(ctx)
		}
		return otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(opts.endpoint),
			otlptracegrpc.WithInsecure())
	case protoHTTP, "":
		if opts.endpoint == "" {
			return otlptracehttp.New(ctx)
		}
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(opts.endpoint),
			otlptracehttp.WithInsecure())
	default:
		return nil, fmt.Errorf("unsupported protocol %q for traces", opts.protocol)
	}
}

func newMetricExporter(ctx context.Context, opts exportOptions) (sdkmetric.Exporter, error) {
	if opts.stdout {
		return stdoutmetric.New(stdoutmetric.WithWriter(os.Stdout))
	}
	switch opts.protocol {
	case protoGRPC:
		if opts.endpoint == "" {
			return otlpmetricgrpc.New(ctx)
		}
		return otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(opts.endpoint),
			otlpmetricgrpc.WithInsecure())
	case protoHTTP, "":
		if opts.endpoint == "" {
			return otlpmetrichttp.New(ctx)
		}
		return otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(opts.endpoint),
			otlpmetrichttp.WithInsecure())
	default:
		return nil, fmt.Errorf("unsupported protocol %q for metrics", opts.protocol)
	}
}

func newLogExporter(ctx context.Context, opts exportOptions) (sdklog.Exporter, error) {
	if opts.stdout {
		return stdoutlog.New(stdoutlog.WithWriter(os.Stdout))
	}
	switch opts.protocol {
	case protoGRPC:
		if opts.endpoint == "" {
			return otlploggrpc.New(ctx)
		}
		return otlploggrpc.New(ctx,
			otlploggrpc.WithEndpoint(opts.endpoint),
			otlploggrpc.WithInsecure())
	case protoHTTP, "":
		if opts.endpoint == "" {
			return otlploghttp.New(ctx)
		}
		return otlploghttp.New(ctx,
			otlploghttp.WithEndpoint(opts.endpoint),
			otlploghttp.WithInsecure())
	default:
		return nil, fmt.Errorf("unsupported protocol %q for logs", opts.protocol)
	}
}

// newFindingsProvider builds the logger provider that carries findings
// records out of the process.
func newFindingsProvider(ctx context.Context, opts exportOptions) (*sdklog.LoggerProvider, error) {
	exporter, err := newLogExporter(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("creating log exporter: %w", err)
	}
	processor := sdklog.Processor(sdklog.NewBatchProcessor(exporter))
	if opts.stdout {
		processor = sdklog.NewSimpleProcessor(exporter)
	}
	return sdklog.NewLoggerProvider(sdklog.WithProcessor(processor)), nil
}

// nonOwnedSpanExporter shields a shared exporter from per-run provider
// shutdown. Each scenario run owns its capture providers and processors;
// the real exporter is shut down once after the last run.
type nonOwnedSpanExporter struct {
	sdktrace.SpanExporter
}

func (nonOwnedSpanExporter) Shutdown(context.Context) error { return nil }

// nonOwnedMetricExporter does the same for the metric exporter shared by
// per-run PeriodicReaders.
type nonOwnedMetricExporter struct {
	sdkmetric.Exporter
}

func (nonOwnedMetricExporter) Shutdown(context.Context) error { return nil }

// forwarding mirrors every captured signal to an OTLP collector or stdout
// while validation runs against the in-memory snapshot.
type forwarding struct {
	traces  sdktrace.SpanExporter
	metrics sdkmetric.Exporter
	stdout  bool
}

func newForwarding(ctx context.Context, opts exportOptions) (*forwarding, error) {
	te, err := newTraceExporter(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	me, err := newMetricExporter(ctx, opts)
	if err != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = te.Shutdown(drainCtx)
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	return &forwarding{traces: te, metrics: me, stdout: opts.stdout}, nil
}

// captureOptions returns fresh per-run capture options. A metric reader
// can only register with one provider, so every run gets its own
// processor and reader around the shared exporters.
func (f *forwarding) captureOptions() []capture.Option {
	sp := sdktrace.SpanProcessor(sdktrace.NewBatchSpanProcessor(nonOwnedSpanExporter{f.traces}))
	if f.stdout {
		sp = sdktrace.NewSimpleSpanProcessor(nonOwnedSpanExporter{f.traces})
	}
	reader := sdkmetric.NewPeriodicReader(nonOwnedMetricExporter{f.metrics})
	return []capture.Option{
		capture.WithSpanProcessor(sp),
		capture.WithMetricReader(reader),
	}
}

func (f *forwarding) shutdown() {
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdownAll(drainCtx, []shutdownable{f.traces, f.metrics}, "exporter")
}

// shutdownable is the common surface of providers and exporters.
type shutdownable interface {
	Shutdown(context.Context) error
}

// shutdownAll drains every item in parallel under one deadline so a stuck
// exporter cannot hold up the rest. Failures are reported to stderr.
func shutdownAll[S shutdownable](ctx context.Context, items []S, label string) {
	var wg sync.WaitGroup
	for _, item := range items {
		wg.Go(func() {
			if err := item.Shutdown(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "shutting down %s: %v\n", label, err)
			}
		})
	}
	wg.Wait()
}
