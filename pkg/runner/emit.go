// Scenario emission: replays a scenario's expected telemetry through a
// real tracer and meter so validation exercises an authentic SDK round
// trip. Timestamps are synthetic; spans start in document order.
package runner

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/otelconform/otelconform/pkg/scenario"
)

const exceptionEventName = "exception"

// startStep spaces synthetic span start times so capture order follows
// document order.
const startStep = time.Millisecond

// metricUnits maps well-known GenAI metric names to their declared units.
var metricUnits = map[string]string{
	"gen_ai.client.token.usage":        "{token}",
	"gen_ai.client.operation.duration": "s",
}

// emitter replays one scenario through a tracer and meter.
type emitter struct {
	tracer  trace.Tracer
	meter   metric.Meter
	clock   time.Time
	metrics bool
}

func newEmitter(tracer trace.Tracer, meter metric.Meter, withMetrics bool) *emitter {
	return &emitter{
		tracer:  tracer,
		meter:   meter,
		clock:   time.Now().Add(-time.Minute),
		metrics: withMetrics,
	}
}

func (e *emitter) emitScenario(ctx context.Context, sc *scenario.Scenario) error {
	for i := range sc.Spans {
		if err := e.emitSpan(ctx, &sc.Spans[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *emitter) emitSpan(ctx context.Context, sp *scenario.Span) error {
	start := e.tick()
	ctx, span := e.tracer.Start(ctx, sp.Name,
		trace.WithTimestamp(start),
		trace.WithSpanKind(spanKind(sp)),
		trace.WithAttributes(typedAttributes(sp.Attributes)...),
	)

	eventTime := start
	for _, ev := range sp.Events {
		eventTime = eventTime.Add(50 * time.Microsecond)
		span.AddEvent(ev.Name,
			trace.WithTimestamp(eventTime),
			trace.WithAttributes(typedAttributes(ev.Attributes)...),
		)
	}
	if sp.Exception != nil {
		eventTime = eventTime.Add(50 * time.Microsecond)
		span.AddEvent(exceptionEventName,
			trace.WithTimestamp(eventTime),
			trace.WithAttributes(
				attribute.String("exception.type", sp.Exception.Type),
				attribute.String("exception.message", sp.Exception.Message),
			),
		)
	}

	if e.metrics {
		for _, m := range sp.Metrics {
			if err := e.recordMetric(ctx, m); err != nil {
				span.End(trace.WithTimestamp(e.tick()))
				return err
			}
		}
	}

	for i := range sp.Children {
		if err := e.emitSpan(ctx, &sp.Children[i]); err != nil {
			span.End(trace.WithTimestamp(e.tick()))
			return err
		}
	}

	if sp.Status != nil {
		switch sp.Status.Code {
		case "error":
			span.SetStatus(codes.Error, sp.Status.Description)
		case "ok":
			span.SetStatus(codes.Ok, "")
		}
	}
	span.End(trace.WithTimestamp(e.tick()))
	return nil
}

func (e *emitter) tick() time.Time {
	e.clock = e.clock.Add(startStep)
	return e.clock
}

// recordMetric picks the instrument from the expected value: integral
// values become counter increments, fractional or duration values become
// histogram recordings. A metric with no pinned value records one unit as
// a presence marker.
func (e *emitter) recordMetric(ctx context.Context, m scenario.Metric) error {
	value := 1.0
	if m.Value != nil {
		value = *m.Value
	}
	opts := metric.WithAttributes(typedAttributes(m.Attributes)...)

	if isIntegral(value) && !strings.HasSuffix(m.Name, ".duration") {
		counter, err := e.meter.Int64Counter(m.Name, counterOptions(m.Name)...)
		if err != nil {
			return fmt.Errorf("creating counter %s: %w", m.Name, err)
		}
		counter.Add(ctx, int64(value), opts)
		return nil
	}

	hist, err := e.meter.Float64Histogram(m.Name, histogramOptions(m.Name)...)
	if err != nil {
		return fmt.Errorf("creating histogram %s: %w", m.Name, err)
	}
	hist.Record(ctx, value, opts)
	return nil
}

func counterOptions(name string) []metric.Int64CounterOption {
	if unit, ok := metricUnits[name]; ok {
		return []metric.Int64CounterOption{metric.WithUnit(unit)}
	}
	return nil
}

func histogramOptions(name string) []metric.Float64HistogramOption {
	if unit, ok := metricUnits[name]; ok {
		return []metric.Float64HistogramOption{metric.WithUnit(unit)}
	}
	return nil
}

func isIntegral(v float64) bool {
	return v == math.Trunc(v) && math.Abs(v) < 1<<53
}

// spanKind follows the GenAI conventions: tool executions run in-process
// as INTERNAL spans, everything else models a provider call as CLIENT.
func spanKind(sp *scenario.Span) trace.SpanKind {
	if op, _ := sp.Attributes["gen_ai.operation.name"].(string); op == "execute_tool" {
		return trace.SpanKindInternal
	}
	return trace.SpanKindClient
}

// typedAttributes converts scenario attribute values to OTel attributes,
// preserving the types YAML parsing produced.
func typedAttributes(attrs map[string]any) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		out = append(out, typedAttribute(k, v))
	}
	return out
}

func typedAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case []any:
		return sliceAttribute(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}

// sliceAttribute converts a YAML sequence to the matching typed slice
// attribute, falling back to strings for mixed sequences.
func sliceAttribute(key string, items []any) attribute.KeyValue {
	if ss, ok := stringItems(items); ok {
		return attribute.StringSlice(key, ss)
	}
	if ns, ok := intItems(items); ok {
		return attribute.Int64Slice(key, ns)
	}
	if fs, ok := floatItems(items); ok {
		return attribute.Float64Slice(key, fs)
	}
	if bs, ok := boolItems(items); ok {
		return attribute.BoolSlice(key, bs)
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = fmt.Sprint(item)
	}
	return attribute.StringSlice(key, out)
}

func stringItems(items []any) ([]string, bool) {
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

func intItems(items []any) ([]int64, bool) {
	out := make([]int64, len(items))
	for i, item := range items {
		switch n := item.(type) {
		case int:
			out[i] = int64(n)
		case int64:
			out[i] = n
		default:
			return nil, false
		}
	}
	return out, true
}

// floatItems accepts mixed integer and float sequences, widening to
// float64.
func floatItems(items []any) ([]float64, bool) {
	out := make([]float64, len(items))
	for i, item := range items {
		switch n := item.(type) {
		case int:
			out[i] = float64(n)
		case int64:
			out[i] = float64(n)
		case float64:
			out[i] = n
		default:
			return nil, false
		}
	}
	return out, true
}

func boolItems(items []any) ([]bool, bool) {
	out := make([]bool, len(items))
	for i, item := range items {
		b, ok := item.(bool)
		if !ok {
			return nil, false
		}
		out[i] = b
	}
	return out, true
}
