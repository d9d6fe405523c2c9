// Conversion from exported SDK telemetry into the validation model:
// span stubs become a linked forest, metric data becomes flat data points.
package capture

import (
	"fmt"
	"io"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/otelconform/otelconform/pkg/validate"
)

// exceptionEventName is the conventional event name the SDK records
// exceptions under.
const exceptionEventName = "exception"

// SpanForest converts exported span stubs into the validation model,
// grouping by trace and linking children to parents via span IDs. Capture
// order follows span start time, with export order breaking ties. Spans
// whose parent never reached the exporter are promoted to roots, with a
// warning written to warn (may be nil).
func SpanForest(stubs []tracetest.SpanStub, warn io.Writer) []*validate.ActualSpan {
	if len(stubs) == 0 {
		return nil
	}

	// Syncer exporters see spans in end order; re-rank by start time so
	// StartOrder reflects when work began.
	ordered := make([]int, len(stubs))
	for i := range ordered {
		ordered[i] = i
	}
	sort.SliceStable(ordered, func(a, b int) bool {
		return stubs[ordered[a]].StartTime.Before(stubs[ordered[b]].StartTime)
	})

	nodes := make(map[trace.SpanID]*validate.ActualSpan, len(stubs))
	for rank, idx := range ordered {
		stub := &stubs[idx]
		nodes[stub.SpanContext.SpanID()] = &validate.ActualSpan{
			Name:       stub.Name,
			Attributes: attributeMap(stub.Attributes),
			Status:     spanStatus(stub.Status),
			Exception:  recordedException(stub.Events),
			Events:     spanEvents(stub.Events),
			StartOrder: rank,
		}
	}

	var roots []*validate.ActualSpan
	for _, idx := range ordered {
		stub := &stubs[idx]
		node := nodes[stub.SpanContext.SpanID()]
		if !stub.Parent.SpanID().IsValid() {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[stub.Parent.SpanID()]
		if !ok {
			if warn != nil {
				_, _ = fmt.Fprintf(warn, "warning: span %s has parent %s not in capture, treating as root\n",
					stub.SpanContext.SpanID(), stub.Parent.SpanID())
			}
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}
	return roots
}

func spanStatus(s sdktrace.Status) validate.Status {
	out := validate.Status{Description: s.Description}
	switch s.Code {
	case codes.Ok:
		out.Code = "ok"
	case codes.Error:
		out.Code = "error"
	default:
		out.Code = "unset"
	}
	return out
}

func spanEvents(events []sdktrace.Event) []validate.ActualEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]validate.ActualEvent, len(events))
	for i, e := range events {
		out[i] = validate.ActualEvent{
			Name:       e.Name,
			Attributes: attributeMap(e.Attributes),
			Order:      i,
		}
	}
	return out
}

// recordedException extracts the first exception event's type and message.
// The event itself stays in the span's event list.
func recordedException(events []sdktrace.Event) *validate.Exception {
	for _, e := range events {
		if e.Name != exceptionEventName {
			continue
		}
		exc := &validate.Exception{}
		for _, kv := range e.Attributes {
			switch string(kv.Key) {
			case "exception.type":
				exc.Type = kv.Value.AsString()
			case "exception.message":
				exc.Message = kv.Value.AsString()
			}
		}
		return exc
	}
	return nil
}

func attributeMap(attrs []attribute.KeyValue) validate.AttributeMap {
	if len(attrs) == 0 {
		return nil
	}
	out := make(validate.AttributeMap, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = attributeValue(kv.Value)
	}
	return out
}

func attributeValue(v attribute.Value) any {
	switch v.Type() {
	case attribute.BOOL:
		return v.AsBool()
	case attribute.INT64:
		return v.AsInt64()
	case attribute.FLOAT64:
		return v.AsFloat64()
	case attribute.STRING:
		return v.AsString()
	case attribute.BOOLSLICE:
		return v.AsBoolSlice()
	case attribute.INT64SLICE:
		return v.AsInt64Slice()
	case attribute.FLOAT64SLICE:
		return v.AsFloat64Slice()
	case attribute.STRINGSLICE:
		return v.AsStringSlice()
	default:
		return v.Emit()
	}
}

// Metrics flattens collected metric data into validation data points. Sums
// and gauges contribute their point values; histograms contribute their
// sums, which carries the semantic total for value-accumulating
// instruments like token usage.
func Metrics(rm metricdata.ResourceMetrics) []validate.ActualMetric {
	var out []validate.ActualMetric
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				out = appendPoints(out, m.Name, data.DataPoints)
			case metricdata.Sum[float64]:
				out = appendPoints(out, m.Name, data.DataPoints)
			case metricdata.Gauge[int64]:
				out = appendPoints(out, m.Name, data.DataPoints)
			case metricdata.Gauge[float64]:
				out = appendPoints(out, m.Name, data.DataPoints)
			case metricdata.Histogram[int64]:
				out = appendHistogramPoints(out, m.Name, data.DataPoints)
			case metricdata.Histogram[float64]:
				out = appendHistogramPoints(out, m.Name, data.DataPoints)
			}
		}
	}
	for i := range out {
		out[i].Order = i
	}
	return out
}

func appendPoints[N int64 | float64](out []validate.ActualMetric, name string, points []metricdata.DataPoint[N]) []validate.ActualMetric {
	for _, p := range points {
		out = append(out, validate.ActualMetric{
			Name:       name,
			Attributes: attributeMap(p.Attributes.ToSlice()),
			Value:      float64(p.Value),
		})
	}
	return out
}

func appendHistogramPoints[N int64 | float64](out []validate.ActualMetric, name string, points []metricdata.HistogramDataPoint[N]) []validate.ActualMetric {
	for _, p := range points {
		out = append(out, validate.ActualMetric{
			Name:       name,
			Attributes: attributeMap(p.Attributes.ToSlice()),
			Value:      float64(p.Sum),
		})
	}
	return out
}
