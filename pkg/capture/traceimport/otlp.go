package traceimport

import (
	"encoding/hex"
	"fmt"
	"time"

	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/otelconform/otelconform/pkg/validate"
)

// parseOTLP decodes an OTLP/JSON ExportTraceServiceRequest. Unknown fields
// are discarded so exports from newer collectors still load.
func parseOTLP(data []byte) ([]record, error) {
	var req coltracepb.ExportTraceServiceRequest
	dec := protojson.UnmarshalOptions{DiscardUnknown: true}
	if err := dec.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decoding OTLP: %w", err)
	}

	var records []record
	for _, res := range req.GetResourceSpans() {
		for _, scope := range res.GetScopeSpans() {
			for _, span := range scope.GetSpans() {
				records = append(records, otlpRecord(span))
			}
		}
	}
	return records, nil
}

func otlpRecord(span *tracepb.Span) record {
	parent := hex.EncodeToString(span.GetParentSpanId())
	if isZeroID(parent) {
		parent = ""
	}
	rec := record{
		TraceID:    hex.EncodeToString(span.GetTraceId()),
		SpanID:     hex.EncodeToString(span.GetSpanId()),
		ParentID:   parent,
		Name:       span.GetName(),
		StartTime:  time.Unix(0, int64(span.GetStartTimeUnixNano())), //nolint:gosec // exporters never emit negative timestamps
		Attributes: otlpAttrMap(span.GetAttributes()),
		Status:     otlpStatus(span.GetStatus()),
	}
	for i, e := range span.GetEvents() {
		rec.Events = append(rec.Events, validate.ActualEvent{
			Name:       e.GetName(),
			Attributes: otlpAttrMap(e.GetAttributes()),
			Order:      i,
		})
	}
	return rec
}

func otlpStatus(s *tracepb.Status) validate.Status {
	out := validate.Status{Code: "unset", Description: s.GetMessage()}
	switch s.GetCode() {
	case tracepb.Status_STATUS_CODE_OK:
		out.Code = "ok"
	case tracepb.Status_STATUS_CODE_ERROR:
		out.Code = "error"
	}
	return out
}

func otlpAttrMap(attrs []*commonpb.KeyValue) validate.AttributeMap {
	if len(attrs) == 0 {
		return nil
	}
	out := make(validate.AttributeMap, len(attrs))
	for _, kv := range attrs {
		out[kv.GetKey()] = otlpValue(kv.GetValue())
	}
	return out
}

// otlpValue maps an AnyValue onto the plain Go value space the validator
// compares against. Bytes render as hex, nested lists and maps recurse.
func otlpValue(v *commonpb.AnyValue) any {
	switch val := v.GetValue().(type) {
	case *commonpb.AnyValue_StringValue:
		return val.StringValue
	case *commonpb.AnyValue_BoolValue:
		return val.BoolValue
	case *commonpb.AnyValue_IntValue:
		return val.IntValue
	case *commonpb.AnyValue_DoubleValue:
		return val.DoubleValue
	case *commonpb.AnyValue_ArrayValue:
		els := val.ArrayValue.GetValues()
		out := make([]any, 0, len(els))
		for _, el := range els {
			out = append(out, otlpValue(el))
		}
		return out
	case *commonpb.AnyValue_KvlistValue:
		els := val.KvlistValue.GetValues()
		out := make(map[string]any, len(els))
		for _, el := range els {
			out[el.GetKey()] = otlpValue(el.GetValue())
		}
		return out
	case *commonpb.AnyValue_BytesValue:
		return hex.EncodeToString(val.BytesValue)
	default:
		return nil
	}
}
