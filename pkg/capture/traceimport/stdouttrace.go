package traceimport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/otelconform/otelconform/pkg/validate"
)

// sdkIDs is the TraceID/SpanID pair the stdouttrace exporter emits for
// both a span's own context and its parent.
type sdkIDs struct {
	TraceID string `json:"TraceID"`
	SpanID  string `json:"SpanID"`
}

// sdkValue carries the exporter's Type tag alongside the decoded value,
// since JSON widens every number to float64.
type sdkValue struct {
	Type  string `json:"Type"`
	Value any    `json:"Value"`
}

type sdkKeyValue struct {
	Key   string   `json:"Key"`
	Value sdkValue `json:"Value"`
}

type sdkEvent struct {
	Name       string        `json:"Name"`
	Attributes []sdkKeyValue `json:"Attributes"`
}

// sdkSpan mirrors one line of the Go SDK's stdouttrace output.
type sdkSpan struct {
	Name        string        `json:"Name"`
	SpanContext sdkIDs        `json:"SpanContext"`
	Parent      sdkIDs        `json:"Parent"`
	StartTime   time.Time     `json:"StartTime"`
	Attributes  []sdkKeyValue `json:"Attributes"`
	Events      []sdkEvent    `json:"Events"`
	Status      struct {
		Code        string `json:"Code"`
		Description string `json:"Description"`
	} `json:"Status"`
}

func parseStdouttrace(data []byte) ([]record, error) {
	var records []record
	n := 0
	for raw := range bytes.Lines(data) {
		n++
		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}
		var span sdkSpan
		if err := json.Unmarshal(line, &span); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		records = append(records, span.record())
	}
	return records, nil
}

// record converts the decoded line, restoring typed attribute values and
// dropping all-zero parent IDs so roots stay roots.
func (s sdkSpan) record() record {
	parent := s.Parent.SpanID
	if isZeroID(parent) {
		parent = ""
	}
	rec := record{
		TraceID:    s.SpanContext.TraceID,
		SpanID:     s.SpanContext.SpanID,
		ParentID:   parent,
		Name:       s.Name,
		StartTime:  s.StartTime,
		Attributes: sdkAttrMap(s.Attributes),
		Status: validate.Status{
			Code:        sdkStatusCode(s.Status.Code),
			Description: s.Status.Description,
		},
	}
	for i, e := range s.Events {
		rec.Events = append(rec.Events, validate.ActualEvent{
			Name:       e.Name,
			Attributes: sdkAttrMap(e.Attributes),
			Order:      i,
		})
	}
	return rec
}

func sdkStatusCode(code string) string {
	switch code {
	case "Ok":
		return "ok"
	case "Error":
		return "error"
	default:
		return "unset"
	}
}

func sdkAttrMap(attrs []sdkKeyValue) validate.AttributeMap {
	if len(attrs) == 0 {
		return nil
	}
	out := make(validate.AttributeMap, len(attrs))
	for _, kv := range attrs {
		out[kv.Key] = restoreValue(kv.Value)
	}
	return out
}

// restoreValue undoes JSON number widening using the exporter's Type tag.
// Only the integer shapes need repair; every other type decodes correctly.
func restoreValue(v sdkValue) any {
	switch v.Type {
	case "INT64":
		if f, ok := v.Value.(float64); ok {
			return int64(f)
		}
	case "INT64SLICE":
		if els, ok := v.Value.([]any); ok {
			ints := make([]int64, 0, len(els))
			for _, el := range els {
				if f, ok := el.(float64); ok {
					ints = append(ints, int64(f))
				}
			}
			return ints
		}
	}
	return v.Value
}
