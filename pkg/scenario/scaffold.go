// Scenario scaffolding from captured telemetry, for bootstrapping new
// scenario files from a recorded trace.
package scenario

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/otelconform/otelconform/pkg/validate"
)

// FromSpans scaffolds a scenario from a captured span forest. Every
// recorded attribute becomes an expected attribute, so the result pins the
// capture exactly and usually wants trimming by hand.
func FromSpans(name string, roots []*validate.ActualSpan) *Scenario {
	sc := &Scenario{Name: name}
	for _, root := range roots {
		sc.Spans = append(sc.Spans, scaffoldSpan(root))
	}
	sc.Schemas = inferSchemas(sc.Spans)
	return sc
}

func scaffoldSpan(s *validate.ActualSpan) Span {
	out := Span{
		Name:       s.Name,
		Attributes: copyAttributes(s.Attributes),
	}
	if s.Status.Code != "" && s.Status.Code != "unset" {
		out.Status = &StatusSpec{Code: s.Status.Code, Description: s.Status.Description}
	}
	if s.Exception != nil {
		out.Exception = &ExceptionSpec{Type: s.Exception.Type, Message: s.Exception.Message}
	}
	for _, e := range s.Events {
		out.Events = append(out.Events, Event{
			Name:       e.Name,
			Attributes: copyAttributes(e.Attributes),
		})
	}
	for _, child := range s.Children {
		out.Children = append(out.Children, scaffoldSpan(child))
	}
	return out
}

func copyAttributes(attrs validate.AttributeMap) map[string]any {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// inferSchemas guesses a schema selection from the attribute namespaces the
// capture used. A span carrying gen_ai.* attributes is presumed to target
// the GenAI client span conventions.
func inferSchemas(spans []Span) SchemaSelection {
	var sel SchemaSelection
	if anySpan(spans, func(sp *Span) bool {
		for key := range sp.Attributes {
			if strings.HasPrefix(key, "gen_ai.") {
				return true
			}
		}
		return false
	}) {
		sel.Spans = StringList{"span.gen_ai.client"}
	}
	return sel
}

func anySpan(spans []Span, pred func(*Span) bool) bool {
	for i := range spans {
		if pred(&spans[i]) || anySpan(spans[i].Children, pred) {
			return true
		}
	}
	return false
}

// Marshal renders a scenario as YAML with a scaffolding header.
func Marshal(sc *Scenario) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(sc); err != nil {
		return nil, fmt.Errorf("marshalling scenario: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing YAML encoder: %w", err)
	}

	header := fmt.Sprintf("# Scaffolded from %d captured span(s)\n# Trim expected_attributes down to what the scenario should actually pin\n\n",
		countSpans(sc.Spans))
	return append([]byte(header), buf.Bytes()...), nil
}

func countSpans(spans []Span) int {
	n := len(spans)
	for i := range spans {
		n += countSpans(spans[i].Children)
	}
	return n
}
