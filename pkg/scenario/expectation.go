package scenario

import (
	"slices"

	"github.com/otelconform/otelconform/pkg/validate"
)

// Expectation lowers the scenario into the validation model, distributing
// the scenario-level schema selections onto every span, event, and metric.
func (s *Scenario) Expectation() *validate.Expectation {
	exp := &validate.Expectation{Scenario: s.Name}
	for i := range s.Spans {
		exp.Roots = append(exp.Roots, lowerSpan(&s.Spans[i], &s.Schemas))
	}
	for _, r := range s.Rules {
		exp.Rules = append(exp.Rules, validate.Rule{Name: r.Rule, Value: r.Value, Span: r.Span})
	}
	return exp
}

func lowerSpan(sp *Span, schemas *SchemaSelection) validate.ExpectedSpan {
	out := validate.ExpectedSpan{
		Name:       sp.Name,
		Attributes: validate.AttributeMap(sp.Attributes),
		Schemas:    slices.Clone([]string(schemas.Spans)),
	}
	if sp.Status != nil {
		out.Status = &validate.ExpectedStatus{
			Code:        sp.Status.Code,
			Description: sp.Status.Description,
		}
	}
	if sp.Exception != nil {
		out.Exception = &validate.ExpectedException{
			Type:    sp.Exception.Type,
			Message: sp.Exception.Message,
		}
	}
	for _, e := range sp.Events {
		out.Events = append(out.Events, validate.ExpectedEvent{
			Name:       e.Name,
			Attributes: validate.AttributeMap(e.Attributes),
			Schemas:    slices.Clone([]string(schemas.Events)),
		})
	}
	for _, m := range sp.Metrics {
		out.Metrics = append(out.Metrics, validate.ExpectedMetric{
			Name:       m.Name,
			Attributes: validate.AttributeMap(m.Attributes),
			Value:      m.Value,
			Schemas:    slices.Clone([]string(schemas.Metrics)),
		})
	}
	for i := range sp.Children {
		out.Children = append(out.Children, lowerSpan(&sp.Children[i], schemas))
	}
	return out
}
