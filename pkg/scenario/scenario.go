// YAML scenario documents: expected telemetry trees, schema selections,
// and structural validation rules, plus loading and structural checks.
package scenario

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/otelconform/otelconform/pkg/validate"
)

// Scenario is a parsed scenario document describing the telemetry one
// instrumented operation is expected to produce.
type Scenario struct {
	Name          string          `yaml:"name"`
	Description   string          `yaml:"description,omitempty"`
	Configuration map[string]any  `yaml:"configuration,omitempty"`
	Spans         []Span          `yaml:"spans"`
	Schemas       SchemaSelection `yaml:"schema_validation,omitempty"`
	Rules         []RuleRequest   `yaml:"validation_rules,omitempty"`
}

// Span is one expected span, with nested children.
type Span struct {
	Name       string         `yaml:"name"`
	Attributes map[string]any `yaml:"expected_attributes,omitempty"`
	Events     []Event        `yaml:"expected_events,omitempty"`
	Metrics    []Metric       `yaml:"expected_metrics,omitempty"`
	Children   []Span         `yaml:"child_spans,omitempty"`
	Status     *StatusSpec    `yaml:"expected_status,omitempty"`
	Exception  *ExceptionSpec `yaml:"expected_exception,omitempty"`
}

// Event is one expected span event.
type Event struct {
	Name       string         `yaml:"name"`
	Attributes map[string]any `yaml:"expected_attributes,omitempty"`
}

// Metric is one expected metric data point.
type Metric struct {
	Name       string         `yaml:"name"`
	Attributes map[string]any `yaml:"expected_attributes,omitempty"`
	Value      *float64       `yaml:"expected_value,omitempty"`
}

// StatusSpec is an expected span status.
type StatusSpec struct {
	Code        string `yaml:"code"`
	Description string `yaml:"description,omitempty"`
}

// ExceptionSpec is an expected recorded exception.
type ExceptionSpec struct {
	Type    string `yaml:"type"`
	Message string `yaml:"message,omitempty"`
}

// RuleRequest asks for one structural rule check. Span optionally names a
// span below the root to measure instead of the root itself.
type RuleRequest struct {
	Rule  string `yaml:"rule"`
	Value int    `yaml:"value"`
	Span  string `yaml:"span,omitempty"`
}

// SchemaSelection lists the schema identifiers each record kind is checked
// against. Every listed span schema applies to every span in the scenario,
// and likewise for events and metrics.
type SchemaSelection struct {
	Spans   StringList `yaml:"span_schemas,omitempty"`
	Events  StringList `yaml:"event_schemas,omitempty"`
	Metrics StringList `yaml:"metric_schemas,omitempty"`
}

// UnmarshalYAML also accepts the singular span_schema key.
func (s *SchemaSelection) UnmarshalYAML(value *yaml.Node) error {
	type plain SchemaSelection
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	var alias struct {
		Span StringList `yaml:"span_schema"`
	}
	if err := value.Decode(&alias); err != nil {
		return err
	}
	p.Spans = append(p.Spans, alias.Span...)
	*s = SchemaSelection(p)
	return nil
}

// StringList accepts either a single scalar or a sequence of scalars.
type StringList []string

// UnmarshalYAML handles both the scalar and sequence forms.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*l = StringList{s}
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = StringList(items)
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
	}
	return nil
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied scenario path is expected
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse parses a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return &sc, nil
}

// Validate checks a scenario for structural correctness: non-empty names
// throughout the span tree, recognised status codes, and supported
// validation rules.
func Validate(sc *Scenario) error {
	if sc.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if len(sc.Spans) == 0 {
		return fmt.Errorf("scenario %q: at least one expected span is required", sc.Name)
	}
	for i := range sc.Spans {
		if err := validateSpan(&sc.Spans[i], ""); err != nil {
			return fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
	}
	for _, r := range sc.Rules {
		if !validate.KnownRules[r.Rule] {
			return fmt.Errorf("scenario %q: unsupported validation rule %q (known rules: %s)",
				sc.Name, r.Rule, strings.Join(ruleNames(), ", "))
		}
		if r.Value < 0 {
			return fmt.Errorf("scenario %q: validation rule %q: value must not be negative", sc.Name, r.Rule)
		}
	}
	return nil
}

func validateSpan(sp *Span, parent string) error {
	if sp.Name == "" {
		if parent == "" {
			return fmt.Errorf("span name is required")
		}
		return fmt.Errorf("span %q: child name is required", parent)
	}
	path := sp.Name
	if parent != "" {
		path = parent + "." + sp.Name
	}

	if sp.Status != nil {
		switch sp.Status.Code {
		case "unset", "ok", "error":
		default:
			return fmt.Errorf("span %q: status code must be unset, ok, or error, got %q", path, sp.Status.Code)
		}
	}
	if sp.Exception != nil && sp.Exception.Type == "" {
		return fmt.Errorf("span %q: expected exception needs a type", path)
	}
	for _, e := range sp.Events {
		if e.Name == "" {
			return fmt.Errorf("span %q: event name is required", path)
		}
	}
	for _, m := range sp.Metrics {
		if m.Name == "" {
			return fmt.Errorf("span %q: metric name is required", path)
		}
	}
	for i := range sp.Children {
		if err := validateSpan(&sp.Children[i], path); err != nil {
			return err
		}
	}
	return nil
}

func ruleNames() []string {
	return []string{
		validate.RuleChildSpanCount,
		validate.RuleSpanHierarchyDepth,
		validate.RuleRetriedOperationCount,
		validate.RuleErrorSpanCount,
	}
}
