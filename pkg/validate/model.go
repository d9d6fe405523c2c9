// Package validate matches expected telemetry trees against captured
// telemetry and checks both sides against semantic convention schemas.
//
// The engine is a pure computation: expected trees, captured trees, and the
// schema registry are read-only inputs, and every run produces a fresh
// Report. Runs never share mutable state, so suites can validate scenarios
// concurrently against one registry.
package validate

// AttributeMap holds the attributes of a span, event, or metric data point.
// Values are scalars, slices, or nested maps as produced by YAML parsing or
// telemetry capture.
type AttributeMap map[string]any

// ExpectedSpan describes one span the telemetry must contain: its exact
// name, the attribute subset it must carry, the events and child spans
// nested under it, the metrics recorded while it was active, and the schema
// identifiers it is checked against.
type ExpectedSpan struct {
	Name       string
	Attributes AttributeMap
	Events     []ExpectedEvent
	Metrics    []ExpectedMetric
	Children   []ExpectedSpan
	Status     *ExpectedStatus
	Exception  *ExpectedException
	Schemas    []string
}

// ExpectedEvent describes one event the matched span must carry.
type ExpectedEvent struct {
	Name       string
	Attributes AttributeMap
	Schemas    []string
}

// ExpectedMetric describes one metric data point the capture must contain.
// Attributes both select the data point and constrain it. Value, when set,
// participates in candidate selection so that same-attribute points with
// different values stay distinguishable.
type ExpectedMetric struct {
	Name       string
	Attributes AttributeMap
	Value      *float64
	Schemas    []string
}

// ExpectedStatus constrains the matched span's status. Code is always
// compared; Description only when non-empty.
type ExpectedStatus struct {
	Code        string
	Description string
}

// ExpectedException constrains the exception recorded on the matched span.
// Type is always compared; Message only when non-empty.
type ExpectedException struct {
	Type    string
	Message string
}

// Status is a captured span status. Code is one of "unset", "ok", "error".
type Status struct {
	Code        string
	Description string
}

// Exception is an exception recorded on a captured span, extracted from its
// exception event.
type Exception struct {
	Type    string
	Message string
}

// ActualSpan is one captured span. StartOrder is the span's position in
// capture order and is used only to break matching ties deterministically,
// never for semantic comparison.
type ActualSpan struct {
	Name       string
	Attributes AttributeMap
	Status     Status
	Exception  *Exception
	Events     []ActualEvent
	Children   []*ActualSpan
	StartOrder int
}

// ActualEvent is one captured span event.
type ActualEvent struct {
	Name       string
	Attributes AttributeMap
	Order      int
}

// ActualMetric is one captured metric data point.
type ActualMetric struct {
	Name       string
	Attributes AttributeMap
	Value      float64
	Order      int
}

// Telemetry is a completed capture: the root spans of every recorded trace
// and every metric data point, both in capture order.
type Telemetry struct {
	Roots   []*ActualSpan
	Metrics []ActualMetric
}

// Rule is a structural validation request evaluated against the matched
// root span's subtree rather than any single record. Span optionally
// designates a named span below the root as the subtree to measure.
type Rule struct {
	Name  string
	Value int
	Span  string
}

// Structural rule names.
const (
	RuleChildSpanCount        = "child_span_count"
	RuleSpanHierarchyDepth    = "span_hierarchy_depth"
	RuleRetriedOperationCount = "retried_operation_count"
	RuleErrorSpanCount        = "error_span_count"
)

// KnownRules maps every supported structural rule name to true, for
// scenario validation before a run starts.
var KnownRules = map[string]bool{
	RuleChildSpanCount:        true,
	RuleSpanHierarchyDepth:    true,
	RuleRetriedOperationCount: true,
	RuleErrorSpanCount:        true,
}

// Expectation is one scenario's validation target: the expected span trees
// and the structural rules to apply at the root.
type Expectation struct {
	Scenario string
	Roots    []ExpectedSpan
	Rules    []Rule
}

// eventNames collects the names of a captured span's events, in order,
// forming the event context for conditional schema constraints.
func eventNames(s *ActualSpan) []string {
	if len(s.Events) == 0 {
		return nil
	}
	names := make([]string, len(s.Events))
	for i, e := range s.Events {
		names[i] = e.Name
	}
	return names
}
