// Report structures: the per-run result tree mirroring the expected
// telemetry, plus the flattened rendering view.
package validate

import (
	"fmt"
	"iter"
	"strings"
)

// Outcome classifies one validation result.
type Outcome string

const (
	Pass                  Outcome = "pass"
	FailMissing           Outcome = "fail-missing"
	FailExtra             Outcome = "fail-extra"
	FailAttributeMismatch Outcome = "fail-attribute-mismatch"
	FailSchemaViolation   Outcome = "fail-schema-violation"
)

// AttributeDiff records one expected-vs-actual discrepancy. Present is
// false when the key was not recorded at all. The reserved keys
// "status.code", "status.description", "exception.type", and
// "exception.message" carry status and exception comparisons.
type AttributeDiff struct {
	Key      string
	Expected any
	Actual   any
	Present  bool
}

// SchemaViolation records one violated schema constraint.
type SchemaViolation struct {
	Schema string
	Key    string
	Reason string
}

// ValueDiff records a metric value discrepancy.
type ValueDiff struct {
	Expected float64
	Actual   float64
}

// EventResult is the validation result for one expected event.
type EventResult struct {
	Name       string
	Outcome    Outcome
	Diffs      []AttributeDiff
	Violations []SchemaViolation
}

// MetricResult is the validation result for one expected metric.
type MetricResult struct {
	Name       string
	Outcome    Outcome
	Diffs      []AttributeDiff
	ValueDiff  *ValueDiff
	Violations []SchemaViolation
}

// SpanResult is the validation result for one expected span. Outcome
// reflects only this span's own checks; descendant results hang off
// Events, Metrics, and Children. Pass reports the aggregate.
type SpanResult struct {
	Name       string
	Path       string
	Outcome    Outcome
	Diffs      []AttributeDiff
	Violations []SchemaViolation
	Events     []EventResult
	Metrics    []MetricResult
	Children   []SpanResult
}

// Pass reports whether this span and every descendant result passed.
func (s *SpanResult) Pass() bool {
	if s.Outcome != Pass {
		return false
	}
	for i := range s.Events {
		if s.Events[i].Outcome != Pass {
			return false
		}
	}
	for i := range s.Metrics {
		if s.Metrics[i].Outcome != Pass {
			return false
		}
	}
	for i := range s.Children {
		if !s.Children[i].Pass() {
			return false
		}
	}
	return true
}

// RuleResult is the evaluation of one structural rule at the report root.
type RuleResult struct {
	Rule     string
	Expected int
	Actual   int
	Outcome  Outcome
	Reason   string
}

// Report is the aggregate result of validating one scenario.
type Report struct {
	Scenario string
	Roots    []SpanResult
	Rules    []RuleResult
}

// IsPass reports whether every node and every structural rule passed.
func (r *Report) IsPass() bool {
	for i := range r.Roots {
		if !r.Roots[i].Pass() {
			return false
		}
	}
	for i := range r.Rules {
		if r.Rules[i].Outcome != Pass {
			return false
		}
	}
	return true
}

// Finding is one flattened report entry. Path is the dotted span-name
// chain from the root to the record, with event and metric names appended
// as the final component. Reasons is empty for passing entries.
type Finding struct {
	Path    string
	Outcome Outcome
	Reasons []string
}

// Flatten returns the report as a lazy sequence of findings in
// deterministic depth-first order: each span, then its events, its
// metrics, its children, and finally the structural rules. The sequence
// is restartable; every iteration replays the same findings.
func (r *Report) Flatten() iter.Seq[Finding] {
	return func(yield func(Finding) bool) {
		for i := range r.Roots {
			if !flattenSpan(&r.Roots[i], yield) {
				return
			}
		}
		for i := range r.Rules {
			rr := &r.Rules[i]
			f := Finding{Path: rr.Rule, Outcome: rr.Outcome}
			if rr.Reason != "" {
				f.Reasons = []string{rr.Reason}
			}
			if !yield(f) {
				return
			}
		}
	}
}

func flattenSpan(s *SpanResult, yield func(Finding) bool) bool {
	if !yield(Finding{Path: s.Path, Outcome: s.Outcome, Reasons: spanReasons(s)}) {
		return false
	}
	for i := range s.Events {
		e := &s.Events[i]
		f := Finding{
			Path:    s.Path + "." + e.Name,
			Outcome: e.Outcome,
			Reasons: recordReasons(e.Outcome, "event", e.Diffs, e.Violations),
		}
		if !yield(f) {
			return false
		}
	}
	for i := range s.Metrics {
		m := &s.Metrics[i]
		reasons := recordReasons(m.Outcome, "metric", m.Diffs, m.Violations)
		if m.ValueDiff != nil {
			reasons = append(reasons, fmt.Sprintf("value: expected %v, got %v", m.ValueDiff.Expected, m.ValueDiff.Actual))
		}
		f := Finding{Path: s.Path + "." + m.Name, Outcome: m.Outcome, Reasons: reasons}
		if !yield(f) {
			return false
		}
	}
	for i := range s.Children {
		if !flattenSpan(&s.Children[i], yield) {
			return false
		}
	}
	return true
}

func spanReasons(s *SpanResult) []string {
	return recordReasons(s.Outcome, "span", s.Diffs, s.Violations)
}

// recordReasons renders one record's failure reasons. Passing records
// yield none.
func recordReasons(outcome Outcome, kind string, diffs []AttributeDiff, violations []SchemaViolation) []string {
	if outcome == Pass {
		return nil
	}
	var reasons []string
	if outcome == FailMissing && len(diffs) == 0 && len(violations) == 0 {
		return []string{fmt.Sprintf("expected %s not found", kind)}
	}
	for _, d := range diffs {
		if d.Present {
			reasons = append(reasons, fmt.Sprintf("%s: expected %s, got %s", d.Key, formatValue(d.Expected), formatValue(d.Actual)))
		} else {
			reasons = append(reasons, fmt.Sprintf("%s: expected %s, not recorded", d.Key, formatValue(d.Expected)))
		}
	}
	for _, v := range violations {
		reasons = append(reasons, fmt.Sprintf("schema %s: %s", v.Schema, v.Reason))
	}
	return reasons
}

// formatValue renders an attribute value for a reason string, quoting
// strings so empty and whitespace values stay visible.
func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return fmt.Sprintf("%q", t)
	case nil:
		return "<none>"
	default:
		return fmt.Sprint(t)
	}
}

// Summary renders a one-line result for logs: the scenario name, overall
// outcome, and the count of failing entries.
func (r *Report) Summary() string {
	failing := 0
	for f := range r.Flatten() {
		if f.Outcome != Pass {
			failing++
		}
	}
	state := "PASS"
	if failing > 0 {
		state = "FAIL"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", r.Scenario, state)
	if failing > 0 {
		fmt.Fprintf(&b, " (%d failing)", failing)
	}
	return b.String()
}
