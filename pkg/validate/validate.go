// Tree validation: walks the expected span tree and the captured span
// forest in lockstep, pairing records via the matcher and checking each
// pair against expected attributes and schema constraints.
package validate

import (
	"fmt"
	"sort"

	"github.com/otelconform/otelconform/pkg/semconv"
)

// Validator validates expectations against captured telemetry using one
// schema registry. Safe for concurrent use once constructed.
type Validator struct {
	registry *semconv.Registry
}

// New returns a Validator backed by the given registry.
func New(registry *semconv.Registry) *Validator {
	return &Validator{registry: registry}
}

// Validate matches the expectation against the capture and returns the
// full report. The walk never stops early: every discoverable finding is
// reported in one pass. The only error is a schema identifier unknown to
// the registry, which marks the expectation itself as malformed and wraps
// semconv.ErrNotFound.
func (v *Validator) Validate(exp *Expectation, tel *Telemetry) (*Report, error) {
	defs, err := v.resolveSchemas(exp)
	if err != nil {
		return nil, err
	}

	report := &Report{Scenario: exp.Scenario}

	metrics := &metricPool{points: tel.Metrics, claimed: make([]bool, len(tel.Metrics))}
	claimed := make(map[*ActualSpan]bool)
	var firstRoot *ActualSpan
	for i := range exp.Roots {
		result, matched := validateSpan(&exp.Roots[i], tel.Roots, claimed, "", defs, metrics)
		if i == 0 {
			firstRoot = matched
		}
		report.Roots = append(report.Roots, result)
	}

	report.Rules = evaluateRules(exp.Rules, firstRoot)
	return report, nil
}

// resolveSchemas looks up every schema identifier referenced anywhere in
// the expectation before the walk starts, so a malformed scenario fails
// immediately instead of producing a partial report.
func (v *Validator) resolveSchemas(exp *Expectation) (map[string]*semconv.Definition, error) {
	defs := make(map[string]*semconv.Definition)
	var resolve func(ids []string) error
	resolve = func(ids []string) error {
		for _, id := range ids {
			if _, ok := defs[id]; ok {
				continue
			}
			def, err := v.registry.Definition(id)
			if err != nil {
				return fmt.Errorf("resolving schemas: %w", err)
			}
			defs[id] = def
		}
		return nil
	}

	var walk func(spans []ExpectedSpan) error
	walk = func(spans []ExpectedSpan) error {
		for i := range spans {
			s := &spans[i]
			if err := resolve(s.Schemas); err != nil {
				return err
			}
			for j := range s.Events {
				if err := resolve(s.Events[j].Schemas); err != nil {
					return err
				}
			}
			for j := range s.Metrics {
				if err := resolve(s.Metrics[j].Schemas); err != nil {
					return err
				}
			}
			if err := walk(s.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(exp.Roots); err != nil {
		return nil, err
	}
	return defs, nil
}

// metricPool tracks which metric data points have already been claimed by
// an expected metric during one run.
type metricPool struct {
	points  []ActualMetric
	claimed []bool
}

// validateSpan validates one expected span against a pool of sibling
// candidates and recurses into its events, metrics, and children. Returns
// the result subtree and the matched span, nil when missing.
func validateSpan(exp *ExpectedSpan, pool []*ActualSpan, claimed map[*ActualSpan]bool, parentPath string, defs map[string]*semconv.Definition, metrics *metricPool) (SpanResult, *ActualSpan) {
	path := exp.Name
	if parentPath != "" {
		path = parentPath + "." + exp.Name
	}

	actual := matchSpan(exp, pool, claimed)
	if actual == nil {
		// A missing parent makes descendant matching meaningless; the
		// whole expected subtree is reported missing without further
		// matching attempts.
		return missingSpanResult(exp, path), nil
	}
	claimed[actual] = true

	result := SpanResult{Name: exp.Name, Path: path}
	result.Diffs = diffAttributes(exp.Attributes, actual.Attributes)
	result.Diffs = append(result.Diffs, diffStatus(exp.Status, actual.Status)...)
	result.Diffs = append(result.Diffs, diffException(exp.Exception, actual.Exception)...)
	result.Violations = evaluateSchemas(exp.Schemas, defs, semconv.Target{
		Attributes: actual.Attributes,
		EventNames: eventNames(actual),
	})
	result.Outcome = recordOutcome(len(result.Diffs), len(result.Violations))

	eventsClaimed := make([]bool, len(actual.Events))
	for i := range exp.Events {
		result.Events = append(result.Events, validateEvent(&exp.Events[i], actual.Events, eventsClaimed, defs))
	}

	for i := range exp.Metrics {
		result.Metrics = append(result.Metrics, validateMetric(&exp.Metrics[i], metrics, defs))
	}

	for i := range exp.Children {
		child, _ := validateSpan(&exp.Children[i], actual.Children, claimed, path, defs, metrics)
		result.Children = append(result.Children, child)
	}

	return result, actual
}

// validateEvent validates one expected event against the matched span's
// captured events.
func validateEvent(exp *ExpectedEvent, pool []ActualEvent, claimed []bool, defs map[string]*semconv.Definition) EventResult {
	result := EventResult{Name: exp.Name}

	idx := matchEvent(exp, pool, claimed)
	if idx < 0 {
		result.Outcome = FailMissing
		return result
	}
	claimed[idx] = true
	actual := &pool[idx]

	result.Diffs = diffAttributes(exp.Attributes, actual.Attributes)
	result.Violations = evaluateSchemas(exp.Schemas, defs, semconv.Target{Attributes: actual.Attributes})
	result.Outcome = recordOutcome(len(result.Diffs), len(result.Violations))
	return result
}

// validateMetric validates one expected metric against the run's metric
// pool. Metrics aggregate across spans, so the pool is global to the run
// rather than scoped to the matched span.
func validateMetric(exp *ExpectedMetric, metrics *metricPool, defs map[string]*semconv.Definition) MetricResult {
	result := MetricResult{Name: exp.Name}

	idx := matchMetric(exp, metrics.points, metrics.claimed)
	if idx < 0 {
		result.Outcome = FailMissing
		return result
	}
	metrics.claimed[idx] = true
	actual := &metrics.points[idx]

	result.Diffs = diffAttributes(exp.Attributes, actual.Attributes)
	if exp.Value != nil && actual.Value != *exp.Value {
		result.ValueDiff = &ValueDiff{Expected: *exp.Value, Actual: actual.Value}
	}
	result.Violations = evaluateSchemas(exp.Schemas, defs, semconv.Target{Attributes: actual.Attributes})

	mismatches := len(result.Diffs)
	if result.ValueDiff != nil {
		mismatches++
	}
	result.Outcome = recordOutcome(mismatches, len(result.Violations))
	return result
}

// missingSpanResult marks an expected span and its whole subtree missing.
func missingSpanResult(exp *ExpectedSpan, path string) SpanResult {
	result := SpanResult{Name: exp.Name, Path: path, Outcome: FailMissing}
	for i := range exp.Events {
		result.Events = append(result.Events, EventResult{Name: exp.Events[i].Name, Outcome: FailMissing})
	}
	for i := range exp.Metrics {
		result.Metrics = append(result.Metrics, MetricResult{Name: exp.Metrics[i].Name, Outcome: FailMissing})
	}
	for i := range exp.Children {
		childPath := path + "." + exp.Children[i].Name
		result.Children = append(result.Children, missingSpanResult(&exp.Children[i], childPath))
	}
	return result
}

// diffAttributes compares every expected attribute against the captured
// map. Extra captured attributes are never a finding: expectations are a
// required subset. Keys are visited in sorted order so repeated runs
// produce identical reports.
func diffAttributes(expected, actual AttributeMap) []AttributeDiff {
	if len(expected) == 0 {
		return nil
	}
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var diffs []AttributeDiff
	for _, k := range keys {
		want := expected[k]
		got, present := actual[k]
		if !present {
			diffs = append(diffs, AttributeDiff{Key: k, Expected: want})
			continue
		}
		if !valueEqual(want, got) {
			diffs = append(diffs, AttributeDiff{Key: k, Expected: want, Actual: got, Present: true})
		}
	}
	return diffs
}

// diffStatus compares an expected status, when declared, against the
// captured one. Description is constrained only when the expectation
// names one.
func diffStatus(exp *ExpectedStatus, actual Status) []AttributeDiff {
	if exp == nil {
		return nil
	}
	var diffs []AttributeDiff
	if exp.Code != actual.Code {
		diffs = append(diffs, AttributeDiff{Key: "status.code", Expected: exp.Code, Actual: actual.Code, Present: true})
	}
	if exp.Description != "" && exp.Description != actual.Description {
		diffs = append(diffs, AttributeDiff{Key: "status.description", Expected: exp.Description, Actual: actual.Description, Present: true})
	}
	return diffs
}

// diffException compares an expected exception, when declared, against
// the one recorded on the captured span.
func diffException(exp *ExpectedException, actual *Exception) []AttributeDiff {
	if exp == nil {
		return nil
	}
	if actual == nil {
		diffs := []AttributeDiff{{Key: "exception.type", Expected: exp.Type}}
		if exp.Message != "" {
			diffs = append(diffs, AttributeDiff{Key: "exception.message", Expected: exp.Message})
		}
		return diffs
	}
	var diffs []AttributeDiff
	if exp.Type != actual.Type {
		diffs = append(diffs, AttributeDiff{Key: "exception.type", Expected: exp.Type, Actual: actual.Type, Present: true})
	}
	if exp.Message != "" && exp.Message != actual.Message {
		diffs = append(diffs, AttributeDiff{Key: "exception.message", Expected: exp.Message, Actual: actual.Message, Present: true})
	}
	return diffs
}

// evaluateSchemas runs every constraint of every referenced schema against
// the record context and collects the violations.
func evaluateSchemas(ids []string, defs map[string]*semconv.Definition, target semconv.Target) []SchemaViolation {
	var violations []SchemaViolation
	for _, id := range ids {
		def := defs[id]
		for _, ev := range semconv.EvaluateAll(def, target) {
			if ev.Outcome != semconv.Violated {
				continue
			}
			violations = append(violations, SchemaViolation{
				Schema: id,
				Key:    ev.Constraint.Key,
				Reason: ev.Reason,
			})
		}
	}
	return violations
}

// recordOutcome classifies a matched record: attribute mismatches rank
// ahead of schema violations since they localise the defect precisely.
func recordOutcome(mismatches, violations int) Outcome {
	switch {
	case mismatches > 0:
		return FailAttributeMismatch
	case violations > 0:
		return FailSchemaViolation
	default:
		return Pass
	}
}
