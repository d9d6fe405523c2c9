// Property-based tests for tree validation.
// Covers the mirror property (identical trees pass), removal detection,
// sibling order insensitivity, and report determinism.
package validate

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

var (
	spanNames = []string{
		"chat gpt-4o",
		"execute_tool get_weather",
		"execute_tool news_api_lookup",
		"embeddings text-embedding-3-small",
	}
	eventNamePool = []string{
		"gen_ai.user.message",
		"gen_ai.assistant.message",
		"gen_ai.choice",
	}
	attrPool = map[string][]any{
		"gen_ai.system":             {"anthropic", "openai", "ollama"},
		"gen_ai.operation.name":     {"chat", "execute_tool", "embeddings"},
		"gen_ai.tool.call.id":       {"call_abc123", "call_xyz", "call_42"},
		"gen_ai.usage.input_tokens": {25, 100, 2048},
	}
	attrKeys = []string{
		"gen_ai.system", "gen_ai.operation.name", "gen_ai.tool.call.id", "gen_ai.usage.input_tokens",
	}
)

// genAttrs draws a random attribute subset from the pool.
func genAttrs(t *rapid.T, label string) AttributeMap {
	attrs := AttributeMap{}
	n := rapid.IntRange(0, 3).Draw(t, label+"-nattrs")
	keys := rapid.Permutation(attrKeys).Draw(t, label+"-keys")
	for _, k := range keys[:n] {
		attrs[k] = rapid.SampledFrom(attrPool[k]).Draw(t, label+"-"+k)
	}
	return attrs
}

// genExpectedSpan draws a random expected span with up to two levels of
// children below it.
func genExpectedSpan(t *rapid.T, label string, depth int) ExpectedSpan {
	span := ExpectedSpan{
		Name:       rapid.SampledFrom(spanNames).Draw(t, label+"-name"),
		Attributes: genAttrs(t, label),
	}

	nEvents := rapid.IntRange(0, 2).Draw(t, label+"-nevents")
	for i := range nEvents {
		span.Events = append(span.Events, ExpectedEvent{
			Name:       rapid.SampledFrom(eventNamePool).Draw(t, fmt.Sprintf("%s-event%d", label, i)),
			Attributes: genAttrs(t, fmt.Sprintf("%s-event%d", label, i)),
		})
	}

	nMetrics := rapid.IntRange(0, 2).Draw(t, label+"-nmetrics")
	for i := range nMetrics {
		val := float64(rapid.IntRange(1, 500).Draw(t, fmt.Sprintf("%s-metric%d-value", label, i)))
		span.Metrics = append(span.Metrics, ExpectedMetric{
			Name:       "gen_ai.client.token.usage",
			Attributes: genAttrs(t, fmt.Sprintf("%s-metric%d", label, i)),
			Value:      &val,
		})
	}

	if depth < 2 {
		nChildren := rapid.IntRange(0, 2).Draw(t, label+"-nchildren")
		for i := range nChildren {
			span.Children = append(span.Children, genExpectedSpan(t, fmt.Sprintf("%s-c%d", label, i), depth+1))
		}
	}
	return span
}

// mirrorTelemetry builds a capture satisfying the expectation exactly.
func mirrorTelemetry(exp *Expectation) *Telemetry {
	tel := &Telemetry{}
	order := 0
	for i := range exp.Roots {
		tel.Roots = append(tel.Roots, mirrorSpan(&exp.Roots[i], tel, &order))
	}
	return tel
}

func mirrorSpan(exp *ExpectedSpan, tel *Telemetry, order *int) *ActualSpan {
	s := &ActualSpan{
		Name:       exp.Name,
		Attributes: copyAttrs(exp.Attributes),
		StartOrder: *order,
	}
	*order++
	for i, e := range exp.Events {
		s.Events = append(s.Events, ActualEvent{Name: e.Name, Attributes: copyAttrs(e.Attributes), Order: i})
	}
	for _, m := range exp.Metrics {
		tel.Metrics = append(tel.Metrics, ActualMetric{
			Name:       m.Name,
			Attributes: copyAttrs(m.Attributes),
			Value:      *m.Value,
			Order:      len(tel.Metrics),
		})
	}
	for i := range exp.Children {
		s.Children = append(s.Children, mirrorSpan(&exp.Children[i], tel, order))
	}
	return s
}

func copyAttrs(attrs AttributeMap) AttributeMap {
	out := make(AttributeMap, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// collectSpans flattens the actual forest into a slice of (parent, span).
func collectSpans(tel *Telemetry) []spanRef {
	var refs []spanRef
	var walk func(parent *ActualSpan, spans []*ActualSpan)
	walk = func(parent *ActualSpan, spans []*ActualSpan) {
		for _, s := range spans {
			refs = append(refs, spanRef{parent: parent, span: s})
			walk(s, s.Children)
		}
	}
	walk(nil, tel.Roots)
	return refs
}

type spanRef struct {
	parent *ActualSpan
	span   *ActualSpan
}

// removeSpan detaches one span (and its subtree) from the capture.
func removeSpan(tel *Telemetry, ref spanRef) {
	pool := tel.Roots
	if ref.parent != nil {
		pool = ref.parent.Children
	}
	filtered := make([]*ActualSpan, 0, len(pool)-1)
	for _, s := range pool {
		if s != ref.span {
			filtered = append(filtered, s)
		}
	}
	if ref.parent != nil {
		ref.parent.Children = filtered
	} else {
		tel.Roots = filtered
	}
}

func TestProperty_Validate_MirrorPasses(t *testing.T) {
	v := New(testRegistry(t))
	rapid.Check(t, func(t *rapid.T) {
		exp := &Expectation{Roots: []ExpectedSpan{genExpectedSpan(t, "root", 0)}}
		tel := mirrorTelemetry(exp)

		report, err := v.Validate(exp, tel)
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if !report.IsPass() {
			for f := range report.Flatten() {
				if f.Outcome != Pass {
					t.Errorf("%s: %s %v", f.Path, f.Outcome, f.Reasons)
				}
			}
			t.Fatal("mirror capture must pass")
		}
	})
}

func TestProperty_Validate_RemovalDetected(t *testing.T) {
	v := New(testRegistry(t))
	rapid.Check(t, func(t *rapid.T) {
		exp := &Expectation{Roots: []ExpectedSpan{genExpectedSpan(t, "root", 0)}}
		tel := mirrorTelemetry(exp)

		refs := collectSpans(tel)
		victim := rapid.IntRange(0, len(refs)-1).Draw(t, "victim")
		removeSpan(tel, refs[victim])

		report, err := v.Validate(exp, tel)
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if report.IsPass() {
			t.Fatal("report passed despite a removed span")
		}
		missing := false
		for f := range report.Flatten() {
			if f.Outcome == FailMissing {
				missing = true
				break
			}
		}
		if !missing {
			t.Fatal("expected at least one fail-missing finding")
		}
	})
}

func TestProperty_Validate_SiblingOrderIrrelevant(t *testing.T) {
	v := New(testRegistry(t))
	rapid.Check(t, func(t *rapid.T) {
		exp := &Expectation{Roots: []ExpectedSpan{genExpectedSpan(t, "root", 0)}}
		tel := mirrorTelemetry(exp)

		// Shuffle every sibling list in the capture.
		var shuffle func(spans []*ActualSpan) []*ActualSpan
		shuffle = func(spans []*ActualSpan) []*ActualSpan {
			if len(spans) == 0 {
				return spans
			}
			perm := rapid.Permutation(spans).Draw(t, fmt.Sprintf("perm-%d", len(spans)))
			for _, s := range perm {
				s.Children = shuffle(s.Children)
			}
			return perm
		}
		tel.Roots = shuffle(tel.Roots)

		report, err := v.Validate(exp, tel)
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if !report.IsPass() {
			t.Fatal("sibling order must not affect the outcome")
		}
	})
}

func TestProperty_Validate_Deterministic(t *testing.T) {
	v := New(testRegistry(t))
	rapid.Check(t, func(t *rapid.T) {
		exp := &Expectation{Roots: []ExpectedSpan{genExpectedSpan(t, "root", 0)}}
		tel := mirrorTelemetry(exp)

		// Mutate roughly half the runs so determinism also covers failing
		// reports.
		if rapid.Bool().Draw(t, "mutate") && len(tel.Roots[0].Attributes) > 0 {
			for k := range tel.Roots[0].Attributes {
				tel.Roots[0].Attributes[k] = "mutated"
				break
			}
		}

		first, err := v.Validate(exp, tel)
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		second, err := v.Validate(exp, tel)
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}

		var a, b []Finding
		for f := range first.Flatten() {
			a = append(a, f)
		}
		for f := range second.Flatten() {
			b = append(b, f)
		}
		if len(a) != len(b) {
			t.Fatalf("finding counts differ: %d vs %d", len(a), len(b))
		}
		for i := range a {
			if a[i].Path != b[i].Path || a[i].Outcome != b[i].Outcome {
				t.Fatalf("finding %d differs: %+v vs %+v", i, a[i], b[i])
			}
			if len(a[i].Reasons) != len(b[i].Reasons) {
				t.Fatalf("finding %d reasons differ: %v vs %v", i, a[i].Reasons, b[i].Reasons)
			}
			for j := range a[i].Reasons {
				if a[i].Reasons[j] != b[i].Reasons[j] {
					t.Fatalf("finding %d reason %d differs: %q vs %q", i, j, a[i].Reasons[j], b[i].Reasons[j])
				}
			}
		}
	})
}
