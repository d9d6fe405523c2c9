// Record matching: selects the most plausible captured counterpart for an
// expected span, event, or metric. Name equality is the primary
// discriminator; among same-named candidates the one agreeing on the most
// expected attribute values wins, with capture order breaking ties. A best
// candidate is returned even at zero agreement so the caller can report
// attribute-level diffs instead of a bare missing signal.
package validate

// matchSpan picks the best unclaimed candidate for an expected span.
// Returns nil when no unclaimed candidate shares the name.
func matchSpan(exp *ExpectedSpan, pool []*ActualSpan, claimed map[*ActualSpan]bool) *ActualSpan {
	var best *ActualSpan
	bestScore := -1
	for _, cand := range pool {
		if cand.Name != exp.Name || claimed[cand] {
			continue
		}
		score := agreementScore(exp.Attributes, cand.Attributes)
		if score > bestScore || (score == bestScore && best != nil && cand.StartOrder < best.StartOrder) {
			best = cand
			bestScore = score
		}
	}
	return best
}

// matchEvent picks the best unclaimed candidate for an expected event.
// Returns the candidate's index, or -1 when no unclaimed candidate shares
// the name.
func matchEvent(exp *ExpectedEvent, pool []ActualEvent, claimed []bool) int {
	best := -1
	bestScore := -1
	for i := range pool {
		if pool[i].Name != exp.Name || claimed[i] {
			continue
		}
		score := agreementScore(exp.Attributes, pool[i].Attributes)
		if score > bestScore || (score == bestScore && best >= 0 && pool[i].Order < pool[best].Order) {
			best = i
			bestScore = score
		}
	}
	return best
}

// matchMetric picks the best unclaimed candidate for an expected metric.
// Candidates must share the name and carry every expected attribute key;
// data points are typically disambiguated purely by attributes. Agreement
// on the expected numeric value counts toward the score so that
// same-attribute points with different values stay distinguishable.
// Returns the candidate's index, or -1 when no candidate qualifies.
func matchMetric(exp *ExpectedMetric, pool []ActualMetric, claimed []bool) int {
	best := -1
	bestScore := -1
	for i := range pool {
		if pool[i].Name != exp.Name || claimed[i] {
			continue
		}
		if !hasAllKeys(exp.Attributes, pool[i].Attributes) {
			continue
		}
		score := agreementScore(exp.Attributes, pool[i].Attributes)
		if exp.Value != nil && pool[i].Value == *exp.Value {
			score++
		}
		if score > bestScore || (score == bestScore && best >= 0 && pool[i].Order < pool[best].Order) {
			best = i
			bestScore = score
		}
	}
	return best
}

// agreementScore counts expected attribute keys whose captured values agree.
func agreementScore(expected, actual AttributeMap) int {
	score := 0
	for k, v := range expected {
		if av, ok := actual[k]; ok && valueEqual(v, av) {
			score++
		}
	}
	return score
}

// hasAllKeys reports whether every expected key is present in actual.
func hasAllKeys(expected, actual AttributeMap) bool {
	for k := range expected {
		if _, ok := actual[k]; !ok {
			return false
		}
	}
	return true
}

// valueEqual compares an expected attribute value against a captured one.
// Numeric types are widened before comparison since YAML literals parse as
// int while the SDK records int64 or float64. Sequences compare
// element-wise and nested maps compare key-wise.
func valueEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case map[string]any:
		bv, ok := toMap(b)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			ov, present := bv[k]
			if !present || !valueEqual(v, ov) {
				return false
			}
		}
		return true
	case AttributeMap:
		return valueEqual(map[string]any(av), b)
	case nil:
		return b == nil
	}

	as, aok := toSlice(a)
	bs, bok := toSlice(b)
	if aok && bok {
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !valueEqual(as[i], bs[i]) {
				return false
			}
		}
		return true
	}

	return a == b
}

// toFloat widens any integer or float value to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// toMap normalises nested mapping values to map[string]any.
func toMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case AttributeMap:
		return m, true
	default:
		return nil, false
	}
}

// toSlice normalises sequence values to []any. Capture converters produce
// typed slices while YAML parsing produces []any.
func toSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []int:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []int64:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []float64:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []bool:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	default:
		return nil, false
	}
}
