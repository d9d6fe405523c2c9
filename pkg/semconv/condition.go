// Condition predicates for conditionally required attributes.
// Parses the structured subset of requirement_level condition text into
// tagged predicates; anything else is advisory prose.
package semconv

import (
	"strconv"
	"strings"
)

// ConditionKind discriminates the supported predicate forms.
type ConditionKind string

const (
	// ConditionAttrEquals holds when the record's attribute Key equals Value.
	ConditionAttrEquals ConditionKind = "attr-equals"
	// ConditionEventPresent holds when the record carries an event named EventName.
	ConditionEventPresent ConditionKind = "event-present"
)

// Condition is a predicate evaluated against a single record's own context:
// its attribute map and, for spans, the names of its own events. It never
// inspects unrelated records.
type Condition struct {
	Kind      ConditionKind
	Key       string
	Value     any
	EventName string
}

// ParseCondition parses a requirement_level condition string.
// Recognised forms:
//
//	when <attribute.key> == <value>
//	when event <event.name> present
//
// Values may be double-quoted strings or bare scalars (bool, int, float,
// string). Any other text returns nil, marking the constraint advisory.
func ParseCondition(text string) *Condition {
	rest, ok := strings.CutPrefix(strings.TrimSpace(text), "when ")
	if !ok {
		return nil
	}
	rest = strings.TrimSpace(strings.TrimSuffix(rest, "."))

	if evt, ok := strings.CutPrefix(rest, "event "); ok {
		name, ok := strings.CutSuffix(evt, " present")
		if !ok {
			return nil
		}
		name = strings.TrimSpace(name)
		if name == "" || strings.ContainsAny(name, " \t") {
			return nil
		}
		return &Condition{Kind: ConditionEventPresent, EventName: name}
	}

	key, value, ok := strings.Cut(rest, "==")
	if !ok {
		return nil
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" || value == "" || strings.ContainsAny(key, " \t") {
		return nil
	}
	return &Condition{Kind: ConditionAttrEquals, Key: key, Value: parseScalar(value)}
}

// Holds evaluates the condition against a record's attributes and event names.
func (c *Condition) Holds(attrs map[string]any, eventNames []string) bool {
	switch c.Kind {
	case ConditionAttrEquals:
		v, ok := attrs[c.Key]
		return ok && scalarEqual(v, c.Value)
	case ConditionEventPresent:
		for _, name := range eventNames {
			if name == c.EventName {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// parseScalar interprets a condition value literal.
// Quoted text is a string; bare text tries bool, int, float, then string.
func parseScalar(s string) any {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// scalarEqual compares two scalar values, normalising numeric types so a
// YAML int matches an SDK int64 or float64 carrying the same number.
func scalarEqual(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return false
}

// toFloat widens any integer or float value to float64 for comparison.
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
