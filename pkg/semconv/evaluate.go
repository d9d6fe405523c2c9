// Constraint evaluation: decides whether one record satisfies, violates,
// or is exempt from a single attribute constraint.
package semconv

import "fmt"

// Outcome is the tri-state result of evaluating a constraint.
type Outcome string

const (
	Satisfied     Outcome = "satisfied"
	Violated      Outcome = "violated"
	NotApplicable Outcome = "not-applicable"
)

// Target is the record context a constraint is evaluated against: the
// record's own attribute map and, for spans, the names of its own events.
type Target struct {
	Attributes map[string]any
	EventNames []string
}

// Evaluation is the result of checking one constraint against one record.
// Reason is populated only for violations.
type Evaluation struct {
	Constraint Constraint
	Outcome    Outcome
	Reason     string
}

// Evaluate checks a single constraint against a record. Pure function:
// no state is read or written beyond the arguments.
//
// Absence rules: only required attributes, and conditionally required
// attributes whose condition holds, violate when missing. Conditionally
// required attributes with advisory (unparsed) conditions never violate
// on absence. Recommended and opt-in attributes are informational.
// Presence rules: enum membership and value type are checked for every
// level once the attribute is present.
func Evaluate(c Constraint, t Target) Evaluation {
	if c.Condition != nil && !c.Condition.Holds(t.Attributes, t.EventNames) {
		return Evaluation{Constraint: c, Outcome: NotApplicable}
	}

	value, present := t.Attributes[c.Key]
	if !present {
		mustBePresent := c.Level == LevelRequired ||
			(c.Level == LevelConditionallyRequired && c.Condition != nil)
		if mustBePresent {
			return Evaluation{
				Constraint: c,
				Outcome:    Violated,
				Reason:     fmt.Sprintf("missing required attribute %q", c.Key),
			}
		}
		return Evaluation{Constraint: c, Outcome: NotApplicable}
	}

	if len(c.Enum) > 0 && !enumContains(c.Enum, value) {
		return Evaluation{
			Constraint: c,
			Outcome:    Violated,
			Reason:     fmt.Sprintf("value not in allowed set: %q has value %v", c.Key, value),
		}
	}

	if c.ValueType != "" && !typeMatches(c.ValueType, value) {
		return Evaluation{
			Constraint: c,
			Outcome:    Violated,
			Reason:     fmt.Sprintf("type mismatch: %q expects %s, got %T", c.Key, c.ValueType, value),
		}
	}

	return Evaluation{Constraint: c, Outcome: Satisfied}
}

// EvaluateAll evaluates every constraint of a definition against a record.
func EvaluateAll(def *Definition, t Target) []Evaluation {
	evals := make([]Evaluation, 0, len(def.Constraints))
	for _, c := range def.Constraints {
		evals = append(evals, Evaluate(c, t))
	}
	return evals
}

// enumContains reports whether value matches any enum member, with
// numeric widening so declared int members match recorded int64 values.
func enumContains(members []any, value any) bool {
	for _, m := range members {
		if scalarEqual(m, value) {
			return true
		}
	}
	return false
}

// typeMatches checks a recorded value's runtime type against a semantic
// convention type tag. Unknown tags (any, template[...]) match everything;
// int values satisfy double tags since YAML literals drop the decimal.
func typeMatches(tag string, value any) bool {
	switch tag {
	case "string":
		_, ok := value.(string)
		return ok
	case "int":
		switch value.(type) {
		case int, int32, int64:
			return true
		}
		return false
	case "double":
		switch value.(type) {
		case float32, float64, int, int32, int64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "string[]":
		return sliceOf(value, func(v any) bool { _, ok := v.(string); return ok })
	case "int[]":
		return sliceOf(value, func(v any) bool {
			switch v.(type) {
			case int, int32, int64:
				return true
			}
			return false
		})
	case "double[]":
		return sliceOf(value, func(v any) bool {
			switch v.(type) {
			case float32, float64, int, int32, int64:
				return true
			}
			return false
		})
	case "boolean[]":
		return sliceOf(value, func(v any) bool { _, ok := v.(bool); return ok })
	default:
		return true
	}
}

// sliceOf reports whether value is a slice whose elements all satisfy elem.
// Typed slices ([]string, []int64, ...) and []any are both accepted since
// capture converters may produce either.
func sliceOf(value any, elem func(any) bool) bool {
	switch s := value.(type) {
	case []any:
		for _, v := range s {
			if !elem(v) {
				return false
			}
		}
		return true
	case []string:
		for _, v := range s {
			if !elem(v) {
				return false
			}
		}
		return true
	case []int64:
		for _, v := range s {
			if !elem(v) {
				return false
			}
		}
		return true
	case []float64:
		for _, v := range s {
			if !elem(v) {
				return false
			}
		}
		return true
	case []bool:
		for _, v := range s {
			if !elem(v) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
