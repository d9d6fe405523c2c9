// Schema definitions derived from semantic convention groups.
// A Definition is the immutable constraint view the validator consumes.
package semconv

// Level is the normalised requirement level of an attribute constraint.
type Level string

const (
	LevelRequired              Level = "required"
	LevelRecommended           Level = "recommended"
	LevelConditionallyRequired Level = "conditionally-required"
	LevelOptIn                 Level = "opt-in"
)

// Kind identifies which record kind a schema definition applies to.
type Kind string

const (
	KindSpan           Kind = "span"
	KindEvent          Kind = "event"
	KindMetric         Kind = "metric"
	KindAttributeGroup Kind = "attribute_group"
)

// Constraint is a single attribute requirement within a schema definition.
// Enum and ValueType are empty when the source attribute declares neither.
// Condition is nil for unconditional constraints and for conditionally
// required attributes whose condition text is advisory prose.
type Constraint struct {
	Key       string
	Level     Level
	Condition *Condition
	Enum      []any
	ValueType string
}

// Conditional reports whether the constraint only applies when its
// condition holds. A conditionally required constraint without a parsed
// condition is advisory and can never be violated.
func (c Constraint) Conditional() bool {
	return c.Level == LevelConditionallyRequired
}

// Definition is an immutable, validator-ready view of one schema group:
// the group's identifier, the record kind it constrains, and the ordered
// attribute constraints derived from its resolved attributes.
type Definition struct {
	ID          string
	Kind        Kind
	Record      string // span name hint, event name, or metric name when declared
	Constraints []Constraint
}

// definitionFor derives a Definition from a resolved group. Deprecated
// attributes are skipped: a schema must not demand what the conventions
// have retired.
func definitionFor(g *Group) *Definition {
	def := &Definition{
		ID:          g.ID,
		Kind:        g.Kind(),
		Constraints: make([]Constraint, 0, len(g.Attributes)),
	}

	switch def.Kind {
	case KindEvent:
		def.Record = g.Name
	case KindMetric:
		def.Record = g.MetricName
	}

	for i := range g.Attributes {
		attr := &g.Attributes[i]
		if attr.ID == "" || attr.Deprecated != nil {
			continue
		}

		c := Constraint{
			Key:       attr.ID,
			Level:     attr.Level(),
			Enum:      attr.EnumValues(),
			ValueType: attr.Type.Value,
		}
		if c.ValueType == "enum" {
			// Enum membership already pins the value set; the runtime type
			// check would be redundant and members may mix types.
			c.ValueType = ""
		}
		if c.Level == LevelConditionallyRequired {
			c.Condition = ParseCondition(attr.RequirementLevel.Explanation)
		}
		def.Constraints = append(def.Constraints, c)
	}

	return def
}
