// Package semconv reads OpenTelemetry semantic convention model files,
// indexes the groups and attributes they declare, and evaluates attribute
// constraints derived from them.
package semconv

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Group is one semantic convention group: an attribute registry entry, a
// span, an event, or a metric.
type Group struct {
	ID          string      `yaml:"id"`
	Type        string      `yaml:"type"`
	DisplayName string      `yaml:"display_name"`
	Brief       string      `yaml:"brief"`
	Note        string      `yaml:"note"`
	Stability   string      `yaml:"stability"`
	Extends     string      `yaml:"extends"`
	SpanKind    string      `yaml:"span_kind"`
	MetricName  string      `yaml:"metric_name"`
	Instrument  string      `yaml:"instrument"`
	Unit        string      `yaml:"unit"`
	Name        string      `yaml:"name"`
	Attributes  []Attribute `yaml:"attributes"`

	domain string // taken from the model directory name, never serialised
}

// Kind maps the group's type to the record kind it describes.
func (g *Group) Kind() Kind {
	switch g.Type {
	case "span":
		return KindSpan
	case "event":
		return KindEvent
	case "metric":
		return KindMetric
	default:
		return KindAttributeGroup
	}
}

// Attribute is one attribute declaration within a group. An inline
// declaration carries an ID and a type; a reference carries only Ref plus
// local overrides, and is completed during registry construction.
type Attribute struct {
	ID               string           `yaml:"id"`
	Type             AttributeType    `yaml:"type"`
	Brief            string           `yaml:"brief"`
	Note             string           `yaml:"note"`
	Stability        string           `yaml:"stability"`
	Examples         Examples         `yaml:"examples"`
	Deprecated       any              `yaml:"deprecated"`
	Ref              string           `yaml:"ref"`
	RequirementLevel RequirementLevel `yaml:"requirement_level"`
}

// Level returns the attribute's normalised requirement level. An absent
// requirement_level means recommended, matching the upstream convention.
func (a *Attribute) Level() Level {
	switch a.RequirementLevel.Level {
	case "required":
		return LevelRequired
	case "conditionally_required":
		return LevelConditionallyRequired
	case "opt_in":
		return LevelOptIn
	default:
		return LevelRecommended
	}
}

// EnumValues lists the permitted values of an enum attribute, nil for any
// other type.
func (a *Attribute) EnumValues() []any {
	if a.Type.Value != "enum" {
		return nil
	}
	values := make([]any, 0, len(a.Type.Members))
	for _, m := range a.Type.Members {
		values = append(values, m.Value)
	}
	return values
}

// AttributeType is either a scalar type name (string, int, boolean,
// double, slices, templates) in Value, or an enum: Value is "enum" and
// Members holds the allowed values.
type AttributeType struct {
	Value   string
	Members []EnumMember
}

// UnmarshalYAML accepts the type name form and the enum members form.
func (t *AttributeType) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		return value.Decode(&t.Value)
	case yaml.MappingNode:
		var enum struct {
			Members []EnumMember `yaml:"members"`
		}
		if err := value.Decode(&enum); err != nil {
			return err
		}
		t.Value = "enum"
		t.Members = enum.Members
		return nil
	default:
		return fmt.Errorf("line %d: attribute type must be a type name or an enum mapping", value.Line)
	}
}

// EnumMember is one allowed value of an enum attribute type.
type EnumMember struct {
	ID         string `yaml:"id"`
	Value      any    `yaml:"value"`
	Brief      string `yaml:"brief"`
	Stability  string `yaml:"stability"`
	Note       string `yaml:"note"`
	Deprecated any    `yaml:"deprecated"`
}

// RequirementLevel holds the declared level. Plain levels (required,
// recommended, opt_in) fill Level only. The conditional form is a
// single-entry mapping; its key becomes Level and its text becomes
// Explanation, which ParseCondition may later turn into a predicate.
type RequirementLevel struct {
	Level       string
	Explanation string
}

// UnmarshalYAML accepts both the scalar and the conditional mapping form.
func (r *RequirementLevel) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		return value.Decode(&r.Level)
	case yaml.MappingNode:
		if len(value.Content) < 2 {
			return fmt.Errorf("line %d: requirement level mapping needs an entry", value.Line)
		}
		if err := value.Content[0].Decode(&r.Level); err != nil {
			return err
		}
		return value.Content[1].Decode(&r.Explanation)
	default:
		return fmt.Errorf("line %d: requirement level must be a name or a mapping", value.Line)
	}
}

// Examples holds an attribute's declared example values. Upstream files
// write a bare scalar, a sequence, or a sequence of sequences for array
// types; all forms land in Values.
type Examples struct {
	Values []any
}

// UnmarshalYAML normalises the scalar form to a one-element list.
func (e *Examples) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		return value.Decode(&e.Values)
	}
	var single any
	if err := value.Decode(&single); err != nil {
		return err
	}
	e.Values = []any{single}
	return nil
}

// First returns the leading example value, nil when none are declared.
func (e Examples) First() any {
	if len(e.Values) == 0 {
		return nil
	}
	return e.Values[0]
}
