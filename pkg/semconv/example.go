// Representative value selection: picks a plausible concrete value for an
// attribute straight from its convention definition, used when scaffolding
// scenarios and printing schema summaries.
package semconv

import (
	"errors"
	"fmt"
)

// ExampleValue picks a representative value for the attribute. Enums yield
// their first current member, scalars their first declared example with a
// per-type fallback. Template and array types have no single value and
// return an error.
func ExampleValue(attr *Attribute) (any, error) {
	switch typ := attr.Type.Value; typ {
	case "enum":
		return enumExample(attr)
	case "boolean":
		return true, nil
	case "string":
		return scalarExample(attr, "unknown"), nil
	case "int":
		return scalarExample(attr, int64(0)), nil
	case "double":
		return scalarExample(attr, 0.0), nil
	case "":
		return nil, errors.New("no type information")
	default:
		return nil, fmt.Errorf("unsupported type: %s", typ)
	}
}

// ExampleValues derives values for every usable attribute of a group,
// keyed by attribute ID. Deprecated attributes, unresolved refs, and types
// without a representative value are left out.
func ExampleValues(group *Group) map[string]any {
	vals := make(map[string]any)
	for _, attr := range group.Attributes {
		if attr.Deprecated != nil || attr.ID == "" {
			continue
		}
		v, err := ExampleValue(&attr)
		if err != nil {
			continue
		}
		vals[attr.ID] = v
	}
	return vals
}

// enumExample prefers the first member that is still current, settling for
// the first member at all when every one is deprecated.
func enumExample(attr *Attribute) (any, error) {
	members := attr.Type.Members
	if len(members) == 0 {
		return nil, errors.New("enum with no members")
	}
	for _, m := range members {
		if m.Deprecated == nil {
			return m.Value, nil
		}
	}
	return members[0].Value, nil
}

// scalarExample picks the first scalar example, skipping the nested lists
// that array-typed declarations put in the examples block.
func scalarExample(attr *Attribute, fallback any) any {
	for _, v := range attr.Examples.Values {
		if _, nested := v.([]any); nested {
			continue
		}
		return v
	}
	return fallback
}
