// Tests for representative value selection, ending with checks against the
// embedded conventions.
package semconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExampleValueScalars(t *testing.T) {
	tests := []struct {
		name string
		attr Attribute
		want any
	}{
		{
			name: "string takes the first example",
			attr: Attribute{
				Type:     AttributeType{Value: "string"},
				Examples: Examples{Values: []any{"claude-3-opus-20240229", "gpt-4o"}},
			},
			want: "claude-3-opus-20240229",
		},
		{
			name: "string without examples falls back",
			attr: Attribute{Type: AttributeType{Value: "string"}},
			want: "unknown",
		},
		{
			name: "nested example lists are skipped",
			attr: Attribute{
				Type: AttributeType{Value: "string"},
				Examples: Examples{Values: []any{
					[]any{"stop", "length"},
					"scalar",
				}},
			},
			want: "scalar",
		},
		{
			name: "int takes the first example",
			attr: Attribute{
				Type:     AttributeType{Value: "int"},
				Examples: Examples{Values: []any{100}},
			},
			want: 100,
		},
		{
			name: "int without examples falls back to zero",
			attr: Attribute{Type: AttributeType{Value: "int"}},
			want: int64(0),
		},
		{
			name: "double takes the first example",
			attr: Attribute{
				Type:     AttributeType{Value: "double"},
				Examples: Examples{Values: []any{0.7}},
			},
			want: 0.7,
		},
		{
			name: "double without examples falls back to zero",
			attr: Attribute{Type: AttributeType{Value: "double"}},
			want: float64(0),
		},
		{
			name: "boolean is always true",
			attr: Attribute{Type: AttributeType{Value: "boolean"}},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExampleValue(&tt.attr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExampleValueEnum(t *testing.T) {
	tests := []struct {
		name    string
		members []EnumMember
		want    any
	}{
		{
			name: "first member wins",
			members: []EnumMember{
				{ID: "chat", Value: "chat", Stability: "experimental"},
				{ID: "embeddings", Value: "embeddings", Stability: "experimental"},
			},
			want: "chat",
		},
		{
			name: "deprecated members are passed over",
			members: []EnumMember{
				{ID: "old", Value: "old", Deprecated: "Use chat instead"},
				{ID: "chat", Value: "chat", Stability: "experimental"},
			},
			want: "chat",
		},
		{
			name: "fully deprecated enums still yield a value",
			members: []EnumMember{
				{ID: "old1", Value: "old1", Deprecated: "removed"},
				{ID: "old2", Value: "old2", Deprecated: "removed"},
			},
			want: "old1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr := &Attribute{Type: AttributeType{Value: "enum", Members: tt.members}}
			got, err := ExampleValue(attr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExampleValueEnumNoMembers(t *testing.T) {
	_, err := ExampleValue(&Attribute{Type: AttributeType{Value: "enum"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enum with no members")
}

func TestExampleValueUnsupported(t *testing.T) {
	for _, typ := range []string{"template[string]", "string[]", "int[]"} {
		_, err := ExampleValue(&Attribute{Type: AttributeType{Value: typ}})
		require.Error(t, err, "type %q", typ)
		assert.Contains(t, err.Error(), "unsupported type")
	}

	_, err := ExampleValue(&Attribute{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no type information")
}

func TestExampleValuesGroup(t *testing.T) {
	group := &Group{
		Attributes: []Attribute{
			{
				ID:       "test.model",
				Type:     AttributeType{Value: "string"},
				Examples: Examples{Values: []any{"gpt-4o"}},
			},
			{
				ID:       "test.tokens",
				Type:     AttributeType{Value: "int"},
				Examples: Examples{Values: []any{25}},
			},
			{
				ID:         "test.old",
				Type:       AttributeType{Value: "string"},
				Deprecated: "Use test.model instead",
			},
			{
				ID:   "test.reasons",
				Type: AttributeType{Value: "string[]"},
			},
		},
	}
	vals := ExampleValues(group)
	assert.Equal(t, map[string]any{
		"test.model":  "gpt-4o",
		"test.tokens": 25,
	}, vals, "deprecated and array attributes must not appear")
}

func TestExampleValuesEmptyGroup(t *testing.T) {
	vals := ExampleValues(&Group{})
	require.NotNil(t, vals)
	assert.Empty(t, vals)
}

func TestExampleValueEmbeddedOperationName(t *testing.T) {
	reg, err := LoadEmbedded()
	require.NoError(t, err)

	attr := reg.Attribute("gen_ai.operation.name")
	require.NotNil(t, attr)

	got, err := ExampleValue(attr)
	require.NoError(t, err)
	assert.Equal(t, "chat", got)
}

func TestExampleValuesEmbeddedRegistry(t *testing.T) {
	reg, err := LoadEmbedded()
	require.NoError(t, err)

	group := reg.Group("registry.gen_ai")
	require.NotNil(t, group)

	vals := ExampleValues(group)
	assert.Contains(t, vals, "gen_ai.request.model")
	assert.Equal(t, "anthropic", vals["gen_ai.system"])
}
