// Unit tests for requirement condition parsing and evaluation.
package semconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Phase 1: Parsing ---

func TestParseCondition_AttrEqualsQuotedString(t *testing.T) {
	t.Parallel()
	c := ParseCondition(`when gen_ai.operation.name == "execute_tool"`)
	require.NotNil(t, c)
	assert.Equal(t, ConditionAttrEquals, c.Kind)
	assert.Equal(t, "gen_ai.operation.name", c.Key)
	assert.Equal(t, "execute_tool", c.Value)
}

func TestParseCondition_AttrEqualsBareScalars(t *testing.T) {
	t.Parallel()
	cases := []struct {
		text string
		want any
	}{
		{"when test.count == 3", int64(3)},
		{"when test.ratio == 0.5", 0.5},
		{"when test.enabled == true", true},
		{"when test.mode == streaming", "streaming"},
	}
	for _, tc := range cases {
		c := ParseCondition(tc.text)
		require.NotNil(t, c, "parse %q", tc.text)
		assert.Equal(t, ConditionAttrEquals, c.Kind)
		assert.Equal(t, tc.want, c.Value, "value of %q", tc.text)
	}
}

func TestParseCondition_TrailingPeriodTrimmed(t *testing.T) {
	t.Parallel()
	c := ParseCondition(`when gen_ai.operation.name == "chat".`)
	require.NotNil(t, c)
	assert.Equal(t, "chat", c.Value)
}

func TestParseCondition_EventPresent(t *testing.T) {
	t.Parallel()
	c := ParseCondition("when event gen_ai.choice present")
	require.NotNil(t, c)
	assert.Equal(t, ConditionEventPresent, c.Kind)
	assert.Equal(t, "gen_ai.choice", c.EventName)
	assert.Empty(t, c.Key)
}

func TestParseCondition_AdvisoryProse(t *testing.T) {
	t.Parallel()
	prose := []string{
		"if and only if the operation fails.",
		"If using a non-default port.",
		"Required when the request succeeds.",
		"when the model reports usage",       // key contains spaces
		"when event the choice event present", // event name contains spaces
		"when test.key ==",                   // missing value
		"when event  present",                // missing event name
		"",
	}
	for _, text := range prose {
		assert.Nil(t, ParseCondition(text), "expected advisory for %q", text)
	}
}

// --- Phase 2: Evaluation ---

func TestCondition_Holds_AttrEquals(t *testing.T) {
	t.Parallel()
	c := &Condition{Kind: ConditionAttrEquals, Key: "gen_ai.operation.name", Value: "execute_tool"}

	assert.True(t, c.Holds(map[string]any{"gen_ai.operation.name": "execute_tool"}, nil))
	assert.False(t, c.Holds(map[string]any{"gen_ai.operation.name": "chat"}, nil))
	assert.False(t, c.Holds(map[string]any{}, nil))
	assert.False(t, c.Holds(nil, nil))
}

func TestCondition_Holds_NumericWidening(t *testing.T) {
	t.Parallel()
	c := &Condition{Kind: ConditionAttrEquals, Key: "test.count", Value: int64(3)}

	// SDK attribute values arrive as int64; YAML literals may parse as int.
	assert.True(t, c.Holds(map[string]any{"test.count": int64(3)}, nil))
	assert.True(t, c.Holds(map[string]any{"test.count": 3}, nil))
	assert.True(t, c.Holds(map[string]any{"test.count": 3.0}, nil))
	assert.False(t, c.Holds(map[string]any{"test.count": 4}, nil))
	assert.False(t, c.Holds(map[string]any{"test.count": "3"}, nil))
}

func TestCondition_Holds_EventPresent(t *testing.T) {
	t.Parallel()
	c := &Condition{Kind: ConditionEventPresent, EventName: "gen_ai.choice"}

	assert.True(t, c.Holds(nil, []string{"gen_ai.user.message", "gen_ai.choice"}))
	assert.False(t, c.Holds(nil, []string{"gen_ai.user.message"}))
	assert.False(t, c.Holds(nil, nil))
}
