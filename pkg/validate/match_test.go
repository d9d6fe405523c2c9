// Unit tests for record matching and attribute value comparison.
package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Phase 1: Span Matching ---

func TestMatchSpan_NameIsPrimaryDiscriminator(t *testing.T) {
	t.Parallel()
	pool := []*ActualSpan{
		{Name: "embeddings text-embedding-3-small", StartOrder: 0},
		{Name: "chat gpt-4o", StartOrder: 1},
	}
	exp := &ExpectedSpan{Name: "chat gpt-4o"}

	got := matchSpan(exp, pool, map[*ActualSpan]bool{})
	require.NotNil(t, got)
	assert.Equal(t, "chat gpt-4o", got.Name)
}

func TestMatchSpan_NoNameMatch(t *testing.T) {
	t.Parallel()
	pool := []*ActualSpan{{Name: "chat gpt-4o", StartOrder: 0}}
	exp := &ExpectedSpan{Name: "embeddings text-embedding-3-small"}

	assert.Nil(t, matchSpan(exp, pool, map[*ActualSpan]bool{}))
}

func TestMatchSpan_ScoresByAttributeAgreement(t *testing.T) {
	t.Parallel()
	pool := []*ActualSpan{
		{
			Name:       "execute_tool get_weather",
			Attributes: AttributeMap{"gen_ai.tool.call.id": "call_xyz"},
			StartOrder: 0,
		},
		{
			Name:       "execute_tool get_weather",
			Attributes: AttributeMap{"gen_ai.tool.call.id": "call_abc123"},
			StartOrder: 1,
		},
	}
	exp := &ExpectedSpan{
		Name:       "execute_tool get_weather",
		Attributes: AttributeMap{"gen_ai.tool.call.id": "call_abc123"},
	}

	got := matchSpan(exp, pool, map[*ActualSpan]bool{})
	require.NotNil(t, got)
	assert.Equal(t, 1, got.StartOrder, "higher-agreement candidate wins over earlier capture order")
}

func TestMatchSpan_TieBreaksByCaptureOrder(t *testing.T) {
	t.Parallel()
	pool := []*ActualSpan{
		{Name: "chat gpt-4o", Attributes: AttributeMap{"gen_ai.system": "openai"}, StartOrder: 7},
		{Name: "chat gpt-4o", Attributes: AttributeMap{"gen_ai.system": "openai"}, StartOrder: 2},
	}
	exp := &ExpectedSpan{Name: "chat gpt-4o", Attributes: AttributeMap{"gen_ai.system": "openai"}}

	got := matchSpan(exp, pool, map[*ActualSpan]bool{})
	require.NotNil(t, got)
	assert.Equal(t, 2, got.StartOrder)
}

func TestMatchSpan_NearMissStillSelected(t *testing.T) {
	t.Parallel()
	// Zero agreeing attributes must still produce a candidate so the
	// caller can report diffs instead of a bare missing signal.
	pool := []*ActualSpan{
		{Name: "chat gpt-4o", Attributes: AttributeMap{"gen_ai.system": "anthropic"}, StartOrder: 0},
	}
	exp := &ExpectedSpan{Name: "chat gpt-4o", Attributes: AttributeMap{"gen_ai.system": "openai"}}

	got := matchSpan(exp, pool, map[*ActualSpan]bool{})
	require.NotNil(t, got)
}

func TestMatchSpan_SkipsClaimed(t *testing.T) {
	t.Parallel()
	first := &ActualSpan{Name: "chat gpt-4o", StartOrder: 0}
	second := &ActualSpan{Name: "chat gpt-4o", StartOrder: 1}
	pool := []*ActualSpan{first, second}
	exp := &ExpectedSpan{Name: "chat gpt-4o"}

	claimed := map[*ActualSpan]bool{first: true}
	got := matchSpan(exp, pool, claimed)
	require.NotNil(t, got)
	assert.Same(t, second, got)

	claimed[second] = true
	assert.Nil(t, matchSpan(exp, pool, claimed))
}

// --- Phase 2: Event Matching ---

func TestMatchEvent_ByNameAndAttributes(t *testing.T) {
	t.Parallel()
	pool := []ActualEvent{
		{Name: "gen_ai.user.message", Attributes: AttributeMap{"gen_ai.system": "openai"}, Order: 0},
		{Name: "gen_ai.choice", Attributes: AttributeMap{"gen_ai.system": "openai"}, Order: 1},
	}
	exp := &ExpectedEvent{Name: "gen_ai.choice"}

	idx := matchEvent(exp, pool, make([]bool, len(pool)))
	require.Equal(t, 1, idx)

	missing := &ExpectedEvent{Name: "gen_ai.tool.message"}
	assert.Equal(t, -1, matchEvent(missing, pool, make([]bool, len(pool))))
}

// --- Phase 3: Metric Matching ---

func TestMatchMetric_RequiresAllExpectedKeys(t *testing.T) {
	t.Parallel()
	pool := []ActualMetric{
		{Name: "gen_ai.client.token.usage", Attributes: AttributeMap{"gen_ai.system": "openai"}, Value: 25, Order: 0},
	}
	exp := &ExpectedMetric{
		Name:       "gen_ai.client.token.usage",
		Attributes: AttributeMap{"gen_ai.token.type": "input"},
	}

	assert.Equal(t, -1, matchMetric(exp, pool, make([]bool, len(pool))),
		"candidates lacking an expected attribute key never qualify")
}

func TestMatchMetric_DisambiguatesByAttributeValue(t *testing.T) {
	t.Parallel()
	pool := []ActualMetric{
		{Name: "gen_ai.client.token.usage", Attributes: AttributeMap{"gen_ai.token.type": "input"}, Value: 25, Order: 0},
		{Name: "gen_ai.client.token.usage", Attributes: AttributeMap{"gen_ai.token.type": "output"}, Value: 35, Order: 1},
	}

	input := &ExpectedMetric{
		Name:       "gen_ai.client.token.usage",
		Attributes: AttributeMap{"gen_ai.token.type": "input"},
	}
	idx := matchMetric(input, pool, make([]bool, len(pool)))
	require.Equal(t, 0, idx)

	output := &ExpectedMetric{
		Name:       "gen_ai.client.token.usage",
		Attributes: AttributeMap{"gen_ai.token.type": "output"},
	}
	idx = matchMetric(output, pool, make([]bool, len(pool)))
	require.Equal(t, 1, idx)
}

func TestMatchMetric_ValueAgreementDrivesSelection(t *testing.T) {
	t.Parallel()
	// Two points with identical attributes differ only in value; expecting
	// 35 must select the second, not fall back to capture order.
	pool := []ActualMetric{
		{Name: "gen_ai.client.token.usage", Attributes: AttributeMap{"gen_ai.token.type": "input"}, Value: 25, Order: 0},
		{Name: "gen_ai.client.token.usage", Attributes: AttributeMap{"gen_ai.token.type": "input"}, Value: 35, Order: 1},
	}
	val := 35.0
	exp := &ExpectedMetric{
		Name:       "gen_ai.client.token.usage",
		Attributes: AttributeMap{"gen_ai.token.type": "input"},
		Value:      &val,
	}

	idx := matchMetric(exp, pool, make([]bool, len(pool)))
	assert.Equal(t, 1, idx)
}

func TestMatchMetric_DuplicatePointsFirstCapturedCanonical(t *testing.T) {
	t.Parallel()
	pool := []ActualMetric{
		{Name: "gen_ai.client.token.usage", Attributes: AttributeMap{"gen_ai.token.type": "input"}, Value: 25, Order: 3},
		{Name: "gen_ai.client.token.usage", Attributes: AttributeMap{"gen_ai.token.type": "input"}, Value: 25, Order: 1},
	}
	exp := &ExpectedMetric{
		Name:       "gen_ai.client.token.usage",
		Attributes: AttributeMap{"gen_ai.token.type": "input"},
	}

	idx := matchMetric(exp, pool, make([]bool, len(pool)))
	assert.Equal(t, 1, idx, "ties resolve to the earliest captured point")
}

// --- Phase 4: Value Comparison ---

func TestValueEqual(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		a, b any
		want bool
	}{
		{"strings equal", "chat", "chat", true},
		{"strings differ", "chat", "embeddings", false},
		{"int widens to int64", 25, int64(25), true},
		{"int widens to float64", 25, 25.0, true},
		{"float mismatch", 0.7, 0.8, false},
		{"number vs string", 25, "25", false},
		{"bools", true, true, true},
		{"bool vs string", true, "true", false},
		{"string slices", []any{"stop"}, []string{"stop"}, true},
		{"slice order matters", []any{"stop", "length"}, []string{"length", "stop"}, false},
		{"slice length differs", []any{"stop"}, []string{"stop", "length"}, false},
		{"int slice widens", []any{1, 2}, []int64{1, 2}, true},
		{"nested maps", map[string]any{"k": 1}, map[string]any{"k": int64(1)}, true},
		{"nested map key missing", map[string]any{"k": 1}, map[string]any{}, false},
		{"nil both", nil, nil, true},
		{"nil vs value", nil, "x", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, valueEqual(tc.a, tc.b))
		})
	}
}
