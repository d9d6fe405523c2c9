// Unit tests for structural rule evaluation.
package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// agentTelemetry builds a workflow tree: one root with three tool children,
// the first tool retried after an error.
func agentTelemetry() *Telemetry {
	retryFail := &ActualSpan{
		Name:       "execute_tool news_api_lookup",
		Status:     Status{Code: "error", Description: "upstream timeout"},
		StartOrder: 1,
	}
	retryOK := &ActualSpan{
		Name:       "execute_tool news_api_lookup",
		StartOrder: 2,
	}
	weather := &ActualSpan{
		Name:       "execute_tool get_weather",
		StartOrder: 3,
	}
	root := &ActualSpan{
		Name:       "chat gpt-4o",
		Children:   []*ActualSpan{retryFail, retryOK, weather},
		StartOrder: 0,
	}
	return &Telemetry{Roots: []*ActualSpan{root}}
}

func validateRules(t *testing.T, rules []Rule, tel *Telemetry) *Report {
	t.Helper()
	v := New(testRegistry(t))
	exp := &Expectation{
		Roots: []ExpectedSpan{{Name: "chat gpt-4o"}},
		Rules: rules,
	}
	report, err := v.Validate(exp, tel)
	require.NoError(t, err)
	return report
}

func TestRules_ChildSpanCount(t *testing.T) {
	t.Parallel()
	report := validateRules(t, []Rule{{Name: RuleChildSpanCount, Value: 3}}, agentTelemetry())
	require.Len(t, report.Rules, 1)
	assert.Equal(t, Pass, report.Rules[0].Outcome)
	assert.Equal(t, 3, report.Rules[0].Actual)
}

func TestRules_ChildSpanCount_TooFew(t *testing.T) {
	t.Parallel()
	report := validateRules(t, []Rule{{Name: RuleChildSpanCount, Value: 4}}, agentTelemetry())
	require.Len(t, report.Rules, 1)
	rr := report.Rules[0]
	assert.Equal(t, FailMissing, rr.Outcome)
	assert.Equal(t, 4, rr.Expected)
	assert.Equal(t, 3, rr.Actual)
	assert.Contains(t, rr.Reason, "found 3")
	assert.False(t, report.IsPass())
}

func TestRules_ChildSpanCount_TooMany(t *testing.T) {
	t.Parallel()
	report := validateRules(t, []Rule{{Name: RuleChildSpanCount, Value: 2}}, agentTelemetry())
	require.Len(t, report.Rules, 1)
	assert.Equal(t, FailExtra, report.Rules[0].Outcome)
}

func TestRules_SpanHierarchyDepth(t *testing.T) {
	t.Parallel()
	tel := agentTelemetry()
	// Nest a grandchild under the weather tool: depth 3 counting the root.
	tel.Roots[0].Children[2].Children = []*ActualSpan{{Name: "chat gpt-4o-mini", StartOrder: 4}}

	report := validateRules(t, []Rule{{Name: RuleSpanHierarchyDepth, Value: 3}}, tel)
	require.Len(t, report.Rules, 1)
	assert.Equal(t, Pass, report.Rules[0].Outcome)
	assert.Equal(t, 3, report.Rules[0].Actual)
}

func TestRules_RetriedOperationCount(t *testing.T) {
	t.Parallel()
	report := validateRules(t, []Rule{{Name: RuleRetriedOperationCount, Value: 1}}, agentTelemetry())
	require.Len(t, report.Rules, 1)
	assert.Equal(t, Pass, report.Rules[0].Outcome)
	assert.Equal(t, 1, report.Rules[0].Actual)
}

func TestRules_RetriedOperationCount_OrderMatters(t *testing.T) {
	t.Parallel()
	// Success before the error is not a retry.
	tel := agentTelemetry()
	tel.Roots[0].Children[0].StartOrder = 2
	tel.Roots[0].Children[1].StartOrder = 1

	report := validateRules(t, []Rule{{Name: RuleRetriedOperationCount, Value: 1}}, tel)
	rr := report.Rules[0]
	assert.Equal(t, 0, rr.Actual)
	assert.Equal(t, FailMissing, rr.Outcome)
}

func TestRules_RetriedOperationCount_GroupCountsOnce(t *testing.T) {
	t.Parallel()
	// Two failures before one success still count as a single retried
	// operation.
	tel := agentTelemetry()
	tel.Roots[0].Children = append(tel.Roots[0].Children, &ActualSpan{
		Name:       "execute_tool news_api_lookup",
		Status:     Status{Code: "error"},
		StartOrder: 1,
	})
	tel.Roots[0].Children[0].StartOrder = 0
	tel.Roots[0].Children[1].StartOrder = 2

	report := validateRules(t, []Rule{{Name: RuleRetriedOperationCount, Value: 1}}, tel)
	assert.Equal(t, Pass, report.Rules[0].Outcome)
}

func TestRules_ErrorSpanCount(t *testing.T) {
	t.Parallel()
	report := validateRules(t, []Rule{{Name: RuleErrorSpanCount, Value: 1}}, agentTelemetry())
	require.Len(t, report.Rules, 1)
	assert.Equal(t, Pass, report.Rules[0].Outcome)
}

func TestRules_ErrorSpanCount_IncludesRoot(t *testing.T) {
	t.Parallel()
	tel := agentTelemetry()
	tel.Roots[0].Status = Status{Code: "error"}

	report := validateRules(t, []Rule{{Name: RuleErrorSpanCount, Value: 2}}, tel)
	assert.Equal(t, Pass, report.Rules[0].Outcome)
}

func TestRules_DesignatedSpan(t *testing.T) {
	t.Parallel()
	tel := agentTelemetry()
	tel.Roots[0].Children[2].Children = []*ActualSpan{
		{Name: "http_get api.weather.gov", StartOrder: 4},
	}

	report := validateRules(t, []Rule{
		{Name: RuleChildSpanCount, Value: 1, Span: "execute_tool get_weather"},
	}, tel)
	require.Len(t, report.Rules, 1)
	assert.Equal(t, Pass, report.Rules[0].Outcome)
	assert.Equal(t, 1, report.Rules[0].Actual)
}

func TestRules_DesignatedSpanNotFound(t *testing.T) {
	t.Parallel()
	report := validateRules(t, []Rule{
		{Name: RuleChildSpanCount, Value: 1, Span: "execute_tool send_email"},
	}, agentTelemetry())
	require.Len(t, report.Rules, 1)
	rr := report.Rules[0]
	assert.Equal(t, FailMissing, rr.Outcome)
	assert.Contains(t, rr.Reason, `"execute_tool send_email"`)
}

func TestRules_UnknownRule(t *testing.T) {
	t.Parallel()
	report := validateRules(t, []Rule{{Name: "span_name_length", Value: 5}}, agentTelemetry())
	require.Len(t, report.Rules, 1)
	rr := report.Rules[0]
	assert.Equal(t, FailSchemaViolation, rr.Outcome)
	assert.Contains(t, rr.Reason, "unknown validation rule")
}

func TestRules_RootNotMatched(t *testing.T) {
	t.Parallel()
	report := validateRules(t, []Rule{{Name: RuleChildSpanCount, Value: 3}}, &Telemetry{})
	require.Len(t, report.Rules, 1)
	rr := report.Rules[0]
	assert.Equal(t, FailMissing, rr.Outcome)
	assert.Equal(t, "root span not matched", rr.Reason)
}

func TestRules_AppearInFlatten(t *testing.T) {
	t.Parallel()
	report := validateRules(t, []Rule{
		{Name: RuleChildSpanCount, Value: 4},
		{Name: RuleErrorSpanCount, Value: 1},
	}, agentTelemetry())

	var rulePaths []string
	for f := range report.Flatten() {
		rulePaths = append(rulePaths, f.Path)
	}
	assert.Contains(t, rulePaths, RuleChildSpanCount)
	assert.Contains(t, rulePaths, RuleErrorSpanCount)
}
