// Structural rules: whole-tree checks evaluated against the matched root
// span's subtree and attached to the report root.
package validate

import (
	"fmt"
	"sort"
)

// evaluateRules evaluates every requested rule. A nil root means the first
// expected root span had no match, which fails every rule outright.
func evaluateRules(rules []Rule, root *ActualSpan) []RuleResult {
	if len(rules) == 0 {
		return nil
	}
	results := make([]RuleResult, 0, len(rules))
	for _, rule := range rules {
		results = append(results, evaluateRule(rule, root))
	}
	return results
}

func evaluateRule(rule Rule, root *ActualSpan) RuleResult {
	result := RuleResult{Rule: rule.Name, Expected: rule.Value}

	if !KnownRules[rule.Name] {
		result.Outcome = FailSchemaViolation
		result.Reason = fmt.Sprintf("unknown validation rule %q", rule.Name)
		return result
	}
	if root == nil {
		result.Outcome = FailMissing
		result.Reason = "root span not matched"
		return result
	}

	target := root
	if rule.Span != "" {
		target = findByName(root, rule.Span)
		if target == nil {
			result.Outcome = FailMissing
			result.Reason = fmt.Sprintf("designated span %q not found in the matched tree", rule.Span)
			return result
		}
	}

	switch rule.Name {
	case RuleChildSpanCount:
		result.Actual = len(target.Children)
		result.Outcome, result.Reason = countOutcome(rule, result.Actual, "immediate child spans")
	case RuleSpanHierarchyDepth:
		result.Actual = treeDepth(target)
		result.Outcome, result.Reason = countOutcome(rule, result.Actual, "levels of span nesting")
	case RuleRetriedOperationCount:
		result.Actual = retriedOperations(target)
		result.Outcome, result.Reason = countOutcome(rule, result.Actual, "retried operations")
	case RuleErrorSpanCount:
		result.Actual = errorSpans(target)
		result.Outcome, result.Reason = countOutcome(rule, result.Actual, "error spans")
	}
	return result
}

// findByName returns the first span named name in a depth-first walk of the
// subtree, or nil.
func findByName(s *ActualSpan, name string) *ActualSpan {
	if s.Name == name {
		return s
	}
	for _, child := range s.Children {
		if found := findByName(child, name); found != nil {
			return found
		}
	}
	return nil
}

// countOutcome classifies an exact-count check: shortfalls read as missing
// telemetry, surpluses as extra.
func countOutcome(rule Rule, actual int, what string) (Outcome, string) {
	switch {
	case actual == rule.Value:
		return Pass, ""
	case actual < rule.Value:
		return FailMissing, fmt.Sprintf("expected %d %s, found %d", rule.Value, what, actual)
	default:
		return FailExtra, fmt.Sprintf("expected %d %s, found %d", rule.Value, what, actual)
	}
}

// treeDepth returns the maximum nesting depth of the subtree, counting the
// root as one level.
func treeDepth(s *ActualSpan) int {
	depth := 1
	for _, child := range s.Children {
		depth = max(depth, 1+treeDepth(child))
	}
	return depth
}

// retriedOperations counts sibling name groups that show a retry pattern:
// an error instance followed, in capture order, by a non-error instance
// with the same name. Each group counts once regardless of how many
// attempts failed before the retry succeeded.
func retriedOperations(s *ActualSpan) int {
	count := 0
	byName := make(map[string][]*ActualSpan)
	for _, child := range s.Children {
		byName[child.Name] = append(byName[child.Name], child)
	}
	for _, group := range byName {
		if hasRetry(group) {
			count++
		}
	}
	for _, child := range s.Children {
		count += retriedOperations(child)
	}
	return count
}

// hasRetry reports whether an error instance precedes a non-error one in
// capture order.
func hasRetry(group []*ActualSpan) bool {
	sort.SliceStable(group, func(i, j int) bool {
		return group[i].StartOrder < group[j].StartOrder
	})
	seenError := false
	for _, span := range group {
		if span.Status.Code == "error" {
			seenError = true
		} else if seenError {
			return true
		}
	}
	return false
}

// errorSpans counts spans in the subtree whose status is error, the root
// included.
func errorSpans(s *ActualSpan) int {
	count := 0
	if s.Status.Code == "error" {
		count++
	}
	for _, child := range s.Children {
		count += errorSpans(child)
	}
	return count
}
