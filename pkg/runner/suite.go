package runner

import (
	"context"
	"fmt"

	"github.com/otelconform/otelconform/pkg/scenario"
)

// SuiteResult aggregates the run results of a scenario suite, in the
// order the scenarios executed.
type SuiteResult struct {
	Results []*RunResult
}

// Passed reports whether every scenario in the suite passed.
func (s *SuiteResult) Passed() bool {
	for _, r := range s.Results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// RunSuite executes built-in scenarios by name, or all of them when no
// names are given, in sorted order.
func (r *Runner) RunSuite(ctx context.Context, names ...string) (*SuiteResult, error) {
	var scenarios []*scenario.Scenario
	if len(names) == 0 {
		all, err := scenario.LoadBuiltins()
		if err != nil {
			return nil, err
		}
		scenarios = all
	} else {
		for _, name := range names {
			sc, err := scenario.LoadBuiltin(name)
			if err != nil {
				return nil, err
			}
			scenarios = append(scenarios, sc)
		}
	}

	suite := &SuiteResult{Results: make([]*RunResult, 0, len(scenarios))}
	for _, sc := range scenarios {
		result, err := r.Run(ctx, sc)
		if err != nil {
			return nil, fmt.Errorf("running %s: %w", sc.Name, err)
		}
		suite.Results = append(suite.Results, result)
	}
	return suite, nil
}
