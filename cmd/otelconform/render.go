package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/otelconform/otelconform/pkg/history"
	"github.com/otelconform/otelconform/pkg/runner"
)

// renderReport prints one scenario's findings as a table followed by a
// status line.
func renderReport(w io.Writer, result *runner.RunResult) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.SetTitle("%s (run %s)", result.Scenario, shortID(result.ID.String()))
	tw.AppendHeader(table.Row{"PATH", "OUTCOME", "DETAIL"})
	for f := range result.Report.Flatten() {
		tw.AppendRow(table.Row{f.Path, string(f.Outcome), strings.Join(f.Reasons, "; ")})
	}
	tw.Render()

	p := message.NewPrinter(language.English)
	status := "PASS"
	if !result.Passed {
		status = "FAIL"
	}
	_, _ = p.Fprintf(w, "%s  %s: %d findings, %d failures in %s\n\n",
		status, result.Scenario, result.Findings, result.Failures,
		result.Duration.Round(time.Millisecond))
}

// renderSuite prints the per-scenario summary table and a closing count line.
func renderSuite(w io.Writer, suite *runner.SuiteResult) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"SCENARIO", "RESULT", "FINDINGS", "FAILURES", "DURATION"})
	passed := 0
	for _, r := range suite.Results {
		status := "FAIL"
		if r.Passed {
			status = "PASS"
			passed++
		}
		tw.AppendRow(table.Row{r.Scenario, status, r.Findings, r.Failures,
			r.Duration.Round(time.Millisecond)})
	}
	tw.Render()

	p := message.NewPrinter(language.English)
	label := "scenarios"
	if len(suite.Results) == 1 {
		label = "scenario"
	}
	_, _ = p.Fprintf(w, "Ran %d %s: %d passed, %d failed\n",
		len(suite.Results), label, passed, len(suite.Results)-passed)
}

func renderHistory(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "no recorded runs")
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"RUN", "SCENARIO", "RESULT", "FINDINGS", "FAILURES", "STARTED", "DURATION"})
	for _, e := range entries {
		status := "FAIL"
		if e.Passed {
			status = "PASS"
		}
		tw.AppendRow(table.Row{shortID(e.RunID), e.Scenario, status, e.Findings, e.Failures,
			e.StartedAt.Format(time.RFC3339), e.Duration.Round(time.Millisecond)})
	}
	tw.Render()
}

// shortID abbreviates a run UUID for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
