package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/otelconform/otelconform/pkg/scenario"
)

func previewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <scenario.yaml>",
		Short: "Show a scenario's expected telemetry tree without running anything",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("missing scenario file\n\nUsage: otelconform preview <scenario.yaml>")
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := scenario.Load(args[0])
			if err != nil {
				return err
			}
			if err := scenario.Validate(sc); err != nil {
				return err
			}
			renderScenarioTree(cmd.OutOrStdout(), sc)
			return nil
		},
	}
	return cmd
}

func renderScenarioTree(w io.Writer, sc *scenario.Scenario) {
	_, _ = fmt.Fprint(w, sc.Name)
	if sc.Description != "" {
		_, _ = fmt.Fprintf(w, ": %s", sc.Description)
	}
	_, _ = fmt.Fprintln(w)

	for i := range sc.Spans {
		renderSpanNode(w, &sc.Spans[i], "", i == len(sc.Spans)-1)
	}

	if len(sc.Rules) > 0 {
		_, _ = fmt.Fprintln(w, "rules:")
		for _, r := range sc.Rules {
			target := ""
			if r.Span != "" {
				target = " @ " + r.Span
			}
			_, _ = fmt.Fprintf(w, "  %s = %d%s\n", r.Rule, r.Value, target)
		}
	}

	if len(sc.Schemas.Spans)+len(sc.Schemas.Events)+len(sc.Schemas.Metrics) > 0 {
		_, _ = fmt.Fprintln(w, "schemas:")
		if len(sc.Schemas.Spans) > 0 {
			_, _ = fmt.Fprintf(w, "  spans: %s\n", strings.Join(sc.Schemas.Spans, ", "))
		}
		if len(sc.Schemas.Events) > 0 {
			_, _ = fmt.Fprintf(w, "  events: %s\n", strings.Join(sc.Schemas.Events, ", "))
		}
		if len(sc.Schemas.Metrics) > 0 {
			_, _ = fmt.Fprintf(w, "  metrics: %s\n", strings.Join(sc.Schemas.Metrics, ", "))
		}
	}
}

func renderSpanNode(w io.Writer, sp *scenario.Span, prefix string, last bool) {
	branch, childPrefix := treeBranch(prefix, last)
	_, _ = fmt.Fprintf(w, "%s%s%s\n", branch, sp.Name, spanDetail(sp))

	var leaves []string
	for _, ev := range sp.Events {
		leaves = append(leaves, "event "+ev.Name)
	}
	for _, m := range sp.Metrics {
		text := "metric " + m.Name
		if m.Value != nil {
			text += fmt.Sprintf(" = %v", *m.Value)
		}
		leaves = append(leaves, text)
	}

	total := len(leaves) + len(sp.Children)
	for i, text := range leaves {
		lb, _ := treeBranch(childPrefix, i == total-1)
		_, _ = fmt.Fprintf(w, "%s%s\n", lb, text)
	}
	for i := range sp.Children {
		renderSpanNode(w, &sp.Children[i], childPrefix, len(leaves)+i == total-1)
	}
}

func treeBranch(prefix string, last bool) (branch, childPrefix string) {
	if last {
		return prefix + "└─ ", prefix + "   "
	}
	return prefix + "├─ ", prefix + "│  "
}

func spanDetail(sp *scenario.Span) string {
	var parts []string
	if n := len(sp.Attributes); n > 0 {
		parts = append(parts, fmt.Sprintf("%d attrs", n))
	}
	if sp.Status != nil {
		parts = append(parts, "status "+sp.Status.Code)
	}
	if sp.Exception != nil {
		parts = append(parts, "exception "+sp.Exception.Type)
	}
	if len(parts) == 0 {
		return ""
	}
	return "  [" + strings.Join(parts, ", ") + "]"
}
