package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/otelconform/otelconform/pkg/semconv"
)

func schemasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schemas [id]",
		Short: "List semantic convention schema definitions",
		Long: "List semantic convention schema definitions.\n\n" +
			"Without arguments, lists every group in the selected domain. With a\n" +
			"group id, shows the resolved attributes with requirement levels and\n" +
			"representative example values.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			reg, err := buildRegistry(v.GetString("semconv"))
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return renderSchemaDetail(cmd.OutOrStdout(), reg, args[0])
			}
			return renderSchemaList(cmd.OutOrStdout(), reg, v.GetString("domain"))
		},
	}

	cmd.Flags().String("domain", "gen-ai", "convention domain to list")
	cmd.Flags().String("semconv", "", "directory of additional semantic convention YAML files")

	return cmd
}

func renderSchemaList(w io.Writer, reg *semconv.Registry, domain string) error {
	groups := reg.Domain(domain)
	if len(groups) == 0 {
		return fmt.Errorf("no groups in domain %q (available: %s)",
			domain, strings.Join(reg.Domains(), ", "))
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"ID", "KIND", "ATTRIBUTES", "STABILITY"})
	for _, g := range groups {
		tw.AppendRow(table.Row{g.ID, string(g.Kind()), len(g.Attributes), g.Stability})
	}
	tw.Render()
	return nil
}

func renderSchemaDetail(w io.Writer, reg *semconv.Registry, id string) error {
	g := reg.Group(id)
	if g == nil {
		return fmt.Errorf("unknown schema group %q", id)
	}
	examples := semconv.ExampleValues(g)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.SetTitle("%s (%s)", g.ID, g.Kind())
	tw.AppendHeader(table.Row{"ATTRIBUTE", "TYPE", "LEVEL", "EXAMPLE"})
	for i := range g.Attributes {
		attr := &g.Attributes[i]
		if attr.ID == "" {
			continue
		}
		example := ""
		if v, ok := examples[attr.ID]; ok {
			example = fmt.Sprint(v)
		}
		tw.AppendRow(table.Row{attr.ID, attr.Type.Value, string(attr.Level()), example})
	}
	tw.Render()
	return nil
}
