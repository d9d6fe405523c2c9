package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/otelconform/otelconform/pkg/capture/traceimport"
	"github.com/otelconform/otelconform/pkg/scenario"
)

func importCmd() *cobra.Command {
	var (
		format string
		name   string
	)

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Scaffold a scenario from exported trace data",
		Long: "Reads spans from a trace export (stdouttrace or OTLP JSON) and prints a\n" +
			"scenario YAML skeleton capturing their names, attributes, and structure.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, closeIn, err := openInput(args)
			if err != nil {
				return err
			}
			defer closeIn()

			roots, err := traceimport.Parse(in, traceimport.Format(format), cmd.ErrOrStderr())
			if errors.Is(err, traceimport.ErrNoSpans) {
				return fmt.Errorf("%w\n\nPass a trace file or pipe one in:\n  otelconform import traces.json\n  cat traces.json | otelconform import", err)
			}
			if err != nil {
				return err
			}

			out, err := scenario.Marshal(scenario.FromSpans(name, roots))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().StringVar(&format, "format", "auto", "trace input format (auto, stdouttrace, otlp)")
	cmd.Flags().StringVar(&name, "name", "imported", "scenario name for the generated file")

	return cmd
}

// openInput returns the trace source: the named file when given, stdin
// otherwise.
func openInput(args []string) (io.Reader, func(), error) {
	if len(args) == 0 {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(args[0]) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, nil, fmt.Errorf("opening input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
