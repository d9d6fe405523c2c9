package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/otelconform/otelconform/pkg/capture/traceimport"
	"github.com/otelconform/otelconform/pkg/history"
	"github.com/otelconform/otelconform/pkg/runner"
	"github.com/otelconform/otelconform/pkg/scenario"
	"github.com/otelconform/otelconform/pkg/validate"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run conformance scenarios through the OTel SDK and validate the capture",
		Long: "Run conformance scenarios through the OTel SDK and validate the capture.\n\n" +
			"Each scenario is emitted through a real tracer and meter, captured in\n" +
			"memory, and validated against its declared expectations and schema\n" +
			"references. With --from-trace, a previously exported trace file is\n" +
			"validated instead of live emission.",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("missing scenario file\n\nUsage: otelconform run <scenario.yaml>...")
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			return runScenarios(cmd, args, runConfig{
				endpoint:     v.GetString("endpoint"),
				protocol:     v.GetString("protocol"),
				stdout:       v.GetBool("stdout"),
				fromTrace:    v.GetString("from-trace"),
				format:       v.GetString("format"),
				noMetrics:    v.GetBool("no-metrics"),
				semconvDir:   v.GetString("semconv"),
				historyDSN:   v.GetString("history"),
				findingsLogs: v.GetBool("findings-logs"),
				debug:        v.GetBool("debug"),
				profile:      v.GetString("profile"),
			})
		},
	}

	cmd.Flags().String("endpoint", "", "OTLP endpoint to forward captured signals to (e.g. localhost:4318)")
	cmd.Flags().String("protocol", "http/protobuf", "OTLP protocol (http/protobuf or grpc)")
	cmd.Flags().Bool("stdout", false, "mirror captured signals to stdout as JSON")
	cmd.Flags().String("from-trace", "", "validate against an exported trace file instead of live emission")
	cmd.Flags().String("format", "auto", "trace file format for --from-trace: auto, stdouttrace, or otlp")
	cmd.Flags().Bool("no-metrics", false, "skip metric emission and metric checks")
	cmd.Flags().String("semconv", "", "directory of additional semantic convention YAML files")
	cmd.Flags().String("history", "", "record results to this database (sqlite path or postgres:// DSN)")
	cmd.Flags().Bool("findings-logs", false, "emit findings as OTel log records")
	cmd.Flags().Bool("debug", false, "enable debug logging")
	cmd.Flags().String("profile", "", "send continuous profiles to this Pyroscope server address")

	return cmd
}

type runConfig struct {
	endpoint     string
	protocol     string
	stdout       bool
	fromTrace    string
	format       string
	noMetrics    bool
	semconvDir   string
	historyDSN   string
	findingsLogs bool
	debug        bool
	profile      string
}

func runScenarios(cmd *cobra.Command, paths []string, cfg runConfig) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := validateProtocol(cfg.protocol); err != nil {
		return err
	}

	logger, err := newLogger(cfg.debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.profile != "" {
		stopProfiler, profErr := startProfiler(cfg.profile)
		if profErr != nil {
			return profErr
		}
		defer stopProfiler()
	}

	reg, err := buildRegistry(cfg.semconvDir)
	if err != nil {
		return err
	}

	var store history.Store
	if cfg.historyDSN != "" {
		store, err = history.Open(ctx, cfg.historyDSN)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "error closing history store: %v\n", closeErr)
			}
		}()
	}

	exportOpts := exportOptions{endpoint: cfg.endpoint, protocol: cfg.protocol, stdout: cfg.stdout}

	var findings *runner.FindingsLogger
	if cfg.findingsLogs {
		lp, lpErr := newFindingsProvider(ctx, exportOpts)
		if lpErr != nil {
			return lpErr
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			shutdownAll(shutdownCtx, []*sdklog.LoggerProvider{lp}, "logger provider")
		}()
		findings = runner.NewFindingsLogger(lp)
	}

	var fwd *forwarding
	if (cfg.stdout || cfg.endpoint != "") && cfg.fromTrace == "" {
		if !cfg.stdout {
			if err := checkEndpoint(cfg.endpoint, cfg.protocol); err != nil {
				return err
			}
		}
		fwd, err = newForwarding(ctx, exportOpts)
		if err != nil {
			return err
		}
		defer fwd.shutdown()
	}

	var tel *validate.Telemetry
	if cfg.fromTrace != "" {
		tel, err = loadTraceFile(cfg.fromTrace, cfg.format, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
	}

	anyFailed := false
	for _, path := range paths {
		sc, loadErr := scenario.Load(path)
		if loadErr != nil {
			return loadErr
		}

		opts := []runner.Option{runner.WithLogger(logger)}
		if store != nil {
			opts = append(opts, runner.WithHistory(store))
		}
		if findings != nil {
			opts = append(opts, runner.WithFindingsLogger(findings))
		}
		noMetrics := cfg.noMetrics
		if tel != nil && !noMetrics && scenarioHasMetrics(sc) {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Warning: trace files carry no metrics, skipping metric checks")
			noMetrics = true
		}
		if noMetrics {
			opts = append(opts, runner.WithoutMetrics())
		}
		if fwd != nil {
			opts = append(opts, runner.WithCaptureOptions(fwd.captureOptions()...))
		}

		r := runner.New(reg, opts...)

		var result *runner.RunResult
		var runErr error
		if tel != nil {
			result, runErr = r.Evaluate(ctx, sc, tel)
		} else {
			result, runErr = r.Run(ctx, sc)
		}
		if runErr != nil {
			return runErr
		}

		renderReport(cmd.OutOrStdout(), result)
		if !result.Passed {
			anyFailed = true
		}
	}

	if anyFailed {
		return fmt.Errorf("one or more scenarios failed")
	}
	return nil
}

func loadTraceFile(path, format string, warn io.Writer) (*validate.Telemetry, error) {
	f, err := os.Open(path) //nolint:gosec // user-supplied trace path is expected
	if err != nil {
		return nil, fmt.Errorf("opening trace file: %w", err)
	}
	defer f.Close() //nolint:errcheck // best-effort close on read-only file

	roots, err := traceimport.Parse(f, traceimport.Format(format), warn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &validate.Telemetry{Roots: roots}, nil
}

func scenarioHasMetrics(sc *scenario.Scenario) bool {
	var walk func(spans []scenario.Span) bool
	walk = func(spans []scenario.Span) bool {
		for i := range spans {
			if len(spans[i].Metrics) > 0 || walk(spans[i].Children) {
				return true
			}
		}
		return false
	}
	return walk(sc.Spans)
}
