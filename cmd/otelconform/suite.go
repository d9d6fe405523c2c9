package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/otelconform/otelconform/pkg/history"
	"github.com/otelconform/otelconform/pkg/runner"
)

func suiteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suite",
		Short: "Run the built-in conformance scenarios",
		Long: "Run the built-in conformance scenarios.\n\n" +
			"Without --test, every built-in scenario runs. Each --test selects one\n" +
			"by name; unknown names list the available set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			return runSuite(cmd, suiteConfig{
				tests:      v.GetStringSlice("test"),
				noMetrics:  v.GetBool("no-metrics"),
				semconvDir: v.GetString("semconv"),
				historyDSN: v.GetString("history"),
				debug:      v.GetBool("debug"),
			})
		},
	}

	cmd.Flags().StringSlice("test", nil, "run only the named built-in scenario (repeatable)")
	cmd.Flags().Bool("no-metrics", false, "skip metric emission and metric checks")
	cmd.Flags().String("semconv", "", "directory of additional semantic convention YAML files")
	cmd.Flags().String("history", "", "record results to this database (sqlite path or postgres:// DSN)")
	cmd.Flags().Bool("debug", false, "enable debug logging")

	return cmd
}

type suiteConfig struct {
	tests      []string
	noMetrics  bool
	semconvDir string
	historyDSN string
	debug      bool
}

func runSuite(cmd *cobra.Command, cfg suiteConfig) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger(cfg.debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reg, err := buildRegistry(cfg.semconvDir)
	if err != nil {
		return err
	}

	opts := []runner.Option{runner.WithLogger(logger)}
	if cfg.historyDSN != "" {
		store, openErr := history.Open(ctx, cfg.historyDSN)
		if openErr != nil {
			return openErr
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "error closing history store: %v\n", closeErr)
			}
		}()
		opts = append(opts, runner.WithHistory(store))
	}
	if cfg.noMetrics {
		opts = append(opts, runner.WithoutMetrics())
	}

	r := runner.New(reg, opts...)
	suite, err := r.RunSuite(ctx, cfg.tests...)
	if err != nil {
		return err
	}

	renderSuite(cmd.OutOrStdout(), suite)
	if !suite.Passed() {
		return fmt.Errorf("one or more scenarios failed")
	}
	return nil
}
