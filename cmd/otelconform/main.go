// Command otelconform validates OpenTelemetry GenAI telemetry against the
// semantic conventions by running declarative scenarios through the OTel SDK.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/grafana/pyroscope-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/otelconform/otelconform/pkg/semconv"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

const envPrefix = "OTELCONFORM"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "otelconform",
		Short:        "Conformance validator for OpenTelemetry GenAI telemetry",
		SilenceUsage: true,
	}

	root.AddCommand(
		runCmd(),
		suiteCmd(),
		schemasCmd(),
		previewCmd(),
		importCmd(),
		historyCmd(),
		versionCmd(),
	)

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and build metadata",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "otelconform %s (commit %s, built %s)\n", version, commit, buildTime)
		},
	}
}

// newViper layers environment variables (OTELCONFORM_ prefix) and an
// optional config file (path in OTELCONFORM_CONFIG) under the command's
// flags. Explicitly set flags win; unset flags fall back to env, then the
// config file, then the flag default.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}
	if cfgFile := os.Getenv(envPrefix + "_CONFIG"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	}
	return v, nil
}

// newLogger builds the diagnostics logger. Default level is Info; --debug
// raises it. Output goes to stderr so report tables on stdout stay clean.
func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return logger, nil
}

// startProfiler begins continuous profiling against a Pyroscope server
// and returns a stop function.
func startProfiler(addr string) (func(), error) {
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: "otelconform",
		ServerAddress:   addr,
	})
	if err != nil {
		return nil, fmt.Errorf("starting profiler: %w", err)
	}
	return func() {
		if err := profiler.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "stopping profiler: %v\n", err)
		}
	}, nil
}

// buildRegistry loads the embedded conventions and overlays any
// user-supplied directory given via --semconv.
func buildRegistry(semconvDir string) (*semconv.Registry, error) {
	reg, err := semconv.LoadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("loading embedded conventions: %w", err)
	}
	if semconvDir == "" {
		return reg, nil
	}

	info, err := os.Stat(semconvDir)
	if err != nil {
		return nil, fmt.Errorf("--semconv directory %q does not exist", semconvDir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("--semconv path %q is not a directory", semconvDir)
	}
	overlay, err := semconv.Load(os.DirFS(semconvDir))
	if err != nil {
		return nil, fmt.Errorf("loading conventions from %s: %w", semconvDir, err)
	}
	return reg.Merge(overlay), nil
}
