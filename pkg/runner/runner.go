// Package runner executes conformance scenarios end to end: emit the
// scenario's expected telemetry through a real SDK, capture it in
// isolation, validate the capture against the schema registry, and fan
// results out to optional collaborators (history store, findings logs).
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapio"

	"github.com/otelconform/otelconform/pkg/capture"
	"github.com/otelconform/otelconform/pkg/history"
	"github.com/otelconform/otelconform/pkg/scenario"
	"github.com/otelconform/otelconform/pkg/semconv"
	"github.com/otelconform/otelconform/pkg/validate"
)

// scopeName identifies the tracer and meter used for scenario emission.
const scopeName = "github.com/otelconform/otelconform/pkg/runner"

// Runner executes scenarios against one schema registry. Safe for
// concurrent use: every run captures into its own isolated providers and
// the registry is read-only.
type Runner struct {
	validator   *validate.Validator
	logger      *zap.Logger
	store       history.Store
	findings    *FindingsLogger
	captureOpts []capture.Option
	metrics     bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger for run progress and capture warnings.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithHistory persists every run result to the given store.
func WithHistory(s history.Store) Option {
	return func(r *Runner) { r.store = s }
}

// WithFindingsLogger emits every finding as an OTel log record.
func WithFindingsLogger(f *FindingsLogger) Option {
	return func(r *Runner) { r.findings = f }
}

// WithCaptureOptions forwards options to each run's capture, typically to
// mirror emitted telemetry to an external collector.
func WithCaptureOptions(opts ...capture.Option) Option {
	return func(r *Runner) { r.captureOpts = append(r.captureOpts, opts...) }
}

// WithoutMetrics skips metric emission and drops metric expectations.
func WithoutMetrics() Option {
	return func(r *Runner) { r.metrics = false }
}

// New returns a Runner validating against the given registry.
func New(registry *semconv.Registry, opts ...Option) *Runner {
	r := &Runner{
		validator: validate.New(registry),
		logger:    zap.NewNop(),
		metrics:   true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunResult is the outcome of one scenario run.
type RunResult struct {
	ID        uuid.UUID
	Scenario  string
	Report    *validate.Report
	Passed    bool
	Findings  int // total report entries
	Failures  int // entries with a non-pass outcome
	StartedAt time.Time
	Duration  time.Duration
}

// Run emits the scenario's telemetry through an isolated provider pair,
// captures it, and validates the capture.
func (r *Runner) Run(ctx context.Context, sc *scenario.Scenario) (*RunResult, error) {
	if err := scenario.Validate(sc); err != nil {
		return nil, err
	}
	started := time.Now()

	warn := &zapio.Writer{Log: r.logger, Level: zapcore.WarnLevel}
	opts := append([]capture.Option{capture.WithWarningWriter(warn)}, r.captureOpts...)
	c := capture.New(opts...)
	defer func() {
		if err := c.Shutdown(context.Background()); err != nil {
			r.logger.Warn("capture shutdown", zap.String("scenario", sc.Name), zap.Error(err))
		}
	}()

	emit := newEmitter(c.Tracer(scopeName), c.Meter(scopeName), r.metrics)
	if err := emit.emitScenario(ctx, sc); err != nil {
		return nil, fmt.Errorf("emitting scenario %s: %w", sc.Name, err)
	}

	tel, err := c.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("capturing scenario %s: %w", sc.Name, err)
	}
	r.logger.Debug("captured telemetry",
		zap.String("scenario", sc.Name),
		zap.Int("roots", len(tel.Roots)),
		zap.Int("metric_points", len(tel.Metrics)))

	return r.evaluate(ctx, sc, tel, started)
}

// Evaluate validates already-captured telemetry against a scenario, for
// trace files recorded outside this process.
func (r *Runner) Evaluate(ctx context.Context, sc *scenario.Scenario, tel *validate.Telemetry) (*RunResult, error) {
	if err := scenario.Validate(sc); err != nil {
		return nil, err
	}
	return r.evaluate(ctx, sc, tel, time.Now())
}

func (r *Runner) evaluate(ctx context.Context, sc *scenario.Scenario, tel *validate.Telemetry, started time.Time) (*RunResult, error) {
	exp := sc.Expectation()
	if !r.metrics {
		stripMetrics(exp.Roots)
	}

	report, err := r.validator.Validate(exp, tel)
	if err != nil {
		return nil, fmt.Errorf("validating scenario %s: %w", sc.Name, err)
	}

	result := &RunResult{
		ID:        uuid.New(),
		Scenario:  sc.Name,
		Report:    report,
		Passed:    report.IsPass(),
		StartedAt: started,
		Duration:  time.Since(started),
	}
	for f := range report.Flatten() {
		result.Findings++
		if f.Outcome != validate.Pass {
			result.Failures++
		}
	}

	r.logger.Info("scenario validated",
		zap.String("scenario", sc.Name),
		zap.String("run_id", result.ID.String()),
		zap.Bool("passed", result.Passed),
		zap.Int("failures", result.Failures),
		zap.Duration("duration", result.Duration))

	if r.store != nil {
		entry := history.Entry{
			RunID:     result.ID.String(),
			Scenario:  result.Scenario,
			Passed:    result.Passed,
			Findings:  result.Findings,
			Failures:  result.Failures,
			StartedAt: result.StartedAt.UTC(),
			Duration:  result.Duration,
		}
		if err := r.store.Save(ctx, entry); err != nil {
			r.logger.Warn("recording run history", zap.String("run_id", result.ID.String()), zap.Error(err))
		}
	}
	if r.findings != nil {
		r.findings.Emit(ctx, result)
	}
	return result, nil
}

// stripMetrics drops metric expectations from the tree when metric checks
// are disabled.
func stripMetrics(spans []validate.ExpectedSpan) {
	for i := range spans {
		spans[i].Metrics = nil
		stripMetrics(spans[i].Children)
	}
}
