// FindingsLogger emits validation findings as OTel log records, so
// conformance results can travel the same pipeline as the telemetry they
// describe.
package runner

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/log"

	"github.com/otelconform/otelconform/pkg/validate"
)

// FindingsLogger emits one log record per validation finding.
type FindingsLogger struct {
	logger log.Logger
}

// NewFindingsLogger creates a FindingsLogger emitting through the given
// provider.
func NewFindingsLogger(lp log.LoggerProvider) *FindingsLogger {
	return &FindingsLogger{logger: lp.Logger(scopeName)}
}

// Emit writes one record per finding: failures at ERROR severity, passing
// entries at DEBUG.
func (f *FindingsLogger) Emit(ctx context.Context, result *RunResult) {
	for finding := range result.Report.Flatten() {
		var rec log.Record
		if finding.Outcome == validate.Pass {
			rec.SetSeverity(log.SeverityDebug)
			rec.SetSeverityText("DEBUG")
			rec.SetBody(log.StringValue(finding.Path + ": pass"))
		} else {
			rec.SetSeverity(log.SeverityError)
			rec.SetSeverityText("ERROR")
			body := finding.Path + ": " + string(finding.Outcome)
			if len(finding.Reasons) > 0 {
				body += " (" + strings.Join(finding.Reasons, "; ") + ")"
			}
			rec.SetBody(log.StringValue(body))
		}
		rec.AddAttributes(
			log.String("otelconform.run_id", result.ID.String()),
			log.String("otelconform.scenario", result.Scenario),
			log.String("otelconform.path", finding.Path),
			log.String("otelconform.outcome", string(finding.Outcome)),
		)
		f.logger.Emit(ctx, rec)
	}
}
