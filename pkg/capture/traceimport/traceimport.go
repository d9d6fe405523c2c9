// Package traceimport parses previously exported traces into the
// validation model, so telemetry recorded elsewhere can be validated
// offline. It reads both the Go SDK's stdouttrace output (line-delimited
// JSON) and OTLP protobuf JSON.
package traceimport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/otelconform/otelconform/pkg/validate"
)

// Format names a supported trace input encoding.
type Format string

const (
	// FormatAuto probes the input and picks one of the concrete formats.
	FormatAuto Format = "auto"
	// FormatStdouttrace is the stdouttrace exporter's line-delimited JSON.
	FormatStdouttrace Format = "stdouttrace"
	// FormatOTLP is an OTLP/JSON ExportTraceServiceRequest document.
	FormatOTLP Format = "otlp"
)

// ErrNoSpans reports input that decoded cleanly but produced no spans.
var ErrNoSpans = errors.New("no spans found in input")

// maxInputSize bounds memory use on oversized exports.
const maxInputSize = 256 << 20 // 256 MB

// record is one decoded span before forest linking.
type record struct {
	TraceID    string
	SpanID     string
	ParentID   string // cleared when absent or all zeros
	Name       string
	StartTime  time.Time
	Attributes validate.AttributeMap
	Status     validate.Status
	Events     []validate.ActualEvent
}

// Parse decodes exported spans from r and links them into a forest of
// [validate.ActualSpan] trees. FormatAuto probes the payload to choose a
// decoder. Spans whose parent is missing from the input are promoted to
// roots, with a note written to warn (may be nil).
func Parse(r io.Reader, format Format, warn io.Writer) ([]*validate.ActualSpan, error) {
	raw, err := readInput(r)
	if err != nil {
		return nil, err
	}
	if format == FormatAuto {
		if format, err = detectFormat(raw); err != nil {
			return nil, err
		}
	}

	var records []record
	switch format {
	case FormatStdouttrace:
		records, err = parseStdouttrace(raw)
	case FormatOTLP:
		records, err = parseOTLP(raw)
	default:
		err = fmt.Errorf("unknown format %q (want auto, stdouttrace, or otlp)", format)
	}
	switch {
	case err != nil:
		return nil, err
	case len(records) == 0:
		return nil, ErrNoSpans
	}
	return buildForest(records, warn), nil
}

// readInput slurps r up to the size cap and trims surrounding whitespace.
func readInput(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxInputSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading trace input: %w", err)
	}
	if len(raw) > maxInputSize {
		return nil, fmt.Errorf("input exceeds %d MB size limit", maxInputSize>>20)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, ErrNoSpans
	}
	return raw, nil
}

// detectFormat sniffs the payload. A stdouttrace line is a complete JSON
// object, so the first line is probed before falling back to the whole
// document for pretty-printed OTLP.
func detectFormat(data []byte) (Format, error) {
	head, _, multiline := bytes.Cut(data, []byte("\n"))
	if f := probeFormat(bytes.TrimSpace(head)); f != "" {
		return f, nil
	}
	if multiline {
		if f := probeFormat(data); f != "" {
			return f, nil
		}
	}
	return "", errors.New("cannot detect format: no SpanContext (stdouttrace) or resourceSpans (OTLP) field present")
}

// probeFormat decodes one JSON document and keys off its top-level fields.
func probeFormat(doc []byte) Format {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return ""
	}
	if _, ok := fields["SpanContext"]; ok {
		return FormatStdouttrace
	}
	if _, ok := fields["resourceSpans"]; ok {
		return FormatOTLP
	}
	return ""
}

// isZeroID reports whether a hex ID is present but consists only of zeros.
func isZeroID(id string) bool {
	return id != "" && strings.Trim(id, "0") == ""
}
