package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/core/runner"
)

// Formatter receives the results of each run.
type Formatter interface {
	FormatHeader(version string)
	FormatResult(result *runner.RunResult)
	FormatError(err error)
}

// Flushable is implemented by formatters that write everything at the end.
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// Formats lists the accepted --output values.
var Formats = []string{"console", "json", "junit", "tap"}

// New returns the formatter for format, writing to w.
func New(format string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	switch strings.ToLower(format) {
	case "", "console":
		return NewConsoleFormatter(WithWriter(w), WithVerbose(verbose), WithNoColor(noColor)), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(w)), nil
	case "junit":
		return NewJUnitFormatter(JUnitWithWriter(w)), nil
	case "tap":
		return NewTAPFormatter(TAPWithWriter(w)), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want %s)", format, strings.Join(Formats, ", "))
	}
}

// failureLines describes every failed assertion of r, or its error.
func failureLines(r *runner.ExecutionResult) []string {
	var lines []string
	if r.Error != nil {
		lines = append(lines, fmt.Sprintf("%s: %v", r.Outcome, r.Error))
	}
	for _, a := range r.FailedAssertions() {
		lines = append(lines, fmt.Sprintf("%s %s: expected %s, got %s. %s",
			a.Subject, a.Operator, formatValue(a.Expected, 80), formatValue(a.Actual, 80), a.Message))
	}
	return lines
}

func suiteName(result *runner.RunResult) string {
	if result.Source != "" {
		return result.Source
	}
	return result.BaseURL
}
