package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/core/runner"
)

// TAPFormatter formats run results in TAP (Test Anything Protocol) format
type TAPFormatter struct {
	writer    io.Writer
	testCount int
	results   []tapResult
}

type tapResult struct {
	number     int
	name       string
	passed     bool
	skipped    bool
	skipReason string
	outcome    string
	error      string
	assertions []string
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer:  os.Stdout,
		results: make([]tapResult, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		f.testCount++
		tr := tapResult{
			number:  f.testCount,
			name:    r.Name(),
			passed:  r.Passed(),
			outcome: r.Outcome.String(),
		}

		if r.Error != nil {
			tr.error = r.Error.Error()
		}

		for _, a := range r.FailedAssertions() {
			tr.assertions = append(tr.assertions, fmt.Sprintf(
				"%s %s: expected %s, got %s",
				a.Subject, a.Operator, formatValue(a.Expected, 80), formatValue(a.Actual, 80)))
		}

		f.results = append(f.results, tr)
	}

	for _, s := range result.Skipped {
		f.testCount++
		f.results = append(f.results, tapResult{
			number:     f.testCount,
			name:       s.Contract.DisplayName(),
			skipped:    true,
			skipReason: s.Reason,
		})
	}
}

// FormatError records a failure that prevented the contracts from running
// as a failed test point.
func (f *TAPFormatter) FormatError(err error) {
	f.testCount++
	f.results = append(f.results, tapResult{
		number:  f.testCount,
		name:    "load contracts",
		outcome: "error",
		error:   err.Error(),
	})
}

func (f *TAPFormatter) FormatHeader(version string) {
	// Header is written in Flush
}

// Flush writes the accumulated TAP output
func (f *TAPFormatter) Flush(totalDuration time.Duration) error {
	fmt.Fprintf(f.writer, "TAP version 13\n")
	fmt.Fprintf(f.writer, "1..%d\n", f.testCount)

	for _, r := range f.results {
		if r.skipped {
			reason := r.skipReason
			if reason == "" {
				reason = "SKIP"
			}
			fmt.Fprintf(f.writer, "ok %d - %s # SKIP %s\n", r.number, r.name, reason)
			continue
		}

		if r.passed {
			fmt.Fprintf(f.writer, "ok %d - %s\n", r.number, r.name)
			continue
		}

		fmt.Fprintf(f.writer, "not ok %d - %s\n", r.number, r.name)
		fmt.Fprintf(f.writer, "  ---\n")
		fmt.Fprintf(f.writer, "  outcome: %s\n", r.outcome)
		if r.error != "" {
			fmt.Fprintf(f.writer, "  message: %s\n", escapeYAML(r.error))
			fmt.Fprintf(f.writer, "  severity: error\n")
		}
		if len(r.assertions) > 0 {
			fmt.Fprintf(f.writer, "  failures:\n")
			for _, a := range r.assertions {
				fmt.Fprintf(f.writer, "    - %s\n", escapeYAML(a))
			}
		}
		fmt.Fprintf(f.writer, "  ...\n")
	}

	fmt.Fprintf(f.writer, "# duration %dms\n", totalDuration.Milliseconds())
	return nil
}

func escapeYAML(s string) string {
	// wrap in quotes if s contains YAML indicators
	if strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		return "\"" + s + "\""
	}
	return s
}
