package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/core/runner"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary   JSONSummary    `json:"summary"`
	Contracts []JSONContract `json:"contracts"`
	Errors    []string       `json:"errors,omitempty"`
	Duration  float64        `json:"duration"`
	Time      string         `json:"time"`
}

// JSONSummary represents the run summary
type JSONSummary struct {
	Total    int            `json:"total"`
	Passed   int            `json:"passed"`
	Failed   int            `json:"failed"`
	Skipped  int            `json:"skipped"`
	Outcomes map[string]int `json:"outcomes,omitempty"`
	Latency  *JSONLatency   `json:"latency,omitempty"`
}

// JSONLatency is the latency summary in milliseconds
type JSONLatency struct {
	Min  float64 `json:"min"`
	Mean float64 `json:"mean"`
	P50  float64 `json:"p50"`
	P95  float64 `json:"p95"`
	P99  float64 `json:"p99"`
	Max  float64 `json:"max"`
}

// JSONContract represents a single contract result
type JSONContract struct {
	Name       string          `json:"name"`
	File       string          `json:"file,omitempty"`
	Outcome    string          `json:"outcome"`
	Passed     bool            `json:"passed"`
	SkipReason string          `json:"skipReason,omitempty"`
	Duration   float64         `json:"duration"`
	Error      string          `json:"error,omitempty"`
	Request    *JSONRequest    `json:"request,omitempty"`
	Response   *JSONResponse   `json:"response,omitempty"`
	Assertions []JSONAssertion `json:"assertions,omitempty"`
}

// JSONRequest represents request details
type JSONRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// JSONResponse represents response details
type JSONResponse struct {
	StatusCode int               `json:"statusCode"`
	Status     string            `json:"status"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       any               `json:"body,omitempty"`
	Duration   float64           `json:"duration"`
}

// JSONAssertion represents an assertion result
type JSONAssertion struct {
	Subject  string `json:"subject"`
	Operator string `json:"operator"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
}

// JSONFormatter formats run results as JSON
type JSONFormatter struct {
	writer    io.Writer
	contracts []JSONContract
	latency   *JSONLatency
	errors    []string
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:    os.Stdout,
		contracts: make([]JSONContract, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		c := JSONContract{
			Name:     r.Name(),
			File:     result.Source,
			Outcome:  r.Outcome.String(),
			Passed:   r.Passed(),
			Duration: millis(r.Duration),
		}

		if r.Error != nil {
			c.Error = r.Error.Error()
		}

		if r.Request != nil {
			c.Request = &JSONRequest{
				Method:  r.Request.Method,
				URL:     r.Request.URL,
				Headers: r.Request.Headers,
			}
		}

		if r.Response != nil {
			c.Response = &JSONResponse{
				StatusCode: r.Response.StatusCode,
				Status:     r.Response.Status,
				Headers:    r.Response.Headers,
				Body:       r.Body,
				Duration:   millis(r.Response.Duration),
			}
		}

		if len(r.Assertions) > 0 {
			c.Assertions = make([]JSONAssertion, len(r.Assertions))
			for i, a := range r.Assertions {
				c.Assertions[i] = JSONAssertion{
					Subject:  a.Subject,
					Operator: a.Operator,
					Expected: a.Expected,
					Actual:   a.Actual,
					Passed:   a.Passed,
					Message:  a.Message,
				}
			}
		}

		f.contracts = append(f.contracts, c)
	}

	for _, s := range result.Skipped {
		f.contracts = append(f.contracts, JSONContract{
			Name:       s.Contract.DisplayName(),
			File:       result.Source,
			Outcome:    "skipped",
			SkipReason: s.Reason,
		})
	}

	if l := result.Latency; l.Count > 0 {
		f.latency = &JSONLatency{
			Min:  millis(l.Min),
			Mean: millis(l.Mean),
			P50:  millis(l.P50),
			P95:  millis(l.P95),
			P99:  millis(l.P99),
			Max:  millis(l.Max),
		}
	}
}

// FormatError records a failure that prevented the contracts from running.
func (f *JSONFormatter) FormatError(err error) {
	f.errors = append(f.errors, err.Error())
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	summary := JSONSummary{
		Total:    len(f.contracts),
		Outcomes: make(map[string]int),
		Latency:  f.latency,
	}
	for _, c := range f.contracts {
		summary.Outcomes[c.Outcome]++
		switch {
		case c.Outcome == "skipped":
			summary.Skipped++
		case c.Passed:
			summary.Passed++
		default:
			summary.Failed++
		}
	}

	output := JSONOutput{
		Summary:   summary,
		Contracts: f.contracts,
		Errors:    f.errors,
		Duration:  float64(totalDuration.Milliseconds()),
		Time:      time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
