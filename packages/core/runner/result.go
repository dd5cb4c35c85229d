package runner

import (
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/assertions"
	"github.com/abdul-hamid-achik/hitcontract/packages/contract"
	"github.com/abdul-hamid-achik/hitcontract/packages/http"
)

type Outcome int

const (
	Passed Outcome = iota
	AssertionFailure
	TransportError
	DecodeError
	RequestError
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "passed"
	case AssertionFailure:
		return "assertion_failure"
	case TransportError:
		return "transport_error"
	case DecodeError:
		return "decode_error"
	case RequestError:
		return "request_error"
	default:
		return "unknown"
	}
}

// Outcomes lists every outcome in declaration order.
var Outcomes = []Outcome{Passed, AssertionFailure, TransportError, DecodeError, RequestError}

// ExecutionResult is the record of one contract execution. Assertions holds
// the status check first, followed by one result per body rule. It is empty
// for transport and request errors.
type ExecutionResult struct {
	Contract   *contract.EndpointContract
	URL        string
	StatusCode int
	Body       any
	Duration   time.Duration
	Outcome    Outcome
	Error      error
	Request    *http.Request
	Response   *http.Response
	Assertions []*assertions.Result
}

func (r *ExecutionResult) fail(outcome Outcome, err error) *ExecutionResult {
	r.Outcome = outcome
	r.Error = err
	return r
}

func (r *ExecutionResult) Name() string {
	return r.Contract.DisplayName()
}

func (r *ExecutionResult) Passed() bool {
	return r.Outcome == Passed
}

func (r *ExecutionResult) FailedAssertions() []*assertions.Result {
	var failed []*assertions.Result
	for _, a := range r.Assertions {
		if !a.Passed {
			failed = append(failed, a)
		}
	}
	return failed
}

// RunResult aggregates the results of one invocation.
type RunResult struct {
	Source   string
	BaseURL  string
	Results  []*ExecutionResult
	Skipped  []contract.Skipped
	Duration time.Duration
	Passed   int
	Failed   int
	Latency  LatencySummary
}

func (r *RunResult) tally() {
	r.Passed, r.Failed = 0, 0
	for _, res := range r.Results {
		if res.Passed() {
			r.Passed++
		} else {
			r.Failed++
		}
	}
	r.Latency = summarizeLatency(r.Results)
}

func (r *RunResult) Total() int {
	return len(r.Results)
}

func (r *RunResult) Success() bool {
	return r.Failed == 0
}

// Unreachable reports whether the run failed and every failure was a
// transport error, which usually means the service is down.
func (r *RunResult) Unreachable() bool {
	if r.Failed == 0 {
		return false
	}
	for _, res := range r.Results {
		if !res.Passed() && res.Outcome != TransportError {
			return false
		}
	}
	return true
}

func (r *RunResult) CountByOutcome() map[Outcome]int {
	counts := make(map[Outcome]int, len(Outcomes))
	for _, res := range r.Results {
		counts[res.Outcome]++
	}
	return counts
}
