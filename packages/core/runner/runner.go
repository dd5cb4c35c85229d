package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/assertions"
	"github.com/abdul-hamid-achik/hitcontract/packages/contract"
	"github.com/abdul-hamid-achik/hitcontract/packages/http"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds one contract exchange
	DefaultTimeout = 5 * time.Second
	// DefaultConcurrency runs contracts sequentially
	DefaultConcurrency = 1
)

var (
	// ErrTimeout is reported when an exchange outlives its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrCanceled is reported when the run is interrupted.
	ErrCanceled = errors.New("canceled")
)

type Config struct {
	// Timeout applies to each contract separately.
	Timeout time.Duration
	// Concurrency is the maximum number of contracts in flight.
	Concurrency int
	// Rate limits request starts per second. Zero means unlimited.
	Rate float64
	// BaseDir resolves schema paths.
	BaseDir string
	// LogBodies adds response bodies to debug logs.
	LogBodies     bool
	Logger        *slog.Logger
	ClientOptions []http.ClientOption
}

// Runner executes endpoint contracts. It holds no per-run state, so one
// Runner may serve any number of runs, concurrently or not.
type Runner struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	config  *Config
}

func NewRunner(cfg *Config) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	clientOpts := append([]http.ClientOption{http.WithTimeout(cfg.Timeout)}, cfg.ClientOptions...)

	r := &Runner{
		client: http.NewClient(clientOpts...),
		logger: logger,
		config: cfg,
	}
	if cfg.Rate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}
	return r
}

// Run executes one contract against baseURL. Caller params fill path
// placeholders the contract does not define itself. Failures of any kind
// are recorded on the result; Run never panics or returns nil.
func (r *Runner) Run(ctx context.Context, c *contract.EndpointContract, baseURL string, params map[string]any) *ExecutionResult {
	result := &ExecutionResult{Contract: c}
	log := r.logger.With("contract", c.DisplayName())

	req, err := r.buildRequest(c, baseURL, params)
	if err != nil {
		log.Debug("request not built", "error", err)
		return result.fail(RequestError, err)
	}
	result.Request = req
	result.URL = req.URL

	if err := r.wait(ctx); err != nil {
		log.Debug("not started", "error", err)
		return result.fail(TransportError, err)
	}

	log.Debug("request", "method", req.Method, "url", req.URL, "body_bytes", len(req.Body))

	start := time.Now()
	resp, err := r.client.Do(ctx, req)
	result.Duration = time.Since(start)
	if err != nil {
		err = classifyTransport(ctx, err)
		log.Debug("transport failure", "error", err, "duration", result.Duration)
		return result.fail(TransportError, err)
	}
	result.Response = resp
	result.StatusCode = resp.StatusCode

	attrs := []any{"status", resp.StatusCode, "duration", result.Duration, "body_bytes", len(resp.Body)}
	if r.config.LogBodies {
		attrs = append(attrs, "body", resp.BodyString())
	}
	log.Debug("response", attrs...)

	results, err := assertions.EvaluateAll(resp, c.ExpectStatus, c.Assertions, assertions.WithBaseDir(r.config.BaseDir))
	result.Assertions = results
	if err != nil {
		log.Debug("decode failure", "error", err)
		return result.fail(DecodeError, err)
	}
	if resp.HasBody() {
		result.Body, _ = resp.BodyJSON()
	}

	if assertions.AllPassed(results) {
		result.Outcome = Passed
	} else {
		result.Outcome = AssertionFailure
		for _, a := range result.FailedAssertions() {
			log.Debug("assertion failed", "subject", a.Subject, "operator", a.Operator, "message", a.Message)
		}
	}
	return result
}

func (r *Runner) buildRequest(c *contract.EndpointContract, baseURL string, params map[string]any) (*http.Request, error) {
	path, err := contract.ExpandPath(c.Path, c.EffectiveParams(params))
	if err != nil {
		return nil, err
	}

	requestURL := http.JoinURL(baseURL, path)
	if err := http.ValidateURL(requestURL); err != nil {
		return nil, err
	}

	req := http.NewRequest(c.Method.String(), requestURL)
	for k, v := range c.Headers {
		req.SetHeader(k, v)
	}
	if c.HasBody() {
		if err := req.SetJSONBody(c.Body); err != nil {
			return nil, err
		}
	}
	req.SetTimeout(r.config.Timeout)
	return req, nil
}

// wait blocks until the limiter admits one more request. A run that has
// already ended admits nothing.
func (r *Runner) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return classifyTransport(ctx, err)
	}
	if r.limiter == nil {
		return nil
	}
	if err := r.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return classifyTransport(ctx, ctx.Err())
		}
		// the next slot lies beyond the run deadline
		return ErrTimeout
	}
	return nil
}

func classifyTransport(ctx context.Context, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, context.Canceled):
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ErrCanceled
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrTimeout
	default:
		return err
	}
}

// RunAll executes every contract and returns results in input order. One
// contract's failure never prevents the others from running.
func (r *Runner) RunAll(ctx context.Context, contracts []*contract.EndpointContract, baseURL string, params map[string]any) []*ExecutionResult {
	if r.config.Concurrency <= 1 || len(contracts) <= 1 {
		results := make([]*ExecutionResult, len(contracts))
		for i, c := range contracts {
			results[i] = r.Run(ctx, c, baseURL, params)
		}
		return results
	}
	return r.runParallel(ctx, contracts, baseURL, params)
}

func (r *Runner) runParallel(ctx context.Context, contracts []*contract.EndpointContract, baseURL string, params map[string]any) []*ExecutionResult {
	results := make([]*ExecutionResult, len(contracts))
	var wg sync.WaitGroup
	sem := make(chan struct{}, r.config.Concurrency)

	for i, c := range contracts {
		wg.Add(1)
		sem <- struct{}{} // acquire semaphore

		go func(idx int, c *contract.EndpointContract) {
			defer wg.Done()
			defer func() { <-sem }() // release semaphore

			results[idx] = r.Run(ctx, c, baseURL, params)
		}(i, c)
	}

	wg.Wait()
	return results
}

// RunSuite runs contracts and summarizes the outcome.
func (r *Runner) RunSuite(ctx context.Context, contracts []*contract.EndpointContract, baseURL string, params map[string]any) *RunResult {
	start := time.Now()
	r.logger.Info("running contracts", "count", len(contracts), "base_url", baseURL, "concurrency", r.config.Concurrency)

	result := &RunResult{
		BaseURL: baseURL,
		Results: r.RunAll(ctx, contracts, baseURL, params),
	}
	result.Duration = time.Since(start)
	result.tally()

	r.logger.Info("run finished", "passed", result.Passed, "failed", result.Failed, "duration", result.Duration)
	return result
}
