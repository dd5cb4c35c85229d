package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/contract"
	"github.com/abdul-hamid-achik/hitcontract/packages/core/config"
	"github.com/abdul-hamid-achik/hitcontract/packages/core/runner"
	"github.com/abdul-hamid-achik/hitcontract/packages/export/metrics"
	"github.com/abdul-hamid-achik/hitcontract/packages/http"
	"github.com/abdul-hamid-achik/hitcontract/packages/logging"
	"github.com/abdul-hamid-achik/hitcontract/packages/output"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [contract-file]",
	Short: "Run endpoint contracts",
	Long: `Run the contracts in a contract file against a service.

Without a file argument the current directory is searched for
hitcontract.yaml, hitcontract.yml, .hitcontract.yaml, contracts.yaml
or hitcontract.json.

Exit codes:
  0   all contracts passed
  1   at least one contract failed
  3   the contract file could not be loaded
  4   every failed contract failed to reach the service
  64  invalid usage

Examples:
  hitcontract run
  hitcontract run posts.yaml --env local
  hitcontract run posts.yaml --param postId=29 --tags smoke
  hitcontract run posts.yaml --output junit --output-file report.xml
  hitcontract run posts.yaml --concurrency 4 --run-timeout 30s
  hitcontract run posts.yaml --watch -v`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	envFlag         string
	envFileFlag     string
	baseURLFlag     string
	paramFlags      []string
	nameFlag        string
	tagsFlag        string
	verboseFlag     int // 0=off, 1=-v, 2=-vv
	noColorFlag     bool
	outputFlag      string
	outputFileFlag  string
	timeoutFlag     string
	runTimeoutFlag  string
	concurrencyFlag int
	rateFlag        float64
	watchFlag       bool
	proxyFlag       string
	insecureFlag    bool
	logLevelFlag    string
	logFormatFlag   string
	metricsFileFlag string
)

func init() {
	// Core flags
	runCmd.Flags().StringVarP(&envFlag, "env", "e", getEnvString("HITCONTRACT_ENV", ""), "Environment section to apply (env: HITCONTRACT_ENV)")
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("HITCONTRACT_ENV_FILE", ""), "Path to .env file for {{$NAME}} lookups (env: HITCONTRACT_ENV_FILE)")
	runCmd.Flags().StringVar(&baseURLFlag, "base-url", getEnvString("HITCONTRACT_BASE_URL", ""), "Override the base URL (env: HITCONTRACT_BASE_URL)")
	runCmd.Flags().StringArrayVarP(&paramFlags, "param", "p", nil, "Set a param as key=value (repeatable)")
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only contracts matching name pattern (* wildcard)")
	runCmd.Flags().StringVarP(&tagsFlag, "tags", "t", getEnvString("HITCONTRACT_TAGS", ""), "Run only contracts with specified tags (comma-separated) (env: HITCONTRACT_TAGS)")

	// Output flags
	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v for request detail and debug logs, -vv adds response bodies)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("HITCONTRACT_NO_COLOR", false), "Disable colored output (env: HITCONTRACT_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("HITCONTRACT_OUTPUT", "console"), "Output format: console, json, junit, tap (env: HITCONTRACT_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("HITCONTRACT_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: HITCONTRACT_OUTPUT_FILE)")
	runCmd.Flags().StringVar(&logLevelFlag, "log-level", getEnvString("HITCONTRACT_LOG_LEVEL", "warn"), "Log level: debug, info, warn, error (env: HITCONTRACT_LOG_LEVEL)")
	runCmd.Flags().StringVar(&logFormatFlag, "log-format", getEnvString("HITCONTRACT_LOG_FORMAT", "text"), "Log format: text, json (env: HITCONTRACT_LOG_FORMAT)")
	runCmd.Flags().StringVar(&metricsFileFlag, "metrics-file", getEnvString("HITCONTRACT_METRICS_FILE", ""), "Write Prometheus metrics to file after each run (env: HITCONTRACT_METRICS_FILE)")

	// Execution flags
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("HITCONTRACT_TIMEOUT", ""), "Per-contract timeout, e.g. 5s (default: timeoutMs from the file) (env: HITCONTRACT_TIMEOUT)")
	runCmd.Flags().StringVar(&runTimeoutFlag, "run-timeout", getEnvString("HITCONTRACT_RUN_TIMEOUT", ""), "Timeout for the whole run, e.g. 1m (env: HITCONTRACT_RUN_TIMEOUT)")
	runCmd.Flags().IntVar(&concurrencyFlag, "concurrency", getEnvInt("HITCONTRACT_CONCURRENCY", 0), "Maximum contracts in flight (default: concurrency from the file) (env: HITCONTRACT_CONCURRENCY)")
	runCmd.Flags().Float64Var(&rateFlag, "rate", getEnvFloat("HITCONTRACT_RATE", 0), "Maximum requests per second (default: rate from the file) (env: HITCONTRACT_RATE)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch the contract file for changes and re-run")

	// Network flags
	runCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("HITCONTRACT_PROXY", ""), "Proxy URL for HTTP requests (env: HITCONTRACT_PROXY)")
	runCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("HITCONTRACT_INSECURE", false), "Disable SSL certificate validation (env: HITCONTRACT_INSECURE)")
}

// runOptions is the parsed form of the run flags.
type runOptions struct {
	suite       suiteOptions
	timeout     time.Duration // zero: from the file
	runTimeout  time.Duration // zero: none
	concurrency int           // zero: from the file
	rate        float64       // zero: from the file
	output      string
	outputFile  string
	verbose     int
	noColor     bool
	metricsFile string
	proxy       string
	insecure    bool
}

func parseDurationFlag(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, usageError("invalid --%s value %q (use format like 5s, 1m, 500ms)", name, value)
	}
	return d, nil
}

func runOptionsFromFlags(args []string) (runOptions, error) {
	opts := runOptions{
		suite: suiteOptions{
			envName: envFlag,
			envFile: envFileFlag,
			baseURL: baseURLFlag,
			params:  paramFlags,
			filter:  config.Filter{Name: nameFlag, Tags: splitList(tagsFlag)},
		},
		concurrency: concurrencyFlag,
		rate:        rateFlag,
		output:      outputFlag,
		outputFile:  outputFileFlag,
		verbose:     verboseFlag,
		noColor:     noColorFlag,
		metricsFile: metricsFileFlag,
		proxy:       proxyFlag,
		insecure:    insecureFlag,
	}
	if len(args) > 0 {
		opts.suite.path = args[0]
	}
	if opts.concurrency < 0 {
		return opts, usageError("--concurrency must not be negative")
	}
	if opts.rate < 0 {
		return opts, usageError("--rate must not be negative")
	}

	var err error
	if opts.timeout, err = parseDurationFlag("timeout", timeoutFlag); err != nil {
		return opts, err
	}
	if opts.runTimeout, err = parseDurationFlag("run-timeout", runTimeoutFlag); err != nil {
		return opts, err
	}
	return opts, nil
}

func newLogger(w io.Writer, verbose int, noColor bool) (*slog.Logger, error) {
	level, err := logging.ParseLevel(logLevelFlag)
	if err != nil {
		return nil, usageError("%v", err)
	}
	logger, err := logging.New(w, logging.Options{
		Level:   logging.VerbosityLevel(level, verbose),
		Format:  logFormatFlag,
		NoColor: noColor,
	})
	if err != nil {
		return nil, usageError("%v", err)
	}
	return logger, nil
}

func runCommand(cmd *cobra.Command, args []string) error {
	opts, err := runOptionsFromFlags(args)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), opts.verbose, opts.noColor)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var collector *metrics.Collector
	if opts.metricsFile != "" {
		var labels map[string]string
		if opts.suite.envName != "" {
			labels = map[string]string{"env": opts.suite.envName}
		}
		collector = metrics.NewCollector(metrics.WithConstLabels(labels))
	}

	if watchFlag {
		return watchContracts(ctx, cmd, opts, logger, collector)
	}

	result, err := runContracts(ctx, opts, cmd.OutOrStdout(), logger, collector)
	if err != nil {
		return err
	}
	if code := runExitCode(result); code != ExitSuccess {
		return withExitCode(code, nil)
	}
	return nil
}

// runExitCode maps a finished run to the process exit code.
func runExitCode(result *runner.RunResult) int {
	switch {
	case result.Success():
		return ExitSuccess
	case result.Unreachable():
		return ExitNetworkError
	default:
		return ExitContractFailure
	}
}

// runContracts loads, runs and reports one pass over the contract file.
func runContracts(ctx context.Context, opts runOptions, stdout io.Writer, logger *slog.Logger, collector *metrics.Collector) (*runner.RunResult, error) {
	w := stdout
	if opts.outputFile != "" {
		f, err := os.Create(opts.outputFile)
		if err != nil {
			return nil, fmt.Errorf("cannot create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	formatter, err := output.New(opts.output, w, opts.verbose > 0, opts.noColor)
	if err != nil {
		return nil, usageError("%v", err)
	}
	formatter.FormatHeader(version)

	loaded, err := loadSuite(opts.suite, logger)
	if err != nil {
		formatter.FormatError(err)
		if flushable, ok := formatter.(output.Flushable); ok {
			if ferr := flushable.Flush(0); ferr != nil {
				logger.Warn("failed to write report", "error", ferr)
			}
		}
		return nil, withExitCode(exitCode(err), nil)
	}

	r := runner.NewRunner(runnerConfig(opts, loaded, logger))

	runCtx := ctx
	if opts.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.runTimeout)
		defer cancel()
	}

	suite := loaded.suite
	result := r.RunSuite(runCtx, loaded.selection.Contracts, suite.BaseURL, suite.Params)
	result.Source = suite.Source
	result.Skipped = loaded.selection.Skipped

	formatter.FormatResult(result)
	if flushable, ok := formatter.(output.Flushable); ok {
		if err := flushable.Flush(result.Duration); err != nil {
			return nil, fmt.Errorf("error writing output: %w", err)
		}
	}

	if collector != nil {
		collector.Record(result)
		if err := collector.WriteFile(opts.metricsFile); err != nil {
			logger.Warn("failed to write metrics", "path", opts.metricsFile, "error", err)
		}
	}

	return result, nil
}

func runnerConfig(opts runOptions, loaded *loadedSuite, logger *slog.Logger) *runner.Config {
	cfg := loaded.config

	timeout := loaded.suite.Timeout
	if opts.timeout > 0 {
		timeout = opts.timeout
	}
	concurrency := cfg.Concurrency
	if opts.concurrency > 0 {
		concurrency = opts.concurrency
	}
	rate := cfg.Rate
	if opts.rate > 0 {
		rate = opts.rate
	}

	proxy := cfg.Proxy
	if opts.proxy != "" {
		proxy = opts.proxy
	}
	validateSSL := cfg.GetValidateSSL() && !opts.insecure

	clientOpts := []http.ClientOption{
		http.WithFollowRedirects(cfg.GetFollowRedirects()),
		http.WithValidateSSL(validateSSL),
		http.WithDefaultHeaders(loaded.suite.Headers),
	}
	if proxy != "" {
		clientOpts = append(clientOpts, http.WithProxy(proxy))
	}

	return &runner.Config{
		Timeout:       timeout,
		Concurrency:   concurrency,
		Rate:          rate,
		BaseDir:       loaded.suite.Dir,
		LogBodies:     opts.verbose > 1,
		Logger:        logger,
		ClientOptions: clientOpts,
	}
}

// watchedFiles returns the contract file, the .env file and every schema
// file the contracts reference.
func watchedFiles(loaded *loadedSuite, envFile string) []string {
	files := []string{loaded.config.Path}
	if envFile != "" {
		files = append(files, envFile)
	}
	seen := make(map[string]bool)
	for _, c := range loaded.suite.Contracts {
		for _, rule := range c.Assertions {
			if rule.Kind != contract.RuleMatchesSchema {
				continue
			}
			path := rule.SchemaPath
			if !filepath.IsAbs(path) {
				path = filepath.Join(loaded.suite.Dir, path)
			}
			if !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
		}
	}
	return files
}

func watchContracts(ctx context.Context, cmd *cobra.Command, opts runOptions, logger *slog.Logger, collector *metrics.Collector) error {
	out := cmd.OutOrStdout()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	lastCode := ExitSuccess
	watched := make(map[string]bool)
	watchedDirs := make(map[string]bool)

	// schema files referenced by the contracts can change between runs
	runAndWatch := func() {
		result, err := runContracts(ctx, opts, out, logger, collector)
		if err != nil {
			printError(cmd.ErrOrStderr(), err)
			lastCode = exitCode(err)
		} else {
			lastCode = runExitCode(result)
		}

		files := []string{opts.suite.path}
		if loaded, err := loadSuite(opts.suite, logger); err == nil {
			files = watchedFiles(loaded, opts.suite.envFile)
		} else if path, ok := config.FindConfig("."); ok && opts.suite.path == "" {
			files = []string{path}
		}
		for _, f := range files {
			if f == "" {
				continue
			}
			abs, err := filepath.Abs(f)
			if err != nil {
				continue
			}
			watched[abs] = true
			dir := filepath.Dir(abs)
			if !watchedDirs[dir] {
				if err := watcher.Add(dir); err != nil {
					logger.Warn("failed to watch directory", "dir", dir, "error", err)
					continue
				}
				watchedDirs[dir] = true
			}
		}
		fmt.Fprintf(out, "\nWatching for changes... (press Ctrl+C to stop)\n")
	}

	runAndWatch()
	if len(watchedDirs) == 0 {
		return configError(fmt.Errorf("no contract file to watch"))
	}

	// Debounce timer for rapid file changes
	debounce := time.NewTimer(WatchDebounceDelay)
	debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			if lastCode != ExitSuccess {
				return withExitCode(lastCode, nil)
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, _ := filepath.Abs(event.Name)
			if !watched[abs] || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			logger.Debug("file changed", "path", event.Name)
			debounce.Reset(WatchDebounceDelay)

		case <-debounce.C:
			fmt.Fprintf(out, "\nFile changed, re-running contracts...\n")
			runAndWatch()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}
