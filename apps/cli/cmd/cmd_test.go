package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/contract"
	"github.com/abdul-hamid-achik/hitcontract/packages/core/config"
	"github.com/abdul-hamid-achik/hitcontract/packages/core/env"
	"github.com/abdul-hamid-achik/hitcontract/packages/core/runner"
	"github.com/abdul-hamid-achik/hitcontract/packages/export/metrics"
	"github.com/abdul-hamid-achik/hitcontract/packages/logging"
	"github.com/abdul-hamid-achik/hitcontract/packages/output"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const postsContracts = `baseUrl: %s
params:
  postId: 7
environments:
  other:
    params:
      postId: 8
contracts:
  - name: list posts
    tags: [smoke]
    method: GET
    path: /posts
    expectStatus: 200
    assert:
      - nonEmpty
      - isArray
  - name: get post
    tags: [read]
    method: GET
    path: /posts/{postId}
    expectStatus: 200
    assert:
      - fieldEquals: {key: id, value: "{{postId}}"}
  - name: delete post
    method: DELETE
    path: /posts/29
    expectStatus: 200
    skip: not yet
`

func newPostsServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/posts":
			_, _ = w.Write([]byte(`[{"id":1},{"id":2}]`))
		case strings.HasPrefix(r.URL.Path, "/posts/"):
			_, _ = fmt.Fprintf(w, `{"id":%s}`, strings.TrimPrefix(r.URL.Path, "/posts/"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func writeContracts(t *testing.T, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hitcontract.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(postsContracts, baseURL)), 0644))
	return path
}

func discardLogger(t *testing.T) *slog.Logger {
	t.Helper()
	logger, err := logging.New(io.Discard, logging.Options{})
	require.NoError(t, err)
	return logger
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", errors.New("unknown flag"), ExitUsageError},
		{"config error", configError(errors.New("bad file")), ExitConfigError},
		{"usage error", usageError("bad %s", "flag"), ExitUsageError},
		{"wrapped", fmt.Errorf("outer: %w", withExitCode(ExitNetworkError, nil)), ExitNetworkError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestExitError(t *testing.T) {
	cause := errors.New("boom")
	err := withExitCode(ExitConfigError, cause)
	assert.Equal(t, "boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "exit status 1", withExitCode(ExitContractFailure, nil).Error())
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, configError(errors.New("bad file")))
	assert.Equal(t, "Error: bad file\n", buf.String())

	buf.Reset()
	printError(&buf, withExitCode(ExitContractFailure, nil))
	assert.Empty(t, buf.String())
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"id=5", "name=abc", "ratio=1.5", "flag=true", "empty=", "obj={a: 1}", "eq=a=b"})
	require.NoError(t, err)
	assert.Equal(t, 5, params["id"])
	assert.Equal(t, "abc", params["name"])
	assert.Equal(t, 1.5, params["ratio"])
	assert.Equal(t, true, params["flag"])
	assert.Equal(t, "", params["empty"])
	assert.Equal(t, "{a: 1}", params["obj"])
	assert.Equal(t, "a=b", params["eq"])

	for _, bad := range []string{"novalue", "=5", " =5"} {
		_, err := parseParams([]string{bad})
		require.Error(t, err, bad)
		assert.Equal(t, ExitUsageError, exitCode(err))
	}
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b ,"))
}

func TestLoadSuite(t *testing.T) {
	path := writeContracts(t, "http://localhost:1")

	t.Run("defaults", func(t *testing.T) {
		loaded, err := loadSuite(suiteOptions{path: path}, discardLogger(t))
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:1", loaded.suite.BaseURL)
		assert.Equal(t, 7, loaded.suite.Params["postId"])
		assert.Len(t, loaded.selection.Contracts, 2)
		require.Len(t, loaded.selection.Skipped, 1)
		assert.Equal(t, "not yet", loaded.selection.Skipped[0].Reason)
	})

	t.Run("environment then params then base url", func(t *testing.T) {
		loaded, err := loadSuite(suiteOptions{path: path, envName: "other"}, discardLogger(t))
		require.NoError(t, err)
		assert.Equal(t, 8, loaded.suite.Params["postId"])

		loaded, err = loadSuite(suiteOptions{
			path:    path,
			envName: "other",
			params:  []string{"postId=9"},
			baseURL: "http://example.test",
		}, discardLogger(t))
		require.NoError(t, err)
		assert.Equal(t, 9, loaded.suite.Params["postId"])
		assert.Equal(t, "http://example.test", loaded.suite.BaseURL)
	})

	t.Run("filter", func(t *testing.T) {
		loaded, err := loadSuite(suiteOptions{path: path, filter: config.Filter{Tags: []string{"smoke"}}}, discardLogger(t))
		require.NoError(t, err)
		require.Len(t, loaded.selection.Contracts, 1)
		assert.Equal(t, "list posts", loaded.selection.Contracts[0].Name)
	})

	t.Run("config errors", func(t *testing.T) {
		_, err := loadSuite(suiteOptions{path: filepath.Join(t.TempDir(), "missing.yaml")}, discardLogger(t))
		assert.Equal(t, ExitConfigError, exitCode(err))

		_, err = loadSuite(suiteOptions{path: path, envName: "nope"}, discardLogger(t))
		assert.ErrorIs(t, err, config.ErrUnknownEnvironment)
		assert.Equal(t, ExitConfigError, exitCode(err))
	})

	t.Run("bad param is a usage error", func(t *testing.T) {
		_, err := loadSuite(suiteOptions{path: path, params: []string{"oops"}}, discardLogger(t))
		assert.Equal(t, ExitUsageError, exitCode(err))
	})
}

func TestRunContracts(t *testing.T) {
	server := newPostsServer(t)
	path := writeContracts(t, server.URL)

	t.Run("passing run", func(t *testing.T) {
		var out bytes.Buffer
		result, err := runContracts(context.Background(), runOptions{
			suite:  suiteOptions{path: path},
			output: "json",
		}, &out, discardLogger(t), nil)
		require.NoError(t, err)
		assert.True(t, result.Success())
		assert.Equal(t, 2, result.Total())
		assert.Len(t, result.Skipped, 1)
		assert.Equal(t, path, result.Source)
		assert.Equal(t, ExitSuccess, runExitCode(result))

		var doc output.JSONOutput
		require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
		assert.Equal(t, 2, doc.Summary.Passed)
		assert.Equal(t, 1, doc.Summary.Skipped)
	})

	t.Run("param override fails the field check", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":1}`))
		}))
		defer server.Close()

		result, err := runContracts(context.Background(), runOptions{
			suite:  suiteOptions{path: path, baseURL: server.URL, filter: config.Filter{Name: "get*"}},
			output: "tap",
		}, io.Discard, discardLogger(t), nil)
		require.NoError(t, err)
		require.Len(t, result.Results, 1)
		assert.Equal(t, runner.AssertionFailure, result.Results[0].Outcome)
		assert.Equal(t, ExitContractFailure, runExitCode(result))
	})

	t.Run("unreachable service", func(t *testing.T) {
		closed := httptest.NewServer(http.NotFoundHandler())
		closed.Close()

		result, err := runContracts(context.Background(), runOptions{
			suite:   suiteOptions{path: path, baseURL: closed.URL},
			output:  "console",
			noColor: true,
			timeout: time.Second,
		}, io.Discard, discardLogger(t), nil)
		require.NoError(t, err)
		assert.True(t, result.Unreachable())
		assert.Equal(t, ExitNetworkError, runExitCode(result))
	})

	t.Run("output and metrics files", func(t *testing.T) {
		dir := t.TempDir()
		reportPath := filepath.Join(dir, "report.xml")
		metricsPath := filepath.Join(dir, "hitcontract.prom")

		var out bytes.Buffer
		_, err := runContracts(context.Background(), runOptions{
			suite:       suiteOptions{path: path},
			output:      "junit",
			outputFile:  reportPath,
			metricsFile: metricsPath,
		}, &out, discardLogger(t), metrics.NewCollector())
		require.NoError(t, err)
		assert.Empty(t, out.String())

		report, err := os.ReadFile(reportPath)
		require.NoError(t, err)
		assert.Contains(t, string(report), "<testsuites")

		prom, err := os.ReadFile(metricsPath)
		require.NoError(t, err)
		assert.Contains(t, string(prom), `hitcontract_contracts_total{contract="list posts",method="GET",outcome="passed"} 1`)
	})

	t.Run("load error is reported by the formatter", func(t *testing.T) {
		var out bytes.Buffer
		result, err := runContracts(context.Background(), runOptions{
			suite:  suiteOptions{path: filepath.Join(t.TempDir(), "missing.yaml")},
			output: "json",
		}, &out, discardLogger(t), nil)
		require.Error(t, err)
		assert.Nil(t, result)
		assert.Equal(t, ExitConfigError, exitCode(err))

		var doc output.JSONOutput
		require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
		require.Len(t, doc.Errors, 1)
		assert.Contains(t, doc.Errors[0], "missing.yaml")

		var stderr bytes.Buffer
		printError(&stderr, err)
		assert.Empty(t, stderr.String())
	})

	t.Run("unknown output format", func(t *testing.T) {
		_, err := runContracts(context.Background(), runOptions{
			suite:  suiteOptions{path: path},
			output: "html",
		}, io.Discard, discardLogger(t), nil)
		assert.Equal(t, ExitUsageError, exitCode(err))
	})
}

func TestRunnerConfig(t *testing.T) {
	path := writeContracts(t, "http://localhost:1")
	loaded, err := loadSuite(suiteOptions{path: path}, discardLogger(t))
	require.NoError(t, err)
	loaded.config.Concurrency = 3
	loaded.config.Rate = 10

	cfg := runnerConfig(runOptions{}, loaded, discardLogger(t))
	assert.Equal(t, time.Duration(config.DefaultTimeoutMs)*time.Millisecond, cfg.Timeout)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 10.0, cfg.Rate)
	assert.False(t, cfg.LogBodies)
	assert.Equal(t, loaded.suite.Dir, cfg.BaseDir)

	cfg = runnerConfig(runOptions{timeout: time.Second, concurrency: 8, rate: 2, verbose: 2}, loaded, discardLogger(t))
	assert.Equal(t, time.Second, cfg.Timeout)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, 2.0, cfg.Rate)
	assert.True(t, cfg.LogBodies)
}

func TestParseDurationFlag(t *testing.T) {
	d, err := parseDurationFlag("timeout", "")
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = parseDurationFlag("timeout", "250ms")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	for _, bad := range []string{"soon", "-1s"} {
		_, err = parseDurationFlag("timeout", bad)
		assert.Equal(t, ExitUsageError, exitCode(err), bad)
	}
}

func TestWatchedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hitcontract.yaml")
	content := `baseUrl: http://localhost:1
contracts:
  - method: GET
    path: /posts
    expectStatus: 200
    assert:
      - schema: posts.schema.json
  - method: GET
    path: /users
    expectStatus: 200
    assert:
      - schema: posts.schema.json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	loaded, err := loadSuite(suiteOptions{path: path}, discardLogger(t))
	require.NoError(t, err)

	files := watchedFiles(loaded, ".env")
	assert.Equal(t, []string{path, ".env", filepath.Join(dir, "posts.schema.json")}, files)
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	forceInit = false
	t.Cleanup(func() { forceInit = false })

	require.NoError(t, initCommand(cmd, []string{dir}))
	assert.Contains(t, out.String(), "Created:")

	cfg, err := config.LoadConfig(filepath.Join(dir, "hitcontract.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Len(t, cfg.Contracts, 5)
	assert.Equal(t, "{{random(1,100)}}", cfg.Params["postId"])
	assert.Contains(t, cfg.EnvironmentNames(), "local")

	create := cfg.Contracts[2]
	assert.Equal(t, "POST", create.Method)
	assert.Equal(t, 201, create.ExpectStatus)
	require.Len(t, create.Assert, 3)
	assert.Equal(t, contract.RuleHasKeys, create.Assert[0].Kind)
	assert.Equal(t, contract.RuleFieldEquals, create.Assert[1].Kind)
	assert.Equal(t, contract.RuleDeepIncludes, create.Assert[2].Kind)

	update := cfg.Contracts[3]
	assert.Equal(t, "PUT", update.Method)
	assert.Equal(t, "{{postId}}", update.Body["userId"])
	require.Len(t, update.Assert, 3)
	assert.Equal(t, []string{"userId", "title", "body", "id"}, update.Assert[0].Keys)
	assert.Equal(t, contract.FieldEquals("userId", "{{postId}}"), update.Assert[1])
	assert.Equal(t, contract.RuleDeepIncludes, update.Assert[2].Kind)

	suite, err := cfg.Build(env.NewResolver())
	require.NoError(t, err)
	postID := suite.Params["postId"]
	require.IsType(t, 0, postID)
	built := suite.Contracts[3]
	assert.Equal(t, postID, built.Body["userId"])
	assert.Equal(t, postID, built.Assertions[1].Value)
	assert.Equal(t, postID, built.Assertions[2].Subset["userId"])

	err = initCommand(cmd, []string{dir})
	assert.Equal(t, ExitUsageError, exitCode(err))

	forceInit = true
	assert.NoError(t, initCommand(cmd, []string{dir}))
}

func TestValidateCommand(t *testing.T) {
	path := writeContracts(t, "http://localhost:1")
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, validateCommand(cmd, []string{path}))
	assert.Contains(t, out.String(), "(3 contracts)")

	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	withRefs := filepath.Join(t.TempDir(), "refs.yaml")
	require.NoError(t, os.WriteFile(withRefs, []byte(`baseUrl: http://localhost:1
params:
  postId: 1
contracts:
  - method: POST
    path: /posts
    body: {userId: "{{postId}}", title: "{{missingTitle}}"}
    expectStatus: 201
`), 0644))
	require.NoError(t, validateCommand(cmd, []string{withRefs}))
	assert.Equal(t, "Warning: unresolved reference in contract 1 (POST /posts) body: {{missingTitle}}\n", stderr.String())

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`contracts:
  - method: PATCH
    path: /posts/{id}
    expectStatus: 200
`), 0644))
	err := validateCommand(cmd, []string{bad})
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, exitCode(err))
	assert.ErrorIs(t, err, contract.ErrInvalidMethod)
}
