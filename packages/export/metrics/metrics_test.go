package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/contract"
	"github.com/abdul-hamid-achik/hitcontract/packages/core/runner"
	"github.com/abdul-hamid-achik/hitcontract/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRun() *runner.RunResult {
	list := contract.MustNew(contract.GET, "/posts", 200, contract.WithName("list posts"))
	remove := contract.MustNew(contract.DELETE, "/posts/29", 200, contract.WithName("delete post"))

	return &runner.RunResult{
		Results: []*runner.ExecutionResult{
			{
				Contract:   list,
				StatusCode: 200,
				Duration:   30 * time.Millisecond,
				Outcome:    runner.Passed,
				Response:   &http.Response{StatusCode: 200},
			},
			{
				Contract: remove,
				Outcome:  runner.TransportError,
			},
		},
		Skipped:  []contract.Skipped{{Contract: list, Reason: "x"}},
		Duration: 2 * time.Second,
		Passed:   1,
		Failed:   1,
	}
}

func writeAndRead(t *testing.T, c *Collector) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hitcontract.prom")
	require.NoError(t, c.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestCollector_Record(t *testing.T) {
	c := NewCollector()
	c.Record(sampleRun())

	out := writeAndRead(t, c)

	assert.Contains(t, out, `hitcontract_contracts_total{contract="list posts",method="GET",outcome="passed"} 1`)
	assert.Contains(t, out, `hitcontract_contracts_total{contract="delete post",method="DELETE",outcome="transport_error"} 1`)
	assert.Contains(t, out, `hitcontract_contract_duration_seconds_count{contract="list posts"} 1`)
	assert.NotContains(t, out, `hitcontract_contract_duration_seconds_count{contract="delete post"}`)
	assert.Contains(t, out, `hitcontract_responses_by_status_total{status="200"} 1`)
	assert.Contains(t, out, "hitcontract_contracts_skipped_total 1")
	assert.Contains(t, out, "hitcontract_run_duration_seconds 2")
	assert.Contains(t, out, "hitcontract_last_run_failed_contracts 1")
}

func TestCollector_AccumulatesAcrossRuns(t *testing.T) {
	c := NewCollector()
	c.Record(sampleRun())
	c.Record(sampleRun())

	out := writeAndRead(t, c)
	assert.Contains(t, out, `hitcontract_contracts_total{contract="list posts",method="GET",outcome="passed"} 2`)
	assert.Contains(t, out, "hitcontract_last_run_failed_contracts 1")
}

func TestCollector_Options(t *testing.T) {
	c := NewCollector(
		WithConstLabels(map[string]string{"env": "staging"}),
		WithBuckets([]float64{0.01, 0.1}),
	)
	c.Record(sampleRun())

	out := writeAndRead(t, c)
	assert.Contains(t, out, `hitcontract_contract_duration_seconds_bucket{contract="list posts",env="staging",le="0.1"} 1`)
	assert.Contains(t, out, `hitcontract_contract_duration_seconds_bucket{contract="list posts",env="staging",le="0.01"} 0`)
}

func TestCollector_Registry(t *testing.T) {
	c := NewCollector()
	families, err := c.Registry().Gather()
	require.NoError(t, err)
	// gauges and the skipped counter are present before any run
	assert.Len(t, families, 4)
}
