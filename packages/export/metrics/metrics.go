// Package metrics exports contract run results in the Prometheus text
// format, for pickup by a node_exporter textfile collector or a push step
// in CI.
package metrics

import (
	"strconv"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/core/runner"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hitcontract"

// Collector accumulates run results into a private registry, so nothing
// leaks into the default one.
type Collector struct {
	registry *prometheus.Registry

	contracts     *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	statuses      *prometheus.CounterVec
	skipped       prometheus.Counter
	runDuration   prometheus.Gauge
	lastRun       prometheus.Gauge
	lastRunFailed prometheus.Gauge
}

type CollectorOption func(*collectorConfig)

type collectorConfig struct {
	buckets     []float64
	constLabels prometheus.Labels
}

// WithBuckets sets the duration histogram buckets, in seconds
func WithBuckets(buckets []float64) CollectorOption {
	return func(c *collectorConfig) {
		c.buckets = buckets
	}
}

// WithConstLabels attaches labels such as the environment to every metric
func WithConstLabels(labels map[string]string) CollectorOption {
	return func(c *collectorConfig) {
		c.constLabels = labels
	}
}

func NewCollector(opts ...CollectorOption) *Collector {
	cfg := &collectorConfig{buckets: prometheus.DefBuckets}
	for _, opt := range opts {
		opt(cfg)
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		contracts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "contracts_total",
			Help:        "Contract executions by outcome.",
			ConstLabels: cfg.constLabels,
		}, []string{"contract", "method", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "contract_duration_seconds",
			Help:        "Exchange duration of contracts that received a response.",
			Buckets:     cfg.buckets,
			ConstLabels: cfg.constLabels,
		}, []string{"contract"}),
		statuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "responses_by_status_total",
			Help:        "Responses by HTTP status code.",
			ConstLabels: cfg.constLabels,
		}, []string{"status"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "contracts_skipped_total",
			Help:        "Contracts selected out of a run.",
			ConstLabels: cfg.constLabels,
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "run_duration_seconds",
			Help:        "Wall time of the last run.",
			ConstLabels: cfg.constLabels,
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "last_run_timestamp_seconds",
			Help:        "Unix time the last run finished.",
			ConstLabels: cfg.constLabels,
		}),
		lastRunFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "last_run_failed_contracts",
			Help:        "Failed contracts in the last run.",
			ConstLabels: cfg.constLabels,
		}),
	}

	c.registry.MustRegister(c.contracts, c.duration, c.statuses, c.skipped, c.runDuration, c.lastRun, c.lastRunFailed)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Record adds one run. Counters accumulate across runs; gauges describe
// the latest one.
func (c *Collector) Record(result *runner.RunResult) {
	for _, r := range result.Results {
		name := r.Name()
		c.contracts.WithLabelValues(name, r.Contract.Method.String(), r.Outcome.String()).Inc()
		if r.Response != nil {
			c.duration.WithLabelValues(name).Observe(r.Duration.Seconds())
			c.statuses.WithLabelValues(strconv.Itoa(r.StatusCode)).Inc()
		}
	}
	c.skipped.Add(float64(len(result.Skipped)))
	c.runDuration.Set(result.Duration.Seconds())
	c.lastRun.Set(float64(time.Now().Unix()))
	c.lastRunFailed.Set(float64(result.Failed))
}

// WriteFile atomically writes all metrics to path.
func (c *Collector) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
