package runner

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// LatencySummary describes exchange durations of the contracts that got a
// response. Values are recorded with microsecond precision.
type LatencySummary struct {
	Count int64
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
}

const maxTrackableMicros = 60_000_000

func summarizeLatency(results []*ExecutionResult) LatencySummary {
	histogram := hdrhistogram.New(1, maxTrackableMicros, 3)
	for _, res := range results {
		if res.Response == nil {
			continue
		}
		us := res.Duration.Microseconds()
		if us < 1 {
			us = 1
		}
		if us > maxTrackableMicros {
			us = maxTrackableMicros
		}
		_ = histogram.RecordValue(us)
	}

	if histogram.TotalCount() == 0 {
		return LatencySummary{}
	}

	micros := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	return LatencySummary{
		Count: histogram.TotalCount(),
		Min:   micros(histogram.Min()),
		Max:   micros(histogram.Max()),
		Mean:  time.Duration(histogram.Mean() * float64(time.Microsecond)),
		P50:   micros(histogram.ValueAtQuantile(50)),
		P95:   micros(histogram.ValueAtQuantile(95)),
		P99:   micros(histogram.ValueAtQuantile(99)),
	}
}
