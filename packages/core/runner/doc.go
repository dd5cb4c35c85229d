// Package runner executes endpoint contracts and collects their results.
//
// It provides functionality for:
//   - Running a single contract against a base URL
//   - Running many contracts sequentially or with bounded concurrency
//   - Classifying failures as assertion, transport, decode or request errors
//   - Optional request pacing and a latency summary per run
//
// Results always come back in input order, and no failure stops the
// contracts after it.
package runner
