// Package http provides the HTTP exchange used to execute contracts.
//
// It wraps the standard library's http package with:
//   - Configurable timeouts and redirect handling
//   - Default headers applied to every request
//   - JSON request bodies with an explicit charset
//   - Fully read responses with case-insensitive header access
//
// A Client performs exactly one exchange per Do call; it never retries.
package http
