// Package contract defines the declarative endpoint contracts hitcontract verifies.
//
// An EndpointContract describes one HTTP call and its expected outcome:
//   - Method and path template (placeholders written {name})
//   - Optional JSON request body and headers
//   - Expected status code
//   - Ordered body assertion rules (nonEmpty, isArray, hasKeys,
//     fieldEquals, deepIncludes, schema)
//
// Contracts are built with New, which validates them, and are read-only
// afterwards.
package contract
