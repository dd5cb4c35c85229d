// Package assertions evaluates contract expectations against a response.
//
// Supported checks:
//   - Status code (expectStatus: 201)
//   - nonEmpty: object with keys, array with items, or non-empty string
//   - isArray: top-level JSON array
//   - hasKeys: all listed keys present, extra keys allowed
//   - fieldEquals: value at a JSON path equals the expected value
//   - deepIncludes: every listed key present with a deeply equal value
//   - schema: body validates against a JSON Schema file
//
// Every rule produces its own Result; a failing rule never stops the
// evaluation of the rules after it.
package assertions
