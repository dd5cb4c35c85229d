// Package builtin provides built-in functions for contract file templates.
//
// Available functions:
//   - uuid(): Random UUID v4
//   - now(), date(format): Current time
//   - timestamp(), timestampMs(): Current Unix time
//   - random(min, max): Random integer in [min, max]
//   - randomString(length), randomEmail(): Random text
//
// Functions are invoked as {{random(1, 100)}}. They are evaluated once per
// run, before any contract executes.
package builtin
