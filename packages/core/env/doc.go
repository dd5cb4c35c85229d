// Package env handles variables and template resolution for contract files.
//
// It provides functionality for:
//   - Loading .env files
//   - Variable interpolation using {{variable}} syntax
//   - Process environment lookups using {{$NAME}}
//   - Built-in function evaluation (uuid, timestamp, random, etc.)
//
// A template that is exactly one {{...}} reference resolves to the typed
// value, so {{random(1,100)}} yields an int rather than a string.
package env
