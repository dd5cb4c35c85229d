// Package cmd implements the hitcontract CLI commands using Cobra.
//
// Available commands:
//   - run: Execute the contracts in a contract file
//   - validate: Check a contract file without sending requests
//   - list: Display the contracts and which ones a run would skip
//   - init: Scaffold an example contract file
//   - version: Show hitcontract version information
//
// Errors carry the process exit code: 1 for failed contracts, 3 for an
// unloadable contract file, 4 when the service was unreachable and 64
// for invalid usage.
package cmd
