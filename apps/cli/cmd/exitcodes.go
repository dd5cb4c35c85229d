package cmd

import (
	"errors"
	"fmt"
)

// Exit codes for hitcontract CLI
const (
	// ExitSuccess indicates all contracts passed
	ExitSuccess = 0

	// ExitContractFailure indicates one or more contracts failed
	ExitContractFailure = 1

	// ExitConfigError indicates an unreadable or invalid contract file
	ExitConfigError = 3

	// ExitNetworkError indicates every failed contract failed to reach the service
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError carries a process exit code up to Execute.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

func configError(err error) error {
	return withExitCode(ExitConfigError, err)
}

func usageError(format string, args ...any) error {
	return withExitCode(ExitUsageError, fmt.Errorf(format, args...))
}

// exitCode maps an error returned by a command to a process exit code.
// Errors without a code come from flag parsing and count as usage errors.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitUsageError
}
