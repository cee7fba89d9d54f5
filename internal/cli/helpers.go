package cli

import (
	"github.com/tablestream/csvmerge3/internal/merge3"
)

// exitCodeError pairs an error with the process exit code the CLI should
// report for it, so main can translate it without re-inspecting the error.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

// ExitCode extracts the intended process exit code from err, defaulting to
// 1 for any error that wasn't produced by this package.
func ExitCode(err error) int {
	if err == nil {
		return merge3.ExitOK
	}
	if ec, ok := err.(*exitCodeError); ok {
		return ec.code
	}
	return 1
}

// exitError wraps err so the CLI reports code as the process exit status.
func exitError(code int, err error) error {
	return &exitCodeError{code: code, err: err}
}
