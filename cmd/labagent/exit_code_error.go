package main

// Exit codes other than the generic 1.
const (
	exitAPIError = 2
)

// ExitCodeError wraps an error with a specific process exit code.
//
// Most commands return plain errors and exit with code 1. ExitCodeError is
// used where scripts driving repeated sessions need to tell a reasoning
// service failure apart from a broken setup.
type ExitCodeError struct {
	Code int
	Err  error
}

func (e *ExitCodeError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitCodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
