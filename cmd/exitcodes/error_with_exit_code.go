package exitcodes

// ErrorWithExitCode pairs an error with the process exit code the application should terminate with once the
// error bubbles up to main. The test command uses it to separate "some test found a counterexample" from "the run
// itself broke".
type ErrorWithExitCode struct {
	err      error
	exitCode int
}

// NewErrorWithExitCode wraps the provided error (which may be nil when only the exit code matters) together with
// the exit code to terminate with.
func NewErrorWithExitCode(err error, exitCode int) *ErrorWithExitCode {
	return &ErrorWithExitCode{
		err:      err,
		exitCode: exitCode,
	}
}

// Error implements the error interface. A code-only wrapper renders as an empty message.
func (e *ErrorWithExitCode) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

// GetInnerErrorAndExitCode resolves the error main should print and the code the process should exit with: nil
// maps to ExitCodeSuccess, an ErrorWithExitCode is unwrapped into its inner error and carried code, and any other
// error maps to ExitCodeGeneralError.
func GetInnerErrorAndExitCode(err error) (error, int) {
	if err == nil {
		return nil, ExitCodeSuccess
	}
	if wrapped, ok := err.(*ErrorWithExitCode); ok {
		return wrapped.err, wrapped.exitCode
	}
	return err, ExitCodeGeneralError
}
