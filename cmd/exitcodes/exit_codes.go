package exitcodes

const (
	// ================================
	// Platform-universal exit codes
	// ================================

	// ExitCodeSuccess indicates no errors or test failures had occurred.
	ExitCodeSuccess = 0

	// ExitCodeGeneralError indicates some type of general error occurred.
	ExitCodeGeneralError = 1

	// ================================
	// Application-specific exit codes
	// ================================

	// ExitCodeTestFailed indicates at least one symbolic test did not pass. Note that an error with error code
	// ExitCodeGeneralError and ExitCodeTestFailed are mutually exclusive errors.
	ExitCodeTestFailed = 1
)
