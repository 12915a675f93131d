package solving

import (
	"github.com/Masterminds/semver"
	"github.com/pkg/errors"
)

// Solver describes the external constraint solver collaborator. Implementations wrap a concrete decision procedure
// (e.g. an SMT solver process); the engine only depends on this interface.
type Solver interface {
	// Solve decides the provided query synchronously, blocking until a result is available or the solver gives up.
	// Failures are reported through the returned Output's Err field rather than a separate error return, so that
	// outputs can cross worker boundaries as a single value.
	Solve(query Query) Output

	// Version reports the backend solver's version string, e.g. "4.12.2".
	Version() (string, error)
}

// EnsureMinimumVersion verifies the provided solver's backend version is at least minVersion. An empty minVersion
// disables the check. Returns an error when the version cannot be determined or is too old.
func EnsureMinimumVersion(solver Solver, minVersion string) error {
	if minVersion == "" {
		return nil
	}

	// Parse our minimum version constraint.
	minimum, err := semver.NewVersion(minVersion)
	if err != nil {
		return errors.Wrapf(err, "invalid minimum solver version %q", minVersion)
	}

	// Obtain and parse the backend's reported version.
	versionStr, err := solver.Version()
	if err != nil {
		return errors.Wrap(err, "could not determine solver version")
	}
	version, err := semver.NewVersion(versionStr)
	if err != nil {
		return errors.Wrapf(err, "could not parse solver version %q", versionStr)
	}

	if version.LessThan(minimum) {
		return errors.Errorf("solver version %s is older than the minimum supported version %s", version, minimum)
	}
	return nil
}
