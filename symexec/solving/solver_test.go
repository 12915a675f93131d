package solving

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

// versionedSolver is a test double which only reports a version.
type versionedSolver struct {
	version string
	err     error
}

func (s *versionedSolver) Solve(query Query) Output {
	return Output{Result: ResultUnknown}
}

func (s *versionedSolver) Version() (string, error) {
	return s.version, s.err
}

// TestEnsureMinimumVersion ensures version gating accepts solvers at or above the minimum and refuses older ones.
func TestEnsureMinimumVersion(t *testing.T) {
	// Newer and equal versions must be accepted.
	assert.NoError(t, EnsureMinimumVersion(&versionedSolver{version: "4.13.0"}, "4.12.1"))
	assert.NoError(t, EnsureMinimumVersion(&versionedSolver{version: "4.12.1"}, "4.12.1"))

	// Older versions must be refused.
	assert.Error(t, EnsureMinimumVersion(&versionedSolver{version: "4.11.2"}, "4.12.1"))

	// An unparseable or unobtainable version must be refused.
	assert.Error(t, EnsureMinimumVersion(&versionedSolver{version: "not-a-version"}, "4.12.1"))
	assert.Error(t, EnsureMinimumVersion(&versionedSolver{err: errors.New("no binary")}, "4.12.1"))
}
