package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDefaultConfigIsValid ensures the default project configuration passes its own validation.
func TestDefaultConfigIsValid(t *testing.T) {
	projectConfig := GetDefaultProjectConfig()
	assert.NoError(t, projectConfig.Validate())
	assert.Contains(t, projectConfig.Symexec.TestPrefixes, "check_")
	assert.Contains(t, projectConfig.Symexec.PanicErrorCodes, uint64(0x01))
}

// TestConfigValidation ensures invalid configurations are rejected.
func TestConfigValidation(t *testing.T) {
	// A non-positive solver worker count must be rejected.
	projectConfig := GetDefaultProjectConfig()
	projectConfig.Symexec.SolverWorkers = 0
	assert.Error(t, projectConfig.Validate())

	// Negative depth and width limits must be rejected.
	projectConfig = GetDefaultProjectConfig()
	projectConfig.Symexec.InvariantDepth = -1
	assert.Error(t, projectConfig.Validate())

	projectConfig = GetDefaultProjectConfig()
	projectConfig.Symexec.Width = -5
	assert.Error(t, projectConfig.Validate())

	// An empty test prefix list must be rejected.
	projectConfig = GetDefaultProjectConfig()
	projectConfig.Symexec.TestPrefixes = nil
	assert.Error(t, projectConfig.Validate())
}

// TestConfigRoundTrip ensures a configuration written to disk reads back identically, and partial files inherit
// defaults for unspecified fields.
func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solvent.json")

	original := GetDefaultProjectConfig()
	original.Symexec.SolverWorkers = 8
	original.Symexec.EarlyExit = true
	original.Symexec.MatchContract = "Vault.*"
	assert.NoError(t, original.WriteToFile(path))

	loaded, err := ReadProjectConfigFromFile(path)
	assert.NoError(t, err)
	assert.EqualValues(t, original, loaded)

	// Reading a nonexistent file must fail.
	_, err = ReadProjectConfigFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
