package config

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ProjectConfig describes the configuration for a symbolic testing project.
type ProjectConfig struct {
	// ArtifactsDirectory describes the directory containing the compiled build artifacts (one JSON file per
	// contract) that the contract registry is populated from.
	ArtifactsDirectory string `json:"artifactsDirectory"`

	// Symexec describes the configuration used by the symbolic execution engine.
	Symexec SymexecConfig `json:"symexec"`

	// Logging describes the configuration used for logging.
	Logging LoggingConfig `json:"loggingConfig"`
}

// SymexecConfig describes the configuration options used by the symexec engine.
type SymexecConfig struct {
	// SolverWorkers describes the amount of worker goroutines each test's solver pool is created with.
	SolverWorkers int `json:"solverWorkers"`

	// SolverTimeout describes a timeout in milliseconds applied to each individual solver query. A zero value
	// indicates no timeout.
	SolverTimeout int `json:"solverTimeout"`

	// MinSolverVersion describes the minimum backend solver version required to run tests. If empty, no version
	// gating is performed.
	MinSolverVersion string `json:"minSolverVersion"`

	// InvariantDepth describes the maximum number of arbitrary state-mutating transactions explored ahead of an
	// invariant test. Ordinary tests always run against the initial setup state only.
	InvariantDepth int `json:"invariantDepth"`

	// PanicErrorCodes describes the panic codes which, when encountered in a reverting call, are treated as
	// assertion violation candidates. Code 0x01 is the solidity `assert` panic.
	PanicErrorCodes []uint64 `json:"panicErrorCodes"`

	// EarlyExit describes whether a test's solver pool should be shut down as soon as a valid counterexample is
	// found, instead of solving every remaining candidate path.
	EarlyExit bool `json:"earlyExit"`

	// Width describes the maximum number of explored paths per test. A zero value indicates no limit.
	Width int `json:"width"`

	// MatchContract describes a regex pattern which contract names must match to be tested.
	MatchContract string `json:"matchContract"`

	// MatchTest describes a regex pattern which test function signatures must match to be run.
	MatchTest string `json:"matchTest"`

	// TestPrefixes dictates what method name prefixes will determine if a contract method is a test.
	TestPrefixes []string `json:"testPrefixes"`

	// InvariantPrefix dictates the method name prefix identifying multi-transaction invariant tests.
	InvariantPrefix string `json:"invariantPrefix"`

	// StateStoreDirectory describes the directory where visited state fingerprints and probe findings are
	// persisted for post-run inspection. If empty, nothing is persisted.
	StateStoreDirectory string `json:"stateStoreDirectory"`

	// JSONOutputPath describes the file path where the aggregate test results are written as JSON. If empty, no
	// JSON report is emitted.
	JSONOutputPath string `json:"jsonOutputPath"`
}

// LoggingConfig describes the configuration options used for logging.
type LoggingConfig struct {
	// Level describes whether logs of certain severity levels (eg info, warning, etc.) will be emitted or
	// discarded. Increasing level values represent more severe logs.
	Level zerolog.Level `json:"level"`

	// EnableConsoleLogging describes whether console logging is enabled.
	EnableConsoleLogging bool `json:"enableConsoleLogging"`

	// LogDirectory describes the directory where structured log files will be outputted. If the string is empty,
	// then no log files are kept.
	LogDirectory string `json:"logDirectory"`
}

// ReadProjectConfigFromFile reads a JSON-serialized ProjectConfig from a provided file path.
// Returns the ProjectConfig if it succeeds, or an error if one occurs.
func ReadProjectConfigFromFile(path string) (*ProjectConfig, error) {
	// Read our project configuration file data
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// Parse the project configuration on top of the defaults
	projectConfig := GetDefaultProjectConfig()
	err = json.Unmarshal(b, projectConfig)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return projectConfig, nil
}

// WriteToFile writes the ProjectConfig to a provided file path in a JSON-serialized format.
// Returns an error if one occurs.
func (p *ProjectConfig) WriteToFile(path string) error {
	// Serialize the configuration
	b, err := json.MarshalIndent(p, "", "\t")
	if err != nil {
		return errors.WithStack(err)
	}

	// Save it to the provided output path and return the result
	err = os.WriteFile(path, b, 0644)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Validate validates that the ProjectConfig meets certain requirements.
// Returns an error if one occurs.
func (p *ProjectConfig) Validate() error {
	// Verify the solver worker count is a positive number.
	if p.Symexec.SolverWorkers <= 0 {
		return errors.Errorf("solver worker count must be a positive number")
	}

	// Verify the solver timeout, invariant depth and width are not negative.
	if p.Symexec.SolverTimeout < 0 {
		return errors.Errorf("solver timeout cannot be negative")
	}
	if p.Symexec.InvariantDepth < 0 {
		return errors.Errorf("invariant depth cannot be negative")
	}
	if p.Symexec.Width < 0 {
		return errors.Errorf("path width limit cannot be negative")
	}

	// Test prefixes must be supplied, otherwise no method can ever be identified as a test.
	if len(p.Symexec.TestPrefixes) == 0 {
		return errors.Errorf("must specify one or more test prefixes")
	}
	if p.Symexec.InvariantPrefix == "" {
		return errors.Errorf("must specify an invariant test prefix")
	}

	return nil
}
