package config

import "github.com/rs/zerolog"

// GetDefaultProjectConfig obtains a default configuration for a symbolic testing project.
func GetDefaultProjectConfig() *ProjectConfig {
	// Create a project configuration
	projectConfig := &ProjectConfig{
		ArtifactsDirectory: "out",
		Symexec: SymexecConfig{
			SolverWorkers:    4,
			SolverTimeout:    0,
			MinSolverVersion: "",
			InvariantDepth:   2,
			// Panic(0x01) is the code emitted by a failing solidity `assert`.
			PanicErrorCodes: []uint64{0x01},
			EarlyExit:       false,
			Width:           0,
			MatchContract:   "",
			MatchTest:       "",
			TestPrefixes: []string{
				"test_",
				"check_",
				"prove_",
				"invariant_",
			},
			InvariantPrefix:     "invariant_",
			StateStoreDirectory: "",
			JSONOutputPath:      "",
		},
		Logging: LoggingConfig{
			Level:                zerolog.InfoLevel,
			EnableConsoleLogging: true,
			LogDirectory:         "",
		},
	}

	// Return the project configuration
	return projectConfig
}
