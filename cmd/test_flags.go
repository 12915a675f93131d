package cmd

import (
	"fmt"

	"github.com/scrylabs/solvent/symexec/config"
	"github.com/spf13/cobra"
)

// addTestFlags adds the various flags for the test command
func addTestFlags() error {
	// Get the default project config so flag descriptions can name the defaults
	defaultConfig := config.GetDefaultProjectConfig()

	// Prevent alphabetical sorting of usage message
	testCmd.Flags().SortFlags = false

	// Config file
	testCmd.Flags().String("config", "", "path to config file")

	// Artifacts directory
	testCmd.Flags().String("artifacts-dir", "",
		fmt.Sprintf("directory containing compiled contract artifacts (unless a config file is provided, default is %q)", defaultConfig.ArtifactsDirectory))

	// Number of solver workers
	testCmd.Flags().Int("solver-workers", 0,
		fmt.Sprintf("number of concurrent solver workers per test (unless a config file is provided, default is %d)", defaultConfig.Symexec.SolverWorkers))

	// Solver timeout
	testCmd.Flags().Int("solver-timeout", 0,
		fmt.Sprintf("number of milliseconds a single solver query may run for (unless a config file is provided, default is %d). 0 means that timeout is not enforced", defaultConfig.Symexec.SolverTimeout))

	// Invariant depth
	testCmd.Flags().Int("depth", 0,
		fmt.Sprintf("number of frontier expansions performed for invariant tests (unless a config file is provided, default is %d)", defaultConfig.Symexec.InvariantDepth))

	// Path width limit
	testCmd.Flags().Int("width", 0,
		"maximum number of paths explored per test before execution is cut short. 0 means that no limit is enforced")

	// Early exit
	testCmd.Flags().Bool("early-exit", false,
		"stop a test as soon as a valid counterexample is found")

	// Contract name filter
	testCmd.Flags().String("match-contract", "",
		"regular expression selecting which contracts to analyze")

	// Test name filter
	testCmd.Flags().String("match-test", "",
		"regular expression selecting which test functions to run")

	// State store directory
	testCmd.Flags().String("store-dir", "",
		"directory path for the persisted exploration state store")

	// JSON report path
	testCmd.Flags().String("json-output", "",
		"file path to write the test results to as JSON")

	return nil
}

// updateProjectConfigWithTestFlags will update the given projectConfig with any CLI arguments that were provided to
// the test command
func updateProjectConfigWithTestFlags(cmd *cobra.Command, projectConfig *config.ProjectConfig) error {
	var err error

	// Update artifacts directory
	if cmd.Flags().Changed("artifacts-dir") {
		projectConfig.ArtifactsDirectory, err = cmd.Flags().GetString("artifacts-dir")
		if err != nil {
			return err
		}
	}

	// Update number of solver workers
	if cmd.Flags().Changed("solver-workers") {
		projectConfig.Symexec.SolverWorkers, err = cmd.Flags().GetInt("solver-workers")
		if err != nil {
			return err
		}
	}

	// Update solver timeout
	if cmd.Flags().Changed("solver-timeout") {
		projectConfig.Symexec.SolverTimeout, err = cmd.Flags().GetInt("solver-timeout")
		if err != nil {
			return err
		}
	}

	// Update invariant depth
	if cmd.Flags().Changed("depth") {
		projectConfig.Symexec.InvariantDepth, err = cmd.Flags().GetInt("depth")
		if err != nil {
			return err
		}
	}

	// Update path width limit
	if cmd.Flags().Changed("width") {
		projectConfig.Symexec.Width, err = cmd.Flags().GetInt("width")
		if err != nil {
			return err
		}
	}

	// Update early exit behavior
	if cmd.Flags().Changed("early-exit") {
		projectConfig.Symexec.EarlyExit, err = cmd.Flags().GetBool("early-exit")
		if err != nil {
			return err
		}
	}

	// Update contract name filter
	if cmd.Flags().Changed("match-contract") {
		projectConfig.Symexec.MatchContract, err = cmd.Flags().GetString("match-contract")
		if err != nil {
			return err
		}
	}

	// Update test name filter
	if cmd.Flags().Changed("match-test") {
		projectConfig.Symexec.MatchTest, err = cmd.Flags().GetString("match-test")
		if err != nil {
			return err
		}
	}

	// Update state store directory
	if cmd.Flags().Changed("store-dir") {
		projectConfig.Symexec.StateStoreDirectory, err = cmd.Flags().GetString("store-dir")
		if err != nil {
			return err
		}
	}

	// Update JSON report path
	if cmd.Flags().Changed("json-output") {
		projectConfig.Symexec.JSONOutputPath, err = cmd.Flags().GetString("json-output")
		if err != nil {
			return err
		}
	}

	return nil
}
