package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/scrylabs/solvent/cmd/exitcodes"
	"github.com/scrylabs/solvent/logging/colors"
	"github.com/scrylabs/solvent/symexec"
	"github.com/scrylabs/solvent/symexec/config"
	"github.com/scrylabs/solvent/symexec/contracts"
	"github.com/scrylabs/solvent/symexec/solving"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// DefaultBackend is the collaborator backend the test command runs with: the symbolic interpreter, constraint
// solver, state hasher and calldata generator. Integrations embedding this CLI must set it before Execute is
// invoked; the test command refuses to run without one.
var DefaultBackend *symexec.Backend

// testCmd represents the command provider for symbolic test runs
var testCmd = &cobra.Command{
	Use:               "test",
	Short:             "Runs the project's symbolic tests",
	Long:              `Runs the project's symbolic tests`,
	Args:              cmdValidateTestArgs,
	ValidArgsFunction: cmdValidTestArgs,
	RunE:              cmdRunTest,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	// Add all the flags allowed for the test command
	err := addTestFlags()
	if err != nil {
		cmdLogger.Panic("Failed to initialize the test command", err)
	}

	// Add the test command and its associated flags to the root command
	rootCmd.AddCommand(testCmd)
}

// cmdValidTestArgs will return which flags and sub-commands are valid for dynamic completion for the test command
func cmdValidTestArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	// Gather a list of flags that are available to be used in the current command but have not been used yet
	var unusedFlags []string
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		if !flag.Changed {
			unusedFlags = append(unusedFlags, "--"+flag.Name)
		}
	})
	return unusedFlags, cobra.ShellCompDirectiveNoFileComp
}

// cmdValidateTestArgs makes sure that there are no positional arguments provided to the test command
func cmdValidateTestArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		err = fmt.Errorf("test does not accept any positional arguments, only flags and their associated values")
		cmdLogger.Error("Failed to validate args to the test command", err)
		return err
	}
	return nil
}

// cmdRunTest executes the CLI test command and navigates through the following possibilities:
// #1: We will search for either a custom config file (via --config) or the default (solvent.json).
// If we find it, read it. If we can't read it, throw an error.
// #2: If a custom file was provided (--config was used), and we can't find the file, throw an error.
// #3: If solvent.json can't be found, use the default project configuration.
func cmdRunTest(cmd *cobra.Command, args []string) error {
	var projectConfig *config.ProjectConfig

	// Check to see if --config flag was used and store the value of --config flag
	configFlagUsed := cmd.Flags().Changed("config")
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		cmdLogger.Error("Failed to run the test command", err)
		return err
	}

	// If --config was not used, look for `solvent.json` in the current work directory
	if !configFlagUsed {
		workingDirectory, err := os.Getwd()
		if err != nil {
			cmdLogger.Error("Failed to run the test command", err)
			return err
		}
		configPath = filepath.Join(workingDirectory, DefaultProjectConfigFilename)
	}

	// Check to see if the file exists at configPath
	_, existenceError := os.Stat(configPath)

	// Possibility #1: File was found
	if existenceError == nil {
		cmdLogger.Info("Reading the configuration file at: ", colors.Bold, configPath, colors.Reset)
		projectConfig, err = config.ReadProjectConfigFromFile(configPath)
		if err != nil {
			cmdLogger.Error("Failed to run the test command", err)
			return err
		}
	}

	// Possibility #2: If the --config flag was used, and we couldn't find the file, we'll throw an error
	if configFlagUsed && existenceError != nil {
		cmdLogger.Error("Failed to run the test command", existenceError)
		return existenceError
	}

	// Possibility #3: --config flag was not used and solvent.json was not found, so use the default project config
	if !configFlagUsed && existenceError != nil {
		cmdLogger.Warn(fmt.Sprintf("Unable to find the config file at %v, will use the default project configuration instead", configPath))
		projectConfig = config.GetDefaultProjectConfig()
	}

	// Update the project configuration given whatever flags were set using the CLI
	err = updateProjectConfigWithTestFlags(cmd, projectConfig)
	if err != nil {
		cmdLogger.Error("Failed to run the test command", err)
		return err
	}

	// Change our working directory to the parent directory of the project configuration file, so relative paths in
	// the configuration resolve the way they were written.
	err = os.Chdir(filepath.Dir(configPath))
	if err != nil {
		cmdLogger.Error("Failed to run the test command", err)
		return err
	}

	if DefaultBackend == nil {
		err = errors.New("no execution backend registered; the test command requires a symbolic interpreter and solver")
		cmdLogger.Error("Failed to run the test command", err)
		return err
	}

	// Load the compiled contract artifacts the tests will run against.
	registry, err := contracts.LoadArtifactsDirectory(projectConfig.ArtifactsDirectory)
	if err != nil {
		cmdLogger.Error("Failed to load contract artifacts", err)
		return err
	}

	engine, err := symexec.NewEngine(projectConfig, registry, DefaultBackend)
	if err != nil {
		cmdLogger.Error("Failed to create the symbolic testing engine", err)
		return err
	}

	// Stop our run on keyboard interrupts: cancel the run between contracts and shut every live solver pool down.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		cmdLogger.Warn("Interrupt received, stopping the run")
		cancel()
		solving.DefaultRegistry.ShutdownAll()
	}()

	projectResult, err := engine.Run(ctx)
	if err != nil {
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeGeneralError)
	}

	// If we have failed test cases, we'll want to return a special exit code
	if projectResult.FailedCount() > 0 {
		return exitcodes.NewErrorWithExitCode(nil, exitcodes.ExitCodeTestFailed)
	}
	return nil
}
