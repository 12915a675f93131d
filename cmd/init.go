package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/scrylabs/solvent/logging/colors"
	"github.com/scrylabs/solvent/symexec/config"
	"github.com/spf13/cobra"
)

// initCmd represents the command provider for init
var initCmd = &cobra.Command{
	Use:           "init",
	Short:         "Initializes a project configuration",
	Long:          `Initializes a project configuration`,
	Args:          cobra.NoArgs,
	RunE:          cmdRunInit,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Output path for configuration
	initCmd.Flags().String("out", "", "output path for the new project configuration file")

	// Add the init command and its associated flags to the root command
	rootCmd.AddCommand(initCmd)
}

// cmdRunInit executes the init CLI command and writes a default project configuration to disk.
func cmdRunInit(cmd *cobra.Command, args []string) error {
	// If we weren't provided an output path, we use the default configuration filename in the working directory
	outputPath, err := cmd.Flags().GetString("out")
	if err != nil {
		cmdLogger.Error("Failed to run the init command", err)
		return err
	}
	if outputPath == "" {
		workingDirectory, err := os.Getwd()
		if err != nil {
			cmdLogger.Error("Failed to run the init command", err)
			return err
		}
		outputPath = filepath.Join(workingDirectory, DefaultProjectConfigFilename)
	}

	// Refuse to clobber an existing configuration.
	if _, err = os.Stat(outputPath); err == nil {
		err = fmt.Errorf("configuration file already exists at %v", outputPath)
		cmdLogger.Error("Failed to run the init command", err)
		return err
	}

	projectConfig := config.GetDefaultProjectConfig()
	if err = projectConfig.WriteToFile(outputPath); err != nil {
		cmdLogger.Error("Failed to run the init command", err)
		return err
	}

	cmdLogger.Info("Project configuration successfully created: ", colors.Bold, outputPath, colors.Reset)
	return nil
}
