package cmd

import (
	"github.com/rs/zerolog"
	"github.com/scrylabs/solvent/logging"
	"github.com/spf13/cobra"
)

// cmdLogger is the logger instance used by all CLI commands. It logs to console only, since the engine owns the
// global logger's configuration once a run starts.
var cmdLogger = logging.NewLogger(zerolog.InfoLevel, true)

var rootCmd = &cobra.Command{
	Use:   "solvent",
	Short: "A symbolic testing harness for smart contracts",
	Long:  "solvent is a symbolic testing harness for smart contracts",
}

func Execute() error {
	return rootCmd.Execute()
}
