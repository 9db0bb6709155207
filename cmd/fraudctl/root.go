package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hive-corporation/fraudshield/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	server   string
	logLevel string
}

var rootCmd = &cobra.Command{
	Use:   "fraudctl",
	Short: "Check text, URLs and images for fraud",
	Long:  "fraudctl scores content with the local rule set or asks a FraudShield\ngRPC server for a full analysis.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		config.SetupLogging(rootFlags.logLevel, false)
	},
	SilenceUsage: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.server, "server", "localhost:50051", "FraudShield gRPC address")
	f.StringVar(&rootFlags.logLevel, "log-level", "warn", "Log level")

	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
