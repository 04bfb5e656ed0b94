package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose  bool
	debug    bool
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "guildlink",
	Short: "Guilded bot gateway client",
	Long: `guildlink keeps a bot connected to the Guilded real-time gateway and
prints the events it receives, one JSON document per line.

It uses HCL (HashiCorp Configuration Language) for configuration:
the gateway connection, command handling, cursor checkpointing and
output filtering are all described in configuration files.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "debug output")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
}

func parseLevel(level string, debugFlag, verboseFlag bool) zapcore.Level {
	if debugFlag || (verboseFlag && strings.ToLower(level) == "info") {
		return zap.DebugLevel
	}

	switch strings.ToLower(level) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// setupLogger builds a production logger on stderr, keeping stdout for
// event output.
func setupLogger() (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(parseLevel(logLevel, debug, verbose))
	config.Development = debug

	return config.Build()
}
