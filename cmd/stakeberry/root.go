package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blockberries/stakeberry/config"
	"github.com/blockberries/stakeberry/logging"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	GitCommit = "unknown"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "stakeberry",
	Short: "Stakeberry blockchain node",
	Long: `Stakeberry is a delegated-proof-of-stake blockchain node with a
market-issued stable asset, vesting stake and witness-scheduled block
production.`,
	Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.toml", "config file path")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Stakeberry %s\n", Version)
		fmt.Printf("  Git commit: %s\n", GitCommit)
	},
}

// createLogger builds a logger from the logging configuration.
func createLogger(cfg config.LoggingConfig) *logging.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	w := os.Stderr
	if strings.ToLower(cfg.Output) == "stdout" {
		w = os.Stdout
	}

	if strings.ToLower(cfg.Format) == "json" {
		return logging.NewJSONLogger(w, level)
	}
	return logging.NewTextLogger(w, level)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
