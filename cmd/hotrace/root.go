package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// version is set at link time.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "hotrace",
	Short: "hotrace correlates handover notifications into measurement datasets.",
	Long: `hotrace replays the notifications of a 5G handover simulation, ` +
		`correlates them per UE, samples radio quality, position and ` +
		`throughput periodically, and writes the handover dataset and the ` +
		`flow statistics.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println("hotrace " + version)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "",
		"config file (YAML, JSON or TOML)")
	rootCmd.AddCommand(versionCmd)
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	})
}
