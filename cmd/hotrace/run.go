package main

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sarchlab/hotrace/config"
	"github.com/sarchlab/hotrace/simulation"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a notification log and write the datasets.",
	Long: `Settings are read from the flags, then HOTRACE_* environment ` +
		`variables, then a .env file, then the config file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		configFile, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(cmd.Flags(), configFile)
		if err != nil {
			return err
		}

		if err := cfg.Validate(); err != nil {
			return err
		}

		setupLogging(cfg.LogLevel)

		s, err := simulation.MakeBuilder().WithConfig(cfg).Build()
		if err != nil {
			return err
		}

		runErr := s.Run()
		if runErr == nil {
			log.Info().
				Str("dataset", cfg.Output).
				Str("flows", cfg.FlowOutput).
				Msg("datasets written")
		}

		return errors.Join(runErr, s.Terminate())
	},
}

func init() {
	config.RegisterFlags(runCmd.Flags())
	rootCmd.AddCommand(runCmd)
}
