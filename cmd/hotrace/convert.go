package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sarchlab/hotrace/mobility"
)

var convertCmd = &cobra.Command{
	Use:   "convert <fcd.xml> <output>",
	Short: "Convert a SUMO FCD export into an ns-2 mobility trace.",
	Long: `Vehicles are sorted by id and numbered from 0. With --csv the ` +
		`positions are written as Time,VehicleID,X,Y,Speed,Angle instead.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		asCSV, _ := cmd.Flags().GetBool("csv")

		fcd, err := mobility.LoadFCD(args[0])
		if err != nil {
			return err
		}

		out, err := os.Create(args[1])
		if err != nil {
			return fmt.Errorf("creating %s: %w", args[1], err)
		}

		if asCSV {
			err = fcd.WriteCSV(out)
		} else {
			err = fcd.ToTrace(args[0]).WriteNS2(out)
		}

		if err != nil {
			_ = out.Close()
			return fmt.Errorf("writing %s: %w", args[1], err)
		}

		if err := out.Close(); err != nil {
			return err
		}

		log.Info().
			Int("vehicles", len(fcd.VehicleIDs())).
			Int("timesteps", len(fcd.Timesteps)).
			Str("output", args[1]).
			Msg("trace converted")

		return nil
	},
}

func init() {
	convertCmd.Flags().Bool("csv", false, "write CSV instead of an ns-2 trace")
	rootCmd.AddCommand(convertCmd)
}
