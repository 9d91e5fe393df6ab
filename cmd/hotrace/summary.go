package main

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/hotrace/analysis"
)

var summaryCmd = &cobra.Command{
	Use:   "summary <handover_dataset.csv>",
	Short: "Print handover, radio, mobility and throughput statistics as YAML.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := analysis.LoadDataset(args[0])
		if err != nil {
			return err
		}

		var flows []analysis.FlowRow

		if path, _ := cmd.Flags().GetString("flows"); path != "" {
			flows, err = analysis.LoadFlows(path)
			if err != nil {
				return err
			}
		}

		return analysis.Summarize(rows, flows).WriteYAML(cmd.OutOrStdout())
	},
}

func init() {
	summaryCmd.Flags().String("flows", "", "flow statistics CSV file")
	rootCmd.AddCommand(summaryCmd)
}
