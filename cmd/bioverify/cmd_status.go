package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/bioverify/internal/report"
)

var statusCmd = &cobra.Command{
	Use:   "status <analysis-id>",
	Short: "Show the current state of an analysis",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, _, err := loadClient()
	if err != nil {
		return err
	}

	job, err := client.GetAnalysis(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get analysis: %w", err)
	}

	r := report.Build(job, nil)
	if jsonOutput() {
		return writeJSON(cmd.OutOrStdout(), r)
	}
	return report.WriteText(cmd.OutOrStdout(), r)
}
