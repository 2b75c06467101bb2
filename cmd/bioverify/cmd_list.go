package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/bioverify/pkg/models"
)

const maxListLimit = 200

var listFlags struct {
	limit  int
	offset int
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent analyses",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	f := listCmd.Flags()
	f.IntVar(&listFlags.limit, "limit", 20, "Page size (1-200)")
	f.IntVar(&listFlags.offset, "offset", 0, "Number of analyses to skip")
}

func runList(cmd *cobra.Command, _ []string) error {
	if listFlags.limit < 1 || listFlags.limit > maxListLimit {
		return fmt.Errorf("--limit must be between 1 and %d, got %d", maxListLimit, listFlags.limit)
	}
	if listFlags.offset < 0 {
		return fmt.Errorf("--offset must not be negative, got %d", listFlags.offset)
	}

	client, _, err := loadClient()
	if err != nil {
		return err
	}

	jobs, err := client.ListAnalyses(cmd.Context(), listFlags.limit, listFlags.offset)
	if err != nil {
		return fmt.Errorf("list analyses: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput() {
		return writeJSON(out, jobs)
	}
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No analyses found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ANALYSIS ID\tSTATUS\tPOLICY\tCREATED\tVERDICT")
	for _, j := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", j.ID, j.Status, orDash(j.PolicyName), created(j), verdict(j))
	}
	return w.Flush()
}

func created(j models.AnalysisJob) string {
	if j.CreatedAt == nil {
		return "-"
	}
	return j.CreatedAt.UTC().Format("2006-01-02 15:04:05")
}

func verdict(j models.AnalysisJob) string {
	if j.Result == nil || j.Result.Verdict == "" {
		return "-"
	}
	return string(j.Result.Verdict)
}
