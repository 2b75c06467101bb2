package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the analysis API is reachable",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, _ []string) error {
	client, cfg, err := loadClient()
	if err != nil {
		return err
	}

	h, err := client.Health(cmd.Context())
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput() {
		return writeJSON(out, h)
	}
	fmt.Fprintf(out, "API:      %s\n", cfg.API.BaseURL)
	fmt.Fprintf(out, "Status:   %s\n", h.Status)
	fmt.Fprintf(out, "Engine:   %s\n", orDash(h.EngineVersion))
	if len(h.PolicyVersions) > 0 {
		fmt.Fprintf(out, "Policies: %s\n", strings.Join(h.PolicyVersions, ", "))
	}
	return nil
}
