package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/bioverify/internal/evidence"
)

var evidenceFlags struct {
	verify   bool
	parallel int
	urls     bool
}

var evidenceCmd = &cobra.Command{
	Use:   "evidence <analysis-id>",
	Short: "List the evidence artifacts of a finished analysis",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvidence,
}

func init() {
	f := evidenceCmd.Flags()
	f.BoolVar(&evidenceFlags.verify, "verify", false, "Fetch every artifact and drop the ones that cannot be read")
	f.IntVar(&evidenceFlags.parallel, "parallel", evidence.DefaultParallel, "Concurrent fetches with --verify")
	f.BoolVar(&evidenceFlags.urls, "urls", false, "Print signed URLs next to artifact paths")
}

type evidenceOutput struct {
	AnalysisID    string           `json:"analysis_id"`
	ConfigVersion string           `json:"config_version,omitempty"`
	Groups        []evidence.Group `json:"groups"`
	Unavailable   []string         `json:"unavailable,omitempty"`
}

func runEvidence(cmd *cobra.Command, args []string) error {
	if evidenceFlags.parallel < 1 {
		return fmt.Errorf("--parallel must be at least 1, got %d", evidenceFlags.parallel)
	}

	client, cfg, err := loadClient()
	if err != nil {
		return err
	}

	id := args[0]
	bundle, err := client.GetEvidence(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("get evidence: %w", err)
	}

	gallery := evidence.Resolve(bundle.Index.Artifacts, bundle.SignedURLs)
	result := evidenceOutput{AnalysisID: id, ConfigVersion: bundle.Index.ConfigVersion}

	if evidenceFlags.verify {
		probe := &http.Client{Timeout: cfg.API.Timeout}
		checked, failures, err := evidence.Verify(cmd.Context(), probe, gallery, evidenceFlags.parallel)
		if err != nil {
			return fmt.Errorf("verify evidence: %w", err)
		}
		gallery = checked
		for _, f := range failures {
			result.Unavailable = append(result.Unavailable, f.Path)
		}
	}
	result.Groups = gallery.Groups()

	out := cmd.OutOrStdout()
	if jsonOutput() {
		return writeJSON(out, result)
	}

	if len(result.Groups) == 0 {
		fmt.Fprintln(out, "No evidence artifacts.")
	}
	for _, g := range result.Groups {
		fmt.Fprintf(out, "%s [%s] (%d)\n", g.Title, g.Availability, len(g.Artifacts))
		for _, a := range g.Artifacts {
			if evidenceFlags.urls {
				fmt.Fprintf(out, "  %s  %s\n", a.Path, a.URL)
			} else {
				fmt.Fprintf(out, "  %s\n", a.Path)
			}
		}
	}
	if len(result.Unavailable) > 0 {
		fmt.Fprintf(out, "\n%d artifact(s) could not be fetched:\n", len(result.Unavailable))
		for _, p := range result.Unavailable {
			fmt.Fprintf(out, "  %s\n", p)
		}
	}
	return nil
}
