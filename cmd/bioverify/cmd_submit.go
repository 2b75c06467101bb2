package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/bioverify/internal/bioverify"
)

var submitFlags struct {
	policy   string
	watch    bool
	evidence bool
}

var submitCmd = &cobra.Command{
	Use:   "submit <video>",
	Short: "Upload a video for analysis",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

func init() {
	f := submitCmd.Flags()
	f.StringVar(&submitFlags.policy, "policy", "", "Scoring policy name (server default when empty)")
	f.BoolVar(&submitFlags.watch, "watch", false, "Follow the analysis until it finishes")
	f.BoolVar(&submitFlags.evidence, "evidence", false, "With --watch, include evidence artifacts in the report")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	client, cfg, err := loadClient()
	if err != nil {
		return err
	}

	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open video: %w", err)
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub, err := client.CreateAnalysis(ctx, bioverify.SubmitRequest{
		Filename:   filepath.Base(path),
		Video:      f,
		PolicyName: submitFlags.policy,
	})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	out := cmd.OutOrStdout()
	if !submitFlags.watch {
		if jsonOutput() {
			return writeJSON(out, sub)
		}
		fmt.Fprintf(out, "Submitted %s (%s)\n", sub.ID, sub.Status)
		return nil
	}

	if !jsonOutput() {
		fmt.Fprintf(out, "Submitted %s (%s)\n", sub.ID, sub.Status)
	}
	return watchJob(ctx, out, client, sub.ID, watchOptions{
		interval: cfg.Poll.Interval,
		evidence: submitFlags.evidence,
	})
}
