package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/bioverify/internal/bioverify"
	"github.com/kiranshivaraju/bioverify/internal/poll"
	"github.com/kiranshivaraju/bioverify/internal/report"
	"github.com/kiranshivaraju/bioverify/internal/tracker"
	"github.com/kiranshivaraju/bioverify/pkg/models"
)

var (
	errAnalysisFailed = errors.New("analysis failed")
	errWatchCancelled = errors.New("watch cancelled")
)

var watchFlags struct {
	evidence bool
}

var watchCmd = &cobra.Command{
	Use:   "watch <analysis-id>",
	Short: "Follow an analysis until it finishes, then print its report",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchFlags.evidence, "evidence", false, "Include evidence artifacts in the report")
}

func runWatch(cmd *cobra.Command, args []string) error {
	client, cfg, err := loadClient()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return watchJob(ctx, cmd.OutOrStdout(), client, args[0], watchOptions{
		interval: cfg.Poll.Interval,
		evidence: watchFlags.evidence,
	})
}

type watchOptions struct {
	interval time.Duration
	evidence bool
}

// watchJob tracks id until it reaches a terminal status. Status changes are
// printed as they are observed; the report is printed once, after the job
// completes. Cancelling ctx tears the tracker down.
func watchJob(ctx context.Context, out io.Writer, client bioverify.Client, id string, opts watchOptions) error {
	t, err := tracker.Start(ctx, client, id,
		tracker.WithInterval(opts.interval),
		tracker.WithOnTransition(func(job *models.AnalysisJob, from models.JobStatus) {
			if jsonOutput() {
				return
			}
			if from == "" {
				fmt.Fprintf(out, "%s  %s\n", time.Now().Format(time.TimeOnly), job.Status)
				return
			}
			fmt.Fprintf(out, "%s  %s -> %s\n", time.Now().Format(time.TimeOnly), from, job.Status)
		}),
	)
	if err != nil {
		return err
	}
	defer t.Stop()

	<-t.Done()
	snap := t.Snapshot()

	switch snap.State {
	case poll.StateCancelled:
		return fmt.Errorf("%w: %s", errWatchCancelled, id)
	case poll.StateFailed:
		return fmt.Errorf("watch %s: %w", id, snap.Err())
	}

	var bundle *models.EvidenceBundle
	if snap.Job.Status == models.JobStatusDone {
		<-t.Completed()
		if opts.evidence {
			bundle = fetchEvidence(ctx, client, id)
		}
	}

	r := report.Build(snap.Job, bundle)
	if jsonOutput() {
		err = writeJSON(out, r)
	} else {
		fmt.Fprintln(out)
		err = report.WriteText(out, r)
	}
	if err != nil {
		return err
	}
	if snap.Job.Status == models.JobStatusFailed {
		return fmt.Errorf("%w: %s", errAnalysisFailed, id)
	}
	return nil
}

// fetchEvidence loads the evidence bundle. The report is still useful
// without it, so failures are only logged.
func fetchEvidence(ctx context.Context, client bioverify.Client, id string) *models.EvidenceBundle {
	bundle, err := client.GetEvidence(ctx, id)
	if err != nil {
		slog.Warn("evidence unavailable", "analysis_id", id, "error", err)
		return nil
	}
	return bundle
}
