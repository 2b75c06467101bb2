package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// WriteText renders r for a terminal.
func WriteText(out io.Writer, r Report) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(w, "Analysis:\t%s\n", r.AnalysisID)
	fmt.Fprintf(w, "Status:\t%s\n", r.Status)
	if r.PolicyName != "" {
		fmt.Fprintf(w, "Policy:\t%s\n", r.PolicyName)
	}
	if r.DurationSecs != nil {
		fmt.Fprintf(w, "Duration:\t%.1fs\n", *r.DurationSecs)
	}
	if r.Notice != "" {
		fmt.Fprintf(w, "Notice:\t%s\n", r.Notice)
	}
	if r.Verdict != "" {
		fmt.Fprintf(w, "Verdict:\t%s\n", r.Verdict)
	}
	if r.Score != nil && r.Confidence != nil {
		fmt.Fprintf(w, "Score:\t%.3f (confidence %.2f)\n", *r.Score, *r.Confidence)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(r.Reasons) > 0 {
		fmt.Fprintln(out, "\nReasons:")
		for _, reason := range r.Reasons {
			fmt.Fprintf(out, "  - %s (%s)\n", reason.Description, reason.Code)
		}
	}

	if len(r.Pipeline) > 0 {
		fmt.Fprintln(out, "\nPipeline:")
		w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, s := range r.Pipeline {
			fmt.Fprintf(w, "  %s\t%s\t%s\n", s.Status.Icon(), s.Stage.Title(), s.Summary)
			if len(s.Regions) > 0 {
				parts := make([]string, len(s.Regions))
				for i, rc := range s.Regions {
					parts[i] = fmt.Sprintf("%s=%d", rc.Region, rc.Count)
				}
				fmt.Fprintf(w, "  \t\t%s\n", strings.Join(parts, " "))
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if lv := r.Liveness; lv != nil {
		fmt.Fprintln(out, "\nLiveness:")
		if lv.Score != nil {
			fmt.Fprintf(out, "  score %.3f vs tau %.2f: %s\n", lv.Score.Score, lv.Score.TauAuth, lv.Score.Lean)
		}
		if lv.Gate != nil && lv.Gate.Penalized {
			fmt.Fprintf(out, "  %s\n", lv.Gate.Message)
		}
		for _, g := range lv.Highlights {
			fmt.Fprintf(out, "  gate %s: %.2f below threshold %.2f\n", g.Name, g.Value, g.Threshold)
		}
		if len(lv.Features) > 0 {
			w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, f := range lv.Features {
				fmt.Fprintf(w, "  %s\t%.2f\t%s\n", f.Name, f.Value, f.Label)
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}
	}

	if len(r.Evidence) > 0 {
		fmt.Fprintln(out, "\nEvidence:")
		for _, g := range r.Evidence {
			fmt.Fprintf(out, "  %s: %s (%d)\n", g.Title, g.Availability, len(g.Artifacts))
			for _, a := range g.Artifacts {
				fmt.Fprintf(out, "    %s\n", a.Path)
			}
		}
	}
	return nil
}
