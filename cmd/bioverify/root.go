// bioverify is the operator CLI for the liveness analysis API: submit
// videos, follow jobs to completion, and inspect reports and evidence.
//
// Usage:
//
//	bioverify submit <video> [--policy=<name>] [--watch]
//	bioverify status <analysis-id>
//	bioverify watch <analysis-id> [--evidence]
//	bioverify list [--limit=N] [--offset=N]
//	bioverify evidence <analysis-id> [--verify] [--parallel=N]
//	bioverify health
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	output string
}

var rootCmd = &cobra.Command{
	Use:   "bioverify",
	Short: "Submit videos for liveness analysis and review the results",
	Long: "bioverify talks to the liveness analysis API. It uploads videos,\n" +
		"tracks analysis jobs until they finish and renders verdicts,\n" +
		"pipeline diagnostics and evidence artifacts.\n\n" +
		"Configuration comes from BIOVERIFY_* environment variables or the\n" +
		"YAML file named by BIOVERIFY_CONFIG.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		switch rootFlags.output {
		case outputText, outputJSON:
			return nil
		default:
			return fmt.Errorf("--output must be %q or %q, got %q", outputText, outputJSON, rootFlags.output)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.output, "output", "o", outputText, "Output format: text or json")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(evidenceCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
