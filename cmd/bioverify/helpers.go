package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kiranshivaraju/bioverify/internal/bioverify"
	"github.com/kiranshivaraju/bioverify/internal/config"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// loadClient reads configuration and builds the API client. Diagnostics go
// to stderr so stdout stays machine-readable.
func loadClient() (*bioverify.HTTPClient, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	level, _ := cfg.Log.SlogLevel()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return bioverify.NewHTTPClient(cfg.API), cfg, nil
}

func jsonOutput() bool { return rootFlags.output == outputJSON }

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
