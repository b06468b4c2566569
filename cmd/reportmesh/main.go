// Package main provides the reportmesh CLI.
//
// Start the API server:
//
//	reportmesh serve --config reportmesh.yaml
//
// Run one turn against a report from the terminal:
//
//	reportmesh generate --report 1 "chart revenue by quarter"
//
// Configuration falls back to REPORTMESH_CONFIG, then to built-in defaults
// with GOOGLE_API_KEY, OPENAI_API_KEY, ANTHROPIC_API_KEY and REPORTMESH_DB
// taken from the environment.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := buildRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "reportmesh",
		Short:         "Agent driven report builder",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("REPORTMESH_CONFIG"),
		"Path to YAML configuration file")

	root.AddCommand(
		buildServeCmd(&configPath),
		buildGenerateCmd(&configPath),
		buildReportsCmd(&configPath),
	)

	return root
}
