package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

func buildServeCmd(configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

The server opens the SQLite database, builds the agent team and exposes
report CRUD, saved query listing, streaming generation and /metrics.
Graceful shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configPath, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides http.addr)")

	return cmd
}

func buildGenerateCmd(configPath *string) *cobra.Command {
	var (
		reportID   int64
		userID     string
		newSession bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Run one generation turn against a report",
		Example: `  reportmesh generate --report 1 "add a KPI for total revenue"
  reportmesh generate --report 1 --json "chart revenue by quarter"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if reportID <= 0 {
				return errors.New("--report is required")
			}

			return runGenerate(cmd.Context(), cmd.OutOrStdout(), *configPath, generateOptions{
				reportID:   reportID,
				userID:     userID,
				prompt:     strings.Join(args, " "),
				newSession: newSession,
				jsonOutput: jsonOutput,
			})
		},
	}

	cmd.Flags().Int64Var(&reportID, "report", 0, "Report id to generate into")
	cmd.Flags().StringVar(&userID, "user", "cli_user", "User id scoping the session")
	cmd.Flags().BoolVar(&newSession, "new-session", false, "Discard conversation state before the turn")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print output events as JSON lines")

	return cmd
}

func buildReportsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Manage stored reports",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List reports, most recently updated first",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runReportsList(cmd.Context(), cmd.OutOrStdout(), *configPath)
			},
		},
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create an empty report",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runReportsCreate(cmd.Context(), cmd.OutOrStdout(), *configPath, strings.Join(args, " "))
			},
		},
	)

	return cmd
}
