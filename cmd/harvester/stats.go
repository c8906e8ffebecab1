package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/harvester/internal/config"
	"github.com/nao1215/harvester/internal/database"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [session-id]",
		Short: "Show stored session statistics",
		Long: `Stats prints statistics of past crawl sessions from the database.

Without arguments, all stored sessions are listed newest first. With a
session ID, the pages and dead tasks of that session are shown as well.

Examples:
  # List all stored sessions
  harvester stats

  # Show details for one session
  harvester stats 11111111-2222-3333-4444-555555555555`,
		Args: cobra.MaximumNArgs(1),
		RunE: runStatsCmd,
	}

	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")

	return cmd
}

// runStatsCmd executes the stats command.
func runStatsCmd(cmd *cobra.Command, args []string) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if err != nil {
		return fmt.Errorf("failed to open database (run a crawl first?): %w", err)
	}
	defer db.Close()

	if len(args) == 1 {
		return showSession(cmd, db, args[0])
	}
	return listSessions(cmd, db)
}

// listSessions prints a summary line per stored session.
func listSessions(cmd *cobra.Command, db *database.HarvestDB) error {
	sessions, err := db.ListSessions(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No stored sessions.")
		return nil
	}

	for _, s := range sessions {
		duration := s.FinishedAt.Sub(s.StartedAt).Round(time.Second)
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  total=%d completed=%d dead=%d success=%.1f%%  (%s)\n",
			s.ID,
			s.StartedAt.Format("2006-01-02 15:04"),
			s.Stats.Total,
			s.Stats.Completed,
			s.Stats.Dead,
			s.Stats.SuccessRate*100,
			duration,
		)
	}
	return nil
}

// showSession prints one session with its pages and dead tasks.
func showSession(cmd *cobra.Command, db *database.HarvestDB, sessionID string) error {
	s, err := db.GetSession(cmd.Context(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if s == nil {
		return fmt.Errorf("session not found: %s", sessionID)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Session: %s\n", s.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "Started: %s\n", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(cmd.OutOrStdout(), "Tasks:   total=%d completed=%d dead=%d success=%.1f%%\n\n",
		s.Stats.Total, s.Stats.Completed, s.Stats.Dead, s.Stats.SuccessRate*100)

	pages, err := db.ListPages(cmd.Context(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}
	if len(pages) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Pages:")
		for _, p := range pages {
			fmt.Fprintf(cmd.OutOrStdout(), "  [%d] %s", p.StatusCode, p.URL)
			if p.Title != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  %q", p.Title)
			}
			fmt.Fprintln(cmd.OutOrStdout())
		}
		fmt.Fprintln(cmd.OutOrStdout())
	}

	dead, err := db.DeadTasksFor(cmd.Context(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to list dead tasks: %w", err)
	}
	if len(dead) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Dead tasks:")
		for _, d := range dead {
			fmt.Fprintf(cmd.OutOrStdout(), "  [x] %s (%d attempts): %s\n", d.URL, d.Attempts, d.LastError)
		}
	}

	return nil
}
