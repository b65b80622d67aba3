// Package cli — history.go implements the "cirun history" command.
//
// History lists recent orchestration runs from the SQLite history
// database that the run command maintains under generated/.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/cirun/internal/config"
	"github.com/mmr-tortoise/cirun/internal/history"
)

// historyFlags holds the flag values for the history command.
type historyFlags struct {
	limit       int    // --limit: maximum number of runs to show
	projectRoot string // --project-root: override git-based root resolution
}

// NewHistoryCommand creates the "history" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewHistoryCommand() *cobra.Command {
	flags := &historyFlags{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent orchestration runs",
		Long: `List recent runs recorded in the history database, newest first.

Each row shows the run's identifier, platform branch, outcome, and how
many steps failed in a tolerated way (which the outcome alone hides).

Examples:
  cirun history
  cirun history --limit 25 --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), flags)
		},
	}

	cmd.Flags().IntVar(&flags.limit, "limit", 10, "Maximum number of runs to list")
	cmd.Flags().StringVar(&flags.projectRoot, "project-root", "",
		"Project root directory (default: resolve via git from the current directory)")

	return cmd
}

// runHistory is the main logic function for the history command.
func runHistory(ctx context.Context, flags *historyFlags) error {
	projectRoot, err := resolveProjectRoot(flags.projectRoot)
	if err != nil {
		return err
	}

	cfg, err := config.Load(projectRoot)
	if err != nil {
		return err
	}

	store, err := history.Open(filepath.Join(projectRoot, cfg.HistoryPath))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.RecentRuns(ctx, flags.limit)
	if err != nil {
		return err
	}

	printHistoryResult(runs)
	return nil
}

// printHistoryResult outputs the run summaries in text or JSON format,
// depending on the global --json flag.
func printHistoryResult(runs []history.RunSummary) {
	if IsJSONOutput() {
		if runs == nil {
			// Emit [] rather than null for an empty history.
			runs = []history.RunSummary{}
		}
		data, _ := json.MarshalIndent(runs, "", "  ")
		fmt.Println(string(data))
		return
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return
	}

	for _, run := range runs {
		line := fmt.Sprintf("%s  %-8s %-7s %s",
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.Platform, run.Outcome, run.RunID)
		if run.ToleratedSteps > 0 {
			line += fmt.Sprintf("  (%d tolerated)", run.ToleratedSteps)
		}
		fmt.Println(line)
	}
}
