package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tablestream/csvmerge3/internal/cli/appctx"
	"github.com/tablestream/csvmerge3/internal/db"
	"github.com/tablestream/csvmerge3/internal/history"
	"github.com/tablestream/csvmerge3/internal/render"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the run history database",
}

var historyListFlags struct {
	limit int
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent merge runs",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run's conflicts",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply any pending history database migrations",
	RunE:  runHistoryMigrate,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyMigrateCmd)
	historyListCmd.Flags().IntVar(&historyListFlags.limit, "limit", 20, "maximum number of runs to show")
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	ctx, err := appctx.Load(cmd)
	if err != nil {
		return exitError(1, err)
	}
	defer ctx.Close()

	database, err := ctx.OpenHistory()
	if err != nil {
		return exitError(1, err)
	}

	runs, err := history.New(database).List(historyListFlags.limit)
	if err != nil {
		return exitError(1, err)
	}

	r := render.NewRenderer(cmd.OutOrStdout(), render.Options{})
	if ctx.JSON {
		return r.RenderJSON(runs)
	}

	headers := []string{"ID", "STARTED", "KEY", "CONFLICTS", "EXIT"}
	rows := make([][]string, len(runs))
	for i, run := range runs {
		rows[i] = []string{
			run.ID,
			run.StartedAt.Format("2006-01-02T15:04:05Z"),
			run.KeyColumn,
			fmt.Sprintf("%d", run.ConflictCount),
			fmt.Sprintf("%d", run.ExitCode),
		}
	}
	return r.RenderTable(headers, rows)
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	ctx, err := appctx.Load(cmd)
	if err != nil {
		return exitError(1, err)
	}
	defer ctx.Close()

	database, err := ctx.OpenHistory()
	if err != nil {
		return exitError(1, err)
	}

	conflicts, err := history.New(database).Conflicts(args[0])
	if err != nil {
		return exitError(1, err)
	}

	r := render.NewRenderer(cmd.OutOrStdout(), render.Options{})
	if ctx.JSON {
		return r.RenderJSON(conflicts)
	}

	rows := make([][]string, len(conflicts))
	for i, c := range conflicts {
		rows[i] = []string{c.RowKey, c.Column}
	}
	return r.RenderTable([]string{"KEY", "COLUMN"}, rows)
}

func runHistoryMigrate(cmd *cobra.Command, args []string) error {
	ctx, err := appctx.Load(cmd)
	if err != nil {
		return exitError(1, err)
	}
	defer ctx.Close()

	database, err := db.Open(ctx.Config.HistoryDBPath)
	if err != nil {
		return exitError(1, fmt.Errorf("open history database: %w", err))
	}
	defer database.Close()

	applied, err := database.MigrateWithInfo()
	if err != nil {
		return exitError(1, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(applied))
	return nil
}
