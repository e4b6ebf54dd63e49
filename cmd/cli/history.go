package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cyberdash/reconengine/internal/db"
)

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored scan reports",
	Long: `List scan reports stored in the history database, newest first.
Requires database.enabled in the configuration.`,
	Example: `  reconengine history
  reconengine history --limit 50
  reconengine history show 6f1c1f36-6a4e-4d59-9b1e-0c3f2b0a7d11`,
	Args: cobra.NoArgs,
	RunE: runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one stored report",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show schema migration status",
	Args:  cobra.NoArgs,
	RunE:  runHistoryStatus,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyStatusCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", db.DefaultHistoryLimit, "Maximum number of reports to list")
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	if historyLimit < 1 {
		return fmt.Errorf("--limit must be a positive integer")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd.Context(), 0)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	reports, err := store.ListReports(ctx, historyLimit)
	if err != nil {
		return err
	}

	if outputFormat == outputJSON {
		return writeJSON(cmd.OutOrStdout(), reports)
	}
	return renderHistory(cmd.OutOrStdout(), reports)
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid report id %q", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd.Context(), 0)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	report, err := store.GetReport(ctx, id)
	if err != nil {
		return err
	}

	if outputFormat == outputJSON {
		return writeJSON(cmd.OutOrStdout(), report)
	}
	return renderReport(cmd.OutOrStdout(), report, false)
}

func runHistoryStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Database.Enabled {
		return fmt.Errorf("report history is disabled (set database.enabled)")
	}

	ctx, cancel := commandContext(cmd.Context(), 0)
	defer cancel()

	database, err := db.Connect(ctx, &cfg.Database.Config)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	statuses, err := db.NewMigrator(database.DB).Status(ctx)
	if err != nil {
		return err
	}

	if outputFormat == outputJSON {
		return writeJSON(cmd.OutOrStdout(), statuses)
	}
	return renderMigrations(cmd.OutOrStdout(), statuses)
}

// renderHistory prints report summaries, newest first.
func renderHistory(w io.Writer, reports []db.ReportSummary) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Mode", "Target", "Started", "Duration", "Open", "Closed", "Filtered", "Errors")
	for _, r := range reports {
		if err := table.Append([]string{
			r.ID.String(),
			string(r.Mode),
			r.Target.Input,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			(time.Duration(r.DurationMS) * time.Millisecond).String(),
			strconv.Itoa(r.Summary.Open),
			strconv.Itoa(r.Summary.Closed),
			strconv.Itoa(r.Summary.Filtered),
			strconv.Itoa(r.Summary.Errors),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderMigrations(w io.Writer, statuses []db.MigrationStatus) error {
	table := tablewriter.NewWriter(w)
	table.Header("Migration", "Applied", "Applied At")
	for _, s := range statuses {
		appliedAt := "-"
		if s.Applied {
			appliedAt = s.AppliedAt.Local().Format("2006-01-02 15:04:05")
		}
		if err := table.Append([]string{s.Name, strconv.FormatBool(s.Applied), appliedAt}); err != nil {
			return err
		}
	}
	return table.Render()
}
