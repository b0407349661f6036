package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cleanupVacuum bool

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired check results",
	Long: `Delete stored check results and their audit trails according to the
retention policy.

Clear results expire after retention.retention_days; duplicates and fail-safe
results are kept for retention.flagged_retention_days. Historical invoices are
never deleted. Deletion runs in transactions of retention.cleanup_batch_size
results.

Examples:
  dupcheck cleanup
  dupcheck cleanup --vacuum
  DUPCHECK_RETENTION_DAYS=30 dupcheck cleanup`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
		defer cancel()
		out := cmd.OutOrStdout()
		cfg := appCfg.Retention

		fmt.Fprintf(out, "Result Retention Configuration:\n")
		fmt.Fprintf(out, "  Clear results: %d days\n", cfg.RetentionDays)
		fmt.Fprintf(out, "  Flagged results: %d days\n", cfg.FlaggedRetentionDays)
		fmt.Fprintf(out, "  Batch size: %d results/txn\n\n", cfg.CleanupBatchSize)

		before, err := store.GetResultCounts(ctx)
		if err != nil {
			return fmt.Errorf("failed to get result counts: %w", err)
		}
		fmt.Fprintf(out, "Current state:\n")
		fmt.Fprintf(out, "  Results: %s (%s duplicate, %s fail-safe)\n",
			formatNumber(before.TotalResults), formatNumber(before.Duplicates), formatNumber(before.FailSafe))
		levels := make([]string, 0, len(before.ByRiskLevel))
		for level := range before.ByRiskLevel {
			levels = append(levels, level)
		}
		sort.Strings(levels)
		for _, level := range levels {
			fmt.Fprintf(out, "    %-8s %s\n", level, formatNumber(before.ByRiskLevel[level]))
		}
		fmt.Fprintf(out, "  Audit entries: %s\n", formatNumber(before.AuditEntries))
		fmt.Fprintf(out, "  Historical invoices: %s\n\n", formatNumber(before.HistoricalInvoices))

		startTime := time.Now()
		deleted, err := store.CleanupResultsByAge(ctx, startTime,
			cfg.RetentionDays, cfg.FlaggedRetentionDays, cfg.CleanupBatchSize)
		if err != nil {
			return fmt.Errorf("cleanup failed after deleting %d result(s): %w", deleted, err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(out, "%s Cleanup complete\n", green("✓"))
		fmt.Fprintf(out, "  Results deleted: %s\n", formatNumber(deleted))

		after, err := store.GetResultCounts(ctx)
		if err != nil {
			remaining := before.TotalResults - deleted
			if remaining < 0 {
				remaining = 0
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to get final result counts: %v\n", err)
			fmt.Fprintf(out, "  Results remaining: ~%s (estimated)\n", formatNumber(remaining))
		} else {
			fmt.Fprintf(out, "  Results remaining: %s\n", formatNumber(after.TotalResults))
			fmt.Fprintf(out, "  Audit entries remaining: %s\n", formatNumber(after.AuditEntries))
		}
		fmt.Fprintf(out, "  Time taken: %s\n", time.Since(startTime).Round(time.Millisecond))

		if cleanupVacuum || cfg.CleanupVacuum {
			fmt.Fprintf(out, "\nRunning VACUUM to reclaim disk space...\n")
			if err := store.VacuumDatabase(ctx); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s VACUUM complete\n", green("✓"))
		}
		return nil
	},
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupVacuum, "vacuum", false, "Run VACUUM after cleanup to reclaim disk space")
	rootCmd.AddCommand(cleanupCmd)
}
