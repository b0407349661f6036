package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/dupcheck/internal/storage/sqlite"
	"github.com/steveyegge/dupcheck/internal/types"
)

var resultsFilter sqlite.ResultFilter

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List stored check results",
	Long: `List stored check results, most recent first.

Examples:
  dupcheck results --limit 20
  dupcheck results --duplicates
  dupcheck results --hash 9b1d...`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		summaries, err := store.ListResults(cmd.Context(), resultsFilter)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(summaries) == 0 {
			fmt.Fprintln(out, "No results")
			return nil
		}

		gray := color.New(color.FgHiBlack)
		for _, s := range summaries {
			label := "CLEAR"
			switch {
			case s.FailSafe:
				label = "FAIL-SAFE"
			case s.IsDuplicate:
				label = "DUPLICATE"
			}
			fmt.Fprintf(out, "%s  %s  %3.0f%%  %-16s %s\n",
				gray.Sprint(s.CompletedAt),
				riskColor(types.RiskLevel(s.RiskLevel)).Sprintf("%-9s %-8s", label, s.RiskLevel),
				s.Confidence*100, s.DuplicateType, s.CheckID)
		}
		fmt.Fprintf(out, "\n%s result(s)\n", formatNumber(len(summaries)))
		return nil
	},
}

func init() {
	resultsCmd.Flags().BoolVar(&resultsFilter.DuplicatesOnly, "duplicates", false, "Only show duplicates and fail-safe results")
	resultsCmd.Flags().StringVar(&resultsFilter.ContentHash, "hash", "", "Only show results for this content hash")
	resultsCmd.Flags().IntVar(&resultsFilter.Limit, "limit", 50, "Maximum results to show (0 = all)")
	rootCmd.AddCommand(resultsCmd)
}
