package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/dupcheck/internal/storage/sqlite"
)

var auditJSON bool

var auditCmd = &cobra.Command{
	Use:   "audit <check-id>",
	Short: "Show the audit trail of a stored check",
	Long: `Print the stored result of a check followed by every audit entry it
recorded, in order. Batch IDs are accepted too; a batch has no result of its
own, so only its batch_started and batch_completed entries are shown.

Examples:
  dupcheck audit 3f9c0a7e-52d4-4d1b-9a0e-1c2b3d4e5f60
  dupcheck audit --json 3f9c0a7e-52d4-4d1b-9a0e-1c2b3d4e5f60`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		checkID := args[0]

		result, err := store.GetResult(ctx, checkID)
		switch {
		case err == nil:
			if auditJSON {
				return writeJSON(out, result)
			}
			fmt.Fprintf(out, "%s  %s, %.0f%% confidence, risk %s\n\n",
				riskColor(result.RiskLevel).Sprint(verdict(result)), result.DuplicateType,
				result.Confidence*100, result.RiskLevel)
			for _, e := range result.AuditTrail {
				renderAuditEntry(out, e)
			}
			return nil
		case !errors.Is(err, sqlite.ErrNotFound):
			return err
		}

		trail, err := store.GetAuditTrail(ctx, checkID)
		if err != nil {
			return err
		}
		if len(trail) == 0 {
			return fmt.Errorf("no check or batch with id %s", checkID)
		}
		if auditJSON {
			return writeJSON(out, trail)
		}
		for _, e := range trail {
			renderAuditEntry(out, e)
		}
		return nil
	},
}

func init() {
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "Print the stored document as JSON")
	rootCmd.AddCommand(auditCmd)
}
