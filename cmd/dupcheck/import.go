package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/dupcheck/internal/types"
)

// maxParallelReads bounds concurrent file parsing during import.
const maxParallelReads = 4

var importCmd = &cobra.Command{
	Use:   "import <file.json>...",
	Short: "Load historical invoices into the store",
	Long: `Read historical invoices from one or more JSON files and store them as
comparison context for later checks. Each file holds a single invoice object
or an array of them; "-" reads standard input.

Files are parsed in parallel and stored in a single transaction: if any
invoice is invalid or its id already exists, nothing is imported.

Examples:
  dupcheck import history-2023.json history-2024.json
  cat export.json | dupcheck import -`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batches := make([][]*types.HistoricalInvoice, len(args))

		g, _ := errgroup.WithContext(cmd.Context())
		g.SetLimit(maxParallelReads)
		for i, path := range args {
			i, path := i, path
			g.Go(func() error {
				invoices, err := readHistorical(path)
				if err != nil {
					return err
				}
				batches[i] = invoices
				logger.Debug("parsed history file", zap.String("path", path), zap.Int("invoices", len(invoices)))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		var all []*types.HistoricalInvoice
		for _, b := range batches {
			all = append(all, b...)
		}
		if err := store.AddInvoices(cmd.Context(), all); err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		total, err := store.CountInvoices(cmd.Context())
		if err != nil {
			return err
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(cmd.OutOrStdout(), "%s Imported %s invoice(s) from %d file(s); %s in store\n",
			green("✓"), formatNumber(len(all)), len(args), formatNumber(total))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
