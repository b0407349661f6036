package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steveyegge/dupcheck/internal/deduplication"
	"github.com/steveyegge/dupcheck/internal/prefilter"
	"github.com/steveyegge/dupcheck/internal/types"
)

// exitDuplicate is the exit code for --fail-on-duplicate.
const exitDuplicate = 2

type checkOptions struct {
	batch           bool
	windowDays      int
	threshold       float64
	trusted         bool
	category        string
	riskProfile     string
	usePrefilter    bool
	historyDays     int
	jsonOutput      bool
	noSave          bool
	failOnDuplicate bool
}

var checkOpts checkOptions

var checkCmd = &cobra.Command{
	Use:   "check <candidate.json>",
	Short: "Check invoices for duplicates",
	Long: `Check a candidate invoice against the stored history and print the
result. The result and its audit trail are stored unless --no-save is given.

With --batch the file holds an array of candidates. They are checked in
order and each one is also compared with the earlier candidates of the same
batch. Supplier trust and category from the config file only apply to
single checks; use --trusted and --category for a batch.

Examples:
  dupcheck check invoice.json
  dupcheck check --window-days 14 --threshold 0.8 invoice.json
  dupcheck check --batch --prefilter --json todays-invoices.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := checkOpts
		if !cmd.Flags().Changed("prefilter") {
			opts.usePrefilter = appCfg.PrefilterEnabled
		}
		thresholdSet := cmd.Flags().Changed("threshold")

		candidates, err := readCandidates(args[0])
		if err != nil {
			return err
		}
		if !opts.batch && len(candidates) != 1 {
			return fmt.Errorf("%s holds %d invoices; use --batch to check more than one", args[0], len(candidates))
		}

		engine, err := deduplication.New(appCfg.Engine, deduplication.WithLogger(logger))
		if err != nil {
			return err
		}

		history, err := store.ListInvoices(cmd.Context(), historyFilter(candidates, opts.historyDays))
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		loaded := len(history)
		if opts.usePrefilter {
			history, err = narrowHistory(history, candidates, appCfg.Prefilter)
			if err != nil {
				return err
			}
		}
		logger.Debug("history loaded",
			zap.Int("loaded", loaded),
			zap.Int("compared", len(history)),
			zap.Bool("prefilter", opts.usePrefilter))

		var single *types.InvoiceCandidate
		if !opts.batch {
			single = candidates[0]
		}
		cctx := appCfg.ContextFor(single, history)
		opts.apply(cctx, thresholdSet)

		out := cmd.OutOrStdout()
		if opts.batch {
			return runBatch(cmd, engine, candidates, cctx, opts, out)
		}
		return runSingle(cmd, engine, candidates[0], cctx, opts, out)
	},
}

func (o checkOptions) apply(cctx *deduplication.CheckContext, thresholdSet bool) {
	if o.windowDays > 0 {
		cctx.TemporalWindowDays = o.windowDays
	}
	if thresholdSet {
		threshold := o.threshold
		cctx.ConfidenceThreshold = &threshold
	}
	if o.trusted {
		cctx.TrustedSupplier = true
	}
	if o.category != "" {
		cctx.SupplierCategory = o.category
	}
	if o.riskProfile != "" {
		cctx.UserRiskProfile = o.riskProfile
	}
}

func runSingle(cmd *cobra.Command, engine *deduplication.Engine, c *types.InvoiceCandidate,
	cctx *deduplication.CheckContext, opts checkOptions, out io.Writer) error {
	result, err := engine.Check(c, cctx)
	if err != nil {
		var verr *deduplication.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("candidate rejected: %w", err)
		}
		return err
	}

	if !opts.noSave {
		if err := store.SaveResult(cmd.Context(), result); err != nil {
			return fmt.Errorf("failed to save result %s: %w", result.CheckID, err)
		}
	}

	if opts.jsonOutput {
		if err := writeJSON(out, result); err != nil {
			return err
		}
	} else {
		renderResult(out, c, result)
	}

	if opts.failOnDuplicate && (result.IsDuplicate || result.FailSafe) {
		return exitError{code: exitDuplicate}
	}
	return nil
}

func runBatch(cmd *cobra.Command, engine *deduplication.Engine, candidates []*types.InvoiceCandidate,
	cctx *deduplication.CheckContext, opts checkOptions, out io.Writer) error {
	batch, err := engine.CheckBatch(candidates, cctx)
	if err != nil {
		return err
	}

	if !opts.noSave {
		if err := store.SaveBatch(cmd.Context(), batch); err != nil {
			return fmt.Errorf("failed to save batch %s: %w", batch.BatchID, err)
		}
	}

	if opts.jsonOutput {
		if err := writeJSON(out, batch); err != nil {
			return err
		}
	} else {
		renderBatch(out, candidates, batch)
	}

	s := batch.Stats
	if opts.failOnDuplicate && s.DuplicateCount+s.WithinBatchDuplicateCount+s.FailSafeCount > 0 {
		return exitError{code: exitDuplicate}
	}
	return nil
}

// historyFilter bounds history to historyDays before the earliest candidate
// date. Zero means the whole store.
func historyFilter(candidates []*types.InvoiceCandidate, historyDays int) types.InvoiceFilter {
	var filter types.InvoiceFilter
	if historyDays <= 0 {
		return filter
	}
	var earliest time.Time
	for _, c := range candidates {
		if c.InvoiceDate.IsZero() {
			continue
		}
		if earliest.IsZero() || c.InvoiceDate.Before(earliest) {
			earliest = c.InvoiceDate
		}
	}
	if !earliest.IsZero() {
		filter.Since = earliest.AddDate(0, 0, -historyDays)
	}
	return filter
}

// narrowHistory keeps the historical invoices the pre-filter considers worth
// comparing with any of the candidates, in their original order.
func narrowHistory(history []types.HistoricalInvoice, candidates []*types.InvoiceCandidate, opts prefilter.Options) ([]types.HistoricalInvoice, error) {
	index, err := prefilter.NewIndex(history, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to build pre-filter index: %w", err)
	}
	keep := make(map[string]bool)
	for _, c := range candidates {
		for _, h := range index.Narrow(c) {
			keep[h.ID] = true
		}
	}
	narrowed := make([]types.HistoricalInvoice, 0, len(keep))
	for _, h := range history {
		if keep[h.ID] {
			narrowed = append(narrowed, h)
		}
	}
	return narrowed, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func init() {
	f := checkCmd.Flags()
	f.BoolVar(&checkOpts.batch, "batch", false, "treat the file as a batch of candidates")
	f.IntVar(&checkOpts.windowDays, "window-days", 0, "temporal window in days for this check (default from config)")
	f.Float64Var(&checkOpts.threshold, "threshold", 0, "duplicate confidence threshold for this check")
	f.BoolVar(&checkOpts.trusted, "trusted", false, "treat the supplier as trusted")
	f.StringVar(&checkOpts.category, "category", "", "supplier category (e.g. HIGH_RISK)")
	f.StringVar(&checkOpts.riskProfile, "risk-profile", "", "submitting user's risk profile (e.g. HIGH)")
	f.BoolVar(&checkOpts.usePrefilter, "prefilter", false, "narrow history with the Bloom/SimHash pre-filter")
	f.IntVar(&checkOpts.historyDays, "history-days", 0, "only compare invoices from N days before the candidate (0 = all)")
	f.BoolVar(&checkOpts.jsonOutput, "json", false, "print the result as JSON")
	f.BoolVar(&checkOpts.noSave, "no-save", false, "do not store the result")
	f.BoolVar(&checkOpts.failOnDuplicate, "fail-on-duplicate", false, "exit with status 2 when a duplicate or fail-safe result is found")

	rootCmd.AddCommand(checkCmd)
}
