package deduplication

import (
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/dupcheck/internal/events"
	"github.com/steveyegge/dupcheck/internal/normalize"
	"github.com/steveyegge/dupcheck/internal/types"
)

// analysisInput is what every analyzer reads. It is built once per check and
// never written after construction, so analyzers may share it across goroutines.
type analysisInput struct {
	candidate *types.InvoiceCandidate
	history   []types.HistoricalInvoice
	byID      map[string]*types.HistoricalInvoice
	cfg       Config
	cctx      *CheckContext

	invoiceNumber string
	supplierName  string
	taxID         string
	poNumber      string
	contentHash   string
}

func newAnalysisInput(candidate *types.InvoiceCandidate, contentHash string, cctx *CheckContext, cfg Config) *analysisInput {
	in := &analysisInput{
		candidate:     candidate,
		history:       cctx.HistoricalInvoices,
		byID:          make(map[string]*types.HistoricalInvoice, len(cctx.HistoricalInvoices)),
		cfg:           cfg,
		cctx:          cctx,
		invoiceNumber: normalize.InvoiceNumber(candidate.InvoiceNumber),
		supplierName:  normalize.SupplierName(candidate.SupplierName),
		taxID:         normalize.TaxID(candidate.SupplierTaxID),
		poNumber:      normalize.PONumber(candidate.PONumber),
		contentHash:   contentHash,
	}
	for i := range in.history {
		in.byID[in.history[i].ID] = &in.history[i]
	}
	return in
}

// analyzer is one independent evidence producer. stage is the pipeline stage
// its evidence belongs to.
type analyzer struct {
	name  string
	stage events.Stage
	run   func(in *analysisInput) ([]MatchEvidence, error)
}

func defaultAnalyzers() []analyzer {
	return []analyzer{
		{name: "invoice_number", stage: events.StageFuzzyAnalyzed, run: matchInvoiceNumbers},
		{name: "supplier_name", stage: events.StageFuzzyAnalyzed, run: matchSupplierNames},
		{name: "amount", stage: events.StageFuzzyAnalyzed, run: matchAmounts},
		{name: "temporal_cluster", stage: events.StageClustered, run: findTemporalClusters},
		{name: "supplier_cluster", stage: events.StageClustered, run: findSupplierClusters},
		{name: "line_items", stage: events.StageClustered, run: matchLineItems},
	}
}

// safeRun calls a.run, turning a panic into a *SystemError.
func safeRun(a analyzer, in *analysisInput) (evidence []MatchEvidence, err error) {
	defer func() {
		if r := recover(); r != nil {
			evidence = nil
			err = &SystemError{Stage: a.stage, Analyzer: a.name, Err: &panicError{value: r}}
		}
	}()
	evidence, err = a.run(in)
	if err != nil {
		return nil, &SystemError{Stage: a.stage, Analyzer: a.name, Err: err}
	}
	return evidence, nil
}

// runAnalyzers runs every analyzer and returns their evidence in analyzer
// order, whether or not they ran concurrently. The first failure wins.
func runAnalyzers(analyzers []analyzer, in *analysisInput, parallel bool) ([][]MatchEvidence, error) {
	slots := make([][]MatchEvidence, len(analyzers))

	if !parallel {
		for i, a := range analyzers {
			ev, err := safeRun(a, in)
			if err != nil {
				return nil, err
			}
			slots[i] = ev
		}
		return slots, nil
	}

	var g errgroup.Group
	for i, a := range analyzers {
		i, a := i, a
		g.Go(func() error {
			ev, err := safeRun(a, in)
			if err != nil {
				return err
			}
			slots[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slots, nil
}

// collect flattens the slots of analyzers belonging to stage.
func collect(analyzers []analyzer, slots [][]MatchEvidence, stage events.Stage) []MatchEvidence {
	var out []MatchEvidence
	for i, a := range analyzers {
		if a.stage == stage {
			out = append(out, slots[i]...)
		}
	}
	return out
}
