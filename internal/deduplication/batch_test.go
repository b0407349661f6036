package deduplication

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/dupcheck/internal/events"
	"github.com/steveyegge/dupcheck/internal/types"
)

func TestCheckBatch(t *testing.T) {
	e := newTestEngine(t)
	cctx := &CheckContext{HistoricalInvoices: []types.HistoricalInvoice{
		historical("h1", "A-77", "Sigma Holdings", "120.00", "2024-01-05"),
	}}

	candidates := []*types.InvoiceCandidate{
		invoice("INV-5001", "Omega Ltd", "250.00", "2024-06-01"),
		invoice("INV-5001", "Omega Ltd", "250.00", "2024-06-01"),
		invoice("A-77", "Sigma Holdings", "120.00", "2024-01-05"),
		nil,
		invoice("INV-5002", "", "80.00", "2024-06-01"),
		invoice("Z-1", "Zeta Industries", "9999.99", "2024-06-02"),
	}

	result, err := e.CheckBatch(candidates, cctx)
	require.NoError(t, err)
	require.NoError(t, result.Validate())

	assert.NotEmpty(t, result.BatchID)
	assert.Equal(t, map[int]int{1: 0}, result.WithinBatchDuplicates)
	assert.Equal(t, map[int]string{2: "h1"}, result.DuplicatePairs)
	assert.Len(t, result.Invalid, 2)
	assert.Contains(t, result.Invalid[4], types.FieldSupplierName)
	assert.Equal(t, ErrNilCandidate.Error(), result.Invalid[3])

	assert.Equal(t, BatchStats{
		TotalCandidates:           6,
		UniqueCount:               2,
		DuplicateCount:            1,
		WithinBatchDuplicateCount: 1,
		InvalidCount:              2,
		FailSafeCount:             0,
		ComparisonsMade:           1 + 2 + 2 + 2,
		ProcessingTimeMs:          result.Stats.ProcessingTimeMs,
	}, result.Stats)

	assert.Equal(t, types.DuplicateExact, result.Results[1].DuplicateType)
	assert.Equal(t, BatchInvoiceID(result.BatchID, 0), result.Results[1].PotentialDuplicates[0].HistoricalID)
	assert.False(t, result.Results[5].IsDuplicate)

	require.Len(t, result.Events, 2)
	assert.Equal(t, events.EventTypeBatchStarted, result.Events[0].Type)
	completed, err := result.Events[1].GetBatchCompletedData()
	require.NoError(t, err)
	assert.Equal(t, result.BatchID, completed.BatchID)
	assert.Equal(t, 1, completed.DuplicateCount)
	assert.Equal(t, 1, completed.WithinBatchCount)

	assert.Len(t, cctx.HistoricalInvoices, 1, "caller history is not extended")
}

func TestCheckBatchEmpty(t *testing.T) {
	result, err := newTestEngine(t).CheckBatch(nil, nil)
	require.NoError(t, err)
	require.NoError(t, result.Validate())
	assert.Equal(t, 0, result.Stats.TotalCandidates)
	assert.Len(t, result.Events, 2)
}

func TestCheckBatchFailSafe(t *testing.T) {
	e := newTestEngine(t)
	e.analyzers[1].run = func(*analysisInput) ([]MatchEvidence, error) { panic("supplier index corrupt") }

	result, err := e.CheckBatch([]*types.InvoiceCandidate{
		invoice("N-1", "Nu", "10.00", "2024-06-01"),
		invoice("N-2", "Nu", "20.00", "2024-06-02"),
	}, nil)
	require.NoError(t, err)
	require.NoError(t, result.Validate())

	assert.Equal(t, 2, result.Stats.FailSafeCount)
	assert.Equal(t, 0, result.Stats.UniqueCount)
	assert.Empty(t, result.DuplicatePairs)
	assert.Equal(t, events.SeverityWarning, result.Events[1].Severity)
}

func TestBatchResultValidate(t *testing.T) {
	r := &BatchResult{
		Results:               []*Result{nil},
		DuplicatePairs:        map[int]string{},
		WithinBatchDuplicates: map[int]int{0: 0},
		Stats:                 BatchStats{TotalCandidates: 1, WithinBatchDuplicateCount: 1},
	}
	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must point to an earlier candidate")

	r = &BatchResult{
		Results: []*Result{nil, nil},
		Stats:   BatchStats{TotalCandidates: 2, UniqueCount: 1, InvalidCount: 0},
	}
	err = r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "do not add up")
}

func TestCheckBatchCallerIDsAreNotBatchMembers(t *testing.T) {
	e := newTestEngine(t)
	cctx := &CheckContext{HistoricalInvoices: []types.HistoricalInvoice{
		historical("batch:0", "A-77", "Sigma Holdings", "120.00", "2024-01-05"),
	}}
	candidates := []*types.InvoiceCandidate{
		invoice("Z-1", "Zeta Industries", "9999.99", "2024-06-02"),
		invoice("A-77", "Sigma Holdings", "120.00", "2024-01-05"),
	}

	result, err := e.CheckBatch(candidates, cctx)
	require.NoError(t, err)
	require.NoError(t, result.Validate())

	assert.Empty(t, result.WithinBatchDuplicates)
	assert.Equal(t, map[int]string{1: "batch:0"}, result.DuplicatePairs)
	assert.NotEqual(t, "batch:0", BatchInvoiceID(result.BatchID, 0))
}
