package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/dupcheck/internal/deduplication"
	"github.com/steveyegge/dupcheck/internal/events"
	"github.com/steveyegge/dupcheck/internal/storage/migrations"
	"github.com/steveyegge/dupcheck/internal/types"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func candidate(number, supplier, amount, day string) *types.InvoiceCandidate {
	return &types.InvoiceCandidate{
		InvoiceNumber: number,
		SupplierName:  supplier,
		TotalAmount:   decimal.RequireFromString(amount),
		InvoiceDate:   date(day),
	}
}

func stored(id, number, supplier, amount, day string) *types.HistoricalInvoice {
	inv := candidate(number, supplier, amount, day).AsHistorical(id)
	return &inv
}

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := New(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func ids(invoices []types.HistoricalInvoice) []string {
	out := make([]string, len(invoices))
	for i, inv := range invoices {
		out[i] = inv.ID
	}
	return out
}

func TestInvoiceRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	inv := stored("", "INV-1001", "Acme Supplies", "1250.40", "2024-03-01")
	inv.SupplierTaxID = "DE123"
	inv.PONumber = "PO-9"
	inv.LineItems = []types.LineItem{
		{Description: "Widgets", Quantity: decimal.RequireFromString("10"), UnitPrice: decimal.RequireFromString("100.04")},
		{Description: "Freight", Quantity: decimal.RequireFromString("1"), UnitPrice: decimal.RequireFromString("250")},
	}

	require.NoError(t, store.AddInvoice(ctx, inv))
	require.NotEmpty(t, inv.ID, "a generated ID is written back")

	got, err := store.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-1001", got.InvoiceNumber)
	assert.Equal(t, "Acme Supplies", got.SupplierName)
	assert.Equal(t, "DE123", got.SupplierTaxID)
	assert.Equal(t, "PO-9", got.PONumber)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("1250.40")))
	assert.True(t, got.InvoiceDate.Equal(date("2024-03-01")))
	require.Len(t, got.LineItems, 2)
	assert.Equal(t, "Widgets", got.LineItems[0].Description)
	assert.True(t, got.LineItems[0].UnitPrice.Equal(decimal.RequireFromString("100.04")))
	assert.Equal(t, "Freight", got.LineItems[1].Description)

	_, err = store.GetInvoice(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAddInvoicesIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.AddInvoice(ctx, stored("h1", "A-1", "Beta", "10.00", "2024-01-01")))

	err := store.AddInvoices(ctx, []*types.HistoricalInvoice{
		stored("h2", "A-2", "Beta", "20.00", "2024-01-02"),
		stored("h1", "A-3", "Beta", "30.00", "2024-01-03"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	err = store.AddInvoices(ctx, []*types.HistoricalInvoice{
		stored("h3", "A-4", "Beta", "20.00", "2024-01-02"),
		stored("h4", "", "Beta", "30.00", "2024-01-03"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), types.FieldInvoiceNumber)

	n, err := store.CountInvoices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "failed batches leave nothing behind")
}

func TestListInvoicesFilters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.AddInvoices(ctx, []*types.HistoricalInvoice{
		stored("h3", "C-3", "Gamma Ltd", "30.00", "2024-03-01"),
		stored("h1", "C-1", "Gamma Ltd", "10.00", "2024-01-01"),
		stored("h2", "D-1", "Delta", "20.00", "2024-02-01"),
		stored("h4", "C-4", " gamma ltd ", "40.00", "2024-04-01"),
	}))

	tests := []struct {
		name   string
		filter types.InvoiceFilter
		want   []string
	}{
		{"all, oldest first", types.InvoiceFilter{}, []string{"h1", "h2", "h3", "h4"}},
		{"supplier ignores case and padding", types.InvoiceFilter{SupplierName: "GAMMA LTD"}, []string{"h1", "h3", "h4"}},
		{"inclusive date range", types.InvoiceFilter{Since: date("2024-02-01"), Until: date("2024-03-01")}, []string{"h2", "h3"}},
		{"limit keeps the most recent", types.InvoiceFilter{Limit: 2}, []string{"h3", "h4"}},
		{"window around a date", types.WindowAround(date("2024-02-01"), 1), []string{"h2"}},
		{"no match", types.InvoiceFilter{SupplierName: "Omega"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListInvoices(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}

	_, err := store.ListInvoices(ctx, types.InvoiceFilter{Limit: -1})
	assert.Error(t, err)
	_, err = store.ListInvoices(ctx, types.InvoiceFilter{Since: date("2024-02-01"), Until: date("2024-01-01")})
	assert.Error(t, err)
}

func checkAgainst(t *testing.T, store *SQLiteStorage, c *types.InvoiceCandidate) *deduplication.Result {
	t.Helper()
	engine, err := deduplication.New(deduplication.DefaultConfig())
	require.NoError(t, err)

	history, err := store.ListInvoices(context.Background(), types.InvoiceFilter{})
	require.NoError(t, err)
	result, err := engine.Check(c, &deduplication.CheckContext{HistoricalInvoices: history})
	require.NoError(t, err)
	return result
}

func TestResultRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.AddInvoice(ctx, stored("h1", "INV-2045", "Sigma Holdings", "980.00", "2024-05-02")))

	result := checkAgainst(t, store, candidate("INV-2045", "Sigma Holdings", "980.00", "2024-05-02"))
	require.Equal(t, types.DuplicateExact, result.DuplicateType)
	require.NoError(t, store.SaveResult(ctx, result))

	got, err := store.GetResult(ctx, result.CheckID)
	require.NoError(t, err)
	require.NoError(t, got.Validate())
	assert.Equal(t, result.CheckID, got.CheckID)
	assert.Equal(t, result.ContentHash, got.ContentHash)
	assert.Equal(t, result.IsDuplicate, got.IsDuplicate)
	assert.Equal(t, result.DuplicateType, got.DuplicateType)
	assert.Equal(t, result.RiskLevel, got.RiskLevel)
	assert.Equal(t, result.MitigationActions, got.MitigationActions)
	require.Len(t, got.PotentialDuplicates, 1)
	assert.Equal(t, "h1", got.PotentialDuplicates[0].HistoricalID)

	require.Len(t, got.AuditTrail, len(result.AuditTrail))
	for i := range result.AuditTrail {
		assert.Equal(t, result.AuditTrail[i].ID, got.AuditTrail[i].ID)
		assert.Equal(t, result.AuditTrail[i].Stage, got.AuditTrail[i].Stage)
		assert.Equal(t, result.AuditTrail[i].Severity, got.AuditTrail[i].Severity)
		assert.True(t, result.AuditTrail[i].Timestamp.Equal(got.AuditTrail[i].Timestamp))
		assert.Len(t, got.AuditTrail[i].Data, len(result.AuditTrail[i].Data))
	}

	err = store.SaveResult(ctx, result)
	assert.Error(t, err, "check IDs are unique")

	_, err = store.GetResult(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSaveResultRejectsInvalid(t *testing.T) {
	store := newTestStore(t)
	result := checkAgainst(t, store, candidate("N-1", "Nu", "10.00", "2024-06-01"))
	result.Confidence = 2

	err := store.SaveResult(context.Background(), result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to store invalid result")

	summaries, err := store.ListResults(context.Background(), ResultFilter{})
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestSaveBatchAndListResults(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	engine, err := deduplication.New(deduplication.DefaultConfig())
	require.NoError(t, err)

	batch, err := engine.CheckBatch([]*types.InvoiceCandidate{
		candidate("K-1", "Kappa", "75.00", "2024-06-01"),
		candidate("K-1", "Kappa", "75.00", "2024-06-01"),
		nil,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveBatch(ctx, batch))

	all, err := store.ListResults(ctx, ResultFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2, "invalid candidates have no stored result")

	dups, err := store.ListResults(ctx, ResultFilter{DuplicatesOnly: true})
	require.NoError(t, err)
	require.Len(t, dups, 1)
	assert.Equal(t, batch.Results[1].CheckID, dups[0].CheckID)
	assert.Equal(t, string(types.DuplicateExact), dups[0].DuplicateType)

	byHash, err := store.ListResults(ctx, ResultFilter{ContentHash: batch.Results[0].ContentHash, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, byHash, 1)

	trail, err := store.GetAuditTrail(ctx, batch.BatchID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, events.EventTypeBatchStarted, trail[0].Type)
	assert.Equal(t, events.EventTypeBatchCompleted, trail[1].Type)
	completed, err := trail[1].GetBatchCompletedData()
	require.NoError(t, err)
	assert.Equal(t, 1, completed.WithinBatchCount)
}

func TestReopenKeepsDataAndSchemaVersion(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dupcheck.db")

	store, err := New(path)
	require.NoError(t, err)
	require.NoError(t, store.AddInvoice(ctx, stored("h1", "R-1", "Rho", "5.00", "2024-01-01")))
	require.NoError(t, store.Close())

	store, err = New(path)
	require.NoError(t, err)
	defer store.Close()

	n, err := store.CountInvoices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	version, err := migrations.Version(ctx, store.db)
	require.NoError(t, err)
	assert.Equal(t, migrationSet().Latest(), version)
}
