// Package storage defines where duplicate checks get their history from and
// where their results go.
package storage

import (
	"context"
	"path/filepath"
	"time"

	"github.com/steveyegge/dupcheck/internal/deduplication"
	"github.com/steveyegge/dupcheck/internal/events"
	"github.com/steveyegge/dupcheck/internal/storage/sqlite"
	"github.com/steveyegge/dupcheck/internal/types"
)

// HistorySource supplies historical invoices to compare candidates against.
type HistorySource interface {
	ListInvoices(ctx context.Context, filter types.InvoiceFilter) ([]types.HistoricalInvoice, error)
}

// ResultSink persists check results and their audit trails.
type ResultSink interface {
	SaveResult(ctx context.Context, result *deduplication.Result) error
	SaveBatch(ctx context.Context, batch *deduplication.BatchResult) error
}

// Storage is the full store used by the CLI.
type Storage interface {
	HistorySource
	ResultSink

	// Invoices
	AddInvoice(ctx context.Context, inv *types.HistoricalInvoice) error
	AddInvoices(ctx context.Context, invoices []*types.HistoricalInvoice) error
	GetInvoice(ctx context.Context, id string) (*types.HistoricalInvoice, error)
	CountInvoices(ctx context.Context) (int, error)

	// Results and audit
	GetResult(ctx context.Context, checkID string) (*deduplication.Result, error)
	ListResults(ctx context.Context, filter sqlite.ResultFilter) ([]sqlite.ResultSummary, error)
	GetAuditTrail(ctx context.Context, checkID string) ([]events.AuditEntry, error)

	// Retention
	CleanupResultsByAge(ctx context.Context, now time.Time, retentionDays, flaggedRetentionDays, batchSize int) (int, error)
	GetResultCounts(ctx context.Context) (*sqlite.ResultCounts, error)
	VacuumDatabase(ctx context.Context) error

	Close() error
}

var _ Storage = (*sqlite.SQLiteStorage)(nil)

// Config holds storage configuration
type Config struct {
	// Path is the SQLite database file, or sqlite.MemoryPath
	Path string
}

// DefaultConfig returns default storage configuration
func DefaultConfig() *Config {
	return &Config{Path: filepath.Join(DirName, DatabaseName)}
}

// NewStorage opens the store described by cfg.
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	path := cfg.Path
	if path == "" {
		path = DefaultConfig().Path
	}
	return sqlite.NewContext(ctx, path)
}
