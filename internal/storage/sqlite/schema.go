package sqlite

import "github.com/steveyegge/dupcheck/internal/storage/migrations"

// Timestamps are stored as fixed-width UTC text so that string comparison
// orders them chronologically. Amounts are stored as decimal strings.
const schema = `
-- Historical invoices (comparison context for checks)
CREATE TABLE IF NOT EXISTS historical_invoices (
    id TEXT PRIMARY KEY,
    invoice_number TEXT NOT NULL,
    supplier_name TEXT NOT NULL,
    supplier_key TEXT NOT NULL,
    supplier_tax_id TEXT NOT NULL DEFAULT '',
    total_amount TEXT NOT NULL,
    invoice_date TEXT NOT NULL,
    po_number TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_historical_invoices_date ON historical_invoices(invoice_date);
CREATE INDEX IF NOT EXISTS idx_historical_invoices_supplier ON historical_invoices(supplier_key);

-- Line items, ordered by position within their invoice
CREATE TABLE IF NOT EXISTS line_items (
    invoice_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    quantity TEXT NOT NULL,
    unit_price TEXT NOT NULL,
    PRIMARY KEY (invoice_id, position),
    FOREIGN KEY (invoice_id) REFERENCES historical_invoices(id) ON DELETE CASCADE
);

-- Check results: summary columns for querying plus the full JSON document
CREATE TABLE IF NOT EXISTS check_results (
    check_id TEXT PRIMARY KEY,
    content_hash TEXT NOT NULL,
    is_duplicate INTEGER NOT NULL,
    duplicate_type TEXT NOT NULL,
    confidence REAL NOT NULL CHECK(confidence >= 0 AND confidence <= 1),
    risk_level TEXT NOT NULL,
    investigation_priority TEXT NOT NULL,
    fail_safe INTEGER NOT NULL DEFAULT 0,
    started_at TEXT NOT NULL,
    completed_at TEXT NOT NULL,
    document TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_check_results_completed ON check_results(completed_at);

-- Audit entries for checks and batches
CREATE TABLE IF NOT EXISTS audit_entries (
    id TEXT PRIMARY KEY,
    check_id TEXT NOT NULL,
    sequence INTEGER NOT NULL,
    type TEXT NOT NULL,
    stage TEXT NOT NULL DEFAULT '',
    timestamp TEXT NOT NULL,
    severity TEXT NOT NULL,
    message TEXT NOT NULL,
    data TEXT,
    UNIQUE (check_id, sequence)
);
`

// migrationSet lists every schema version. Version 1 is the base schema;
// later versions only add to it.
func migrationSet() *migrations.Manager {
	return migrations.NewManager(
		migrations.Migration{
			Version:     1,
			Description: "Base schema",
			Up:          schema,
			Down: `
				DROP TABLE IF EXISTS audit_entries;
				DROP TABLE IF EXISTS check_results;
				DROP TABLE IF EXISTS line_items;
				DROP TABLE IF EXISTS historical_invoices;
			`,
		},
		migrations.Migration{
			Version:     2,
			Description: "Index check results by content hash",
			Up:          `CREATE INDEX IF NOT EXISTS idx_check_results_hash ON check_results(content_hash)`,
			Down:        `DROP INDEX IF EXISTS idx_check_results_hash`,
		},
	)
}
