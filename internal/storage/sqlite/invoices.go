package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/steveyegge/dupcheck/internal/types"
)

func supplierKey(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// AddInvoice stores one historical invoice. An empty ID is replaced with a
// generated one, written back to inv.
func (s *SQLiteStorage) AddInvoice(ctx context.Context, inv *types.HistoricalInvoice) error {
	return s.AddInvoices(ctx, []*types.HistoricalInvoice{inv})
}

// AddInvoices stores invoices in a single transaction; either all are stored
// or none are.
func (s *SQLiteStorage) AddInvoices(ctx context.Context, invoices []*types.HistoricalInvoice) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, inv := range invoices {
		if inv == nil {
			return fmt.Errorf("invoice %d is nil", i)
		}
		if err := inv.Validate(); err != nil {
			return fmt.Errorf("invalid invoice %q: %w", inv.ID, err)
		}
		if inv.ID == "" {
			inv.ID = uuid.New().String()
		}
		if err := insertInvoice(ctx, tx, inv); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit invoices: %w", err)
	}
	return nil
}

func insertInvoice(ctx context.Context, tx *sql.Tx, inv *types.HistoricalInvoice) error {
	var exists int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM historical_invoices WHERE id = ?`, inv.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check invoice %s: %w", inv.ID, err)
	}
	if exists > 0 {
		return fmt.Errorf("invoice %s already exists", inv.ID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO historical_invoices (
			id, invoice_number, supplier_name, supplier_key, supplier_tax_id,
			total_amount, invoice_date, po_number, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		inv.ID, inv.InvoiceNumber, inv.SupplierName, supplierKey(inv.SupplierName), inv.SupplierTaxID,
		inv.TotalAmount.String(), formatTime(inv.InvoiceDate), inv.PONumber, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to insert invoice %s: %w", inv.ID, err)
	}

	for pos, item := range inv.LineItems {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO line_items (invoice_id, position, description, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)
		`, inv.ID, pos, item.Description, item.Quantity.String(), item.UnitPrice.String())
		if err != nil {
			return fmt.Errorf("failed to insert line item %d of invoice %s: %w", pos, inv.ID, err)
		}
	}
	return nil
}

// GetInvoice retrieves one historical invoice by ID.
func (s *SQLiteStorage) GetInvoice(ctx context.Context, id string) (*types.HistoricalInvoice, error) {
	invoices, err := s.queryInvoices(ctx, "id = ?", []interface{}{id}, "", nil)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, fmt.Errorf("invoice %s: %w", id, ErrNotFound)
	}
	return &invoices[0], nil
}

// ListInvoices returns the invoices matching filter in chronological order.
// When filter.Limit is set, the most recent invoices are kept.
func (s *SQLiteStorage) ListInvoices(ctx context.Context, filter types.InvoiceFilter) ([]types.HistoricalInvoice, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}

	where := []string{"1=1"}
	var args []interface{}
	if filter.SupplierName != "" {
		where = append(where, "supplier_key = ?")
		args = append(args, supplierKey(filter.SupplierName))
	}
	if !filter.Since.IsZero() {
		where = append(where, "invoice_date >= ?")
		args = append(args, formatTime(filter.Since))
	}
	if !filter.Until.IsZero() {
		where = append(where, "invoice_date <= ?")
		args = append(args, formatTime(filter.Until))
	}

	limit := ""
	var limitArgs []interface{}
	if filter.Limit > 0 {
		limit = " LIMIT ?"
		limitArgs = []interface{}{filter.Limit}
	}
	return s.queryInvoices(ctx, strings.Join(where, " AND "), args, limit, limitArgs)
}

// CountInvoices returns the number of stored historical invoices.
func (s *SQLiteStorage) CountInvoices(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM historical_invoices`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	return n, nil
}

// queryInvoices selects the newest matching invoices (bounded by limit),
// loads their line items and returns them oldest first.
func (s *SQLiteStorage) queryInvoices(ctx context.Context, where string, args []interface{}, limit string, limitArgs []interface{}) ([]types.HistoricalInvoice, error) {
	selected := `SELECT rowid FROM historical_invoices WHERE ` + where +
		` ORDER BY invoice_date DESC, rowid DESC` + limit
	selectArgs := append(append([]interface{}(nil), args...), limitArgs...)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice_number, supplier_name, supplier_tax_id, total_amount, invoice_date, po_number
		FROM historical_invoices
		WHERE rowid IN (`+selected+`)
		ORDER BY invoice_date ASC, rowid ASC
	`, selectArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []types.HistoricalInvoice
	index := make(map[string]int)
	for rows.Next() {
		var inv types.HistoricalInvoice
		var amount, date string
		if err := rows.Scan(&inv.ID, &inv.InvoiceNumber, &inv.SupplierName, &inv.SupplierTaxID, &amount, &date, &inv.PONumber); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		if inv.TotalAmount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("invoice %s has invalid amount %q: %w", inv.ID, amount, err)
		}
		if inv.InvoiceDate, err = parseTime(date); err != nil {
			return nil, fmt.Errorf("invoice %s: %w", inv.ID, err)
		}
		index[inv.ID] = len(invoices)
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoices: %w", err)
	}
	if len(invoices) == 0 {
		return invoices, nil
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT invoice_id, description, quantity, unit_price
		FROM line_items
		WHERE invoice_id IN (SELECT id FROM historical_invoices WHERE rowid IN (`+selected+`))
		ORDER BY invoice_id, position
	`, selectArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to query line items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var invoiceID, quantity, price string
		var item types.LineItem
		if err := itemRows.Scan(&invoiceID, &item.Description, &quantity, &price); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		if item.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("invoice %s has invalid line item quantity %q: %w", invoiceID, quantity, err)
		}
		if item.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("invoice %s has invalid line item price %q: %w", invoiceID, price, err)
		}
		i, ok := index[invoiceID]
		if !ok {
			continue
		}
		invoices[i].LineItems = append(invoices[i].LineItems, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating line items: %w", err)
	}

	return invoices, nil
}
