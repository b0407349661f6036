package types

import (
	"fmt"
	"time"
)

// InvoiceFilter narrows a history query. Zero values mean "no constraint".
type InvoiceFilter struct {
	// SupplierName matches case-insensitively on the trimmed name
	SupplierName string
	// Since and Until bound InvoiceDate, both inclusive
	Since time.Time
	Until time.Time
	// Limit caps the number of invoices returned (0 = no limit)
	Limit int
}

// Validate checks if the filter has valid values
func (f InvoiceFilter) Validate() error {
	if f.Limit < 0 {
		return fmt.Errorf("limit cannot be negative (got %d)", f.Limit)
	}
	if !f.Since.IsZero() && !f.Until.IsZero() && f.Until.Before(f.Since) {
		return fmt.Errorf("until (%s) cannot be before since (%s)",
			f.Until.Format("2006-01-02"), f.Since.Format("2006-01-02"))
	}
	return nil
}

// WindowAround returns a filter covering days on either side of date.
func WindowAround(date time.Time, days int) InvoiceFilter {
	span := time.Duration(days) * 24 * time.Hour
	return InvoiceFilter{Since: date.Add(-span), Until: date.Add(span)}
}
