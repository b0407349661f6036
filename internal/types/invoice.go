package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is a single billed line on an invoice.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// InvoiceCandidate is a newly submitted invoice to be checked for duplicates.
// Candidates are treated as immutable once handed to the engine.
type InvoiceCandidate struct {
	InvoiceNumber string          `json:"invoice_number"`
	SupplierName  string          `json:"supplier_name"`
	SupplierTaxID string          `json:"supplier_tax_id,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	InvoiceDate   time.Time       `json:"invoice_date"`
	PONumber      string          `json:"po_number,omitempty"`
	LineItems     []LineItem      `json:"line_items,omitempty"`
}

// HistoricalInvoice is a previously seen invoice supplied by the caller as
// comparison context. The engine never mutates these.
type HistoricalInvoice struct {
	ID string `json:"id"`
	InvoiceCandidate
}

// Field names accepted in required-field sets and custom rules.
const (
	FieldInvoiceNumber = "invoice_number"
	FieldSupplierName  = "supplier_name"
	FieldSupplierTaxID = "supplier_tax_id"
	FieldTotalAmount   = "total_amount"
	FieldInvoiceDate   = "invoice_date"
	FieldPONumber      = "po_number"
	FieldLineItems     = "line_items"
)

// IsKnownField reports whether name is one of the Field* constants.
func IsKnownField(name string) bool {
	switch name {
	case FieldInvoiceNumber, FieldSupplierName, FieldSupplierTaxID, FieldTotalAmount,
		FieldInvoiceDate, FieldPONumber, FieldLineItems:
		return true
	}
	return false
}

// HasField reports whether the named field carries a usable value.
// Unknown field names are never present.
func (c *InvoiceCandidate) HasField(name string) bool {
	switch name {
	case FieldInvoiceNumber:
		return strings.TrimSpace(c.InvoiceNumber) != ""
	case FieldSupplierName:
		return strings.TrimSpace(c.SupplierName) != ""
	case FieldSupplierTaxID:
		return strings.TrimSpace(c.SupplierTaxID) != ""
	case FieldTotalAmount:
		return c.TotalAmount.IsPositive()
	case FieldInvoiceDate:
		return !c.InvoiceDate.IsZero()
	case FieldPONumber:
		return strings.TrimSpace(c.PONumber) != ""
	case FieldLineItems:
		return len(c.LineItems) > 0
	}
	return false
}

// FieldValue returns the string form of a field, used by custom rules.
func (c *InvoiceCandidate) FieldValue(name string) string {
	switch name {
	case FieldInvoiceNumber:
		return c.InvoiceNumber
	case FieldSupplierName:
		return c.SupplierName
	case FieldSupplierTaxID:
		return c.SupplierTaxID
	case FieldTotalAmount:
		return c.TotalAmount.StringFixed(2)
	case FieldInvoiceDate:
		if c.InvoiceDate.IsZero() {
			return ""
		}
		return c.InvoiceDate.UTC().Format("2006-01-02")
	case FieldPONumber:
		return c.PONumber
	}
	return ""
}

// FieldError reports a missing or invalid candidate field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Validate checks the fields every candidate must carry.
// The returned error, if any, is a *FieldError.
func (c *InvoiceCandidate) Validate() error {
	if strings.TrimSpace(c.InvoiceNumber) == "" {
		return &FieldError{Field: FieldInvoiceNumber, Reason: "is required"}
	}
	if strings.TrimSpace(c.SupplierName) == "" {
		return &FieldError{Field: FieldSupplierName, Reason: "is required"}
	}
	if !c.TotalAmount.IsPositive() {
		return &FieldError{Field: FieldTotalAmount, Reason: fmt.Sprintf("must be greater than 0 (got %s)", c.TotalAmount.String())}
	}
	if c.InvoiceDate.IsZero() {
		return &FieldError{Field: FieldInvoiceDate, Reason: "is required"}
	}
	for i, item := range c.LineItems {
		if item.Quantity.IsNegative() {
			return &FieldError{Field: fmt.Sprintf("line_items[%d].quantity", i), Reason: fmt.Sprintf("cannot be negative (got %s)", item.Quantity.String())}
		}
		if item.UnitPrice.IsNegative() {
			return &FieldError{Field: fmt.Sprintf("line_items[%d].unit_price", i), Reason: fmt.Sprintf("cannot be negative (got %s)", item.UnitPrice.String())}
		}
	}
	return nil
}

// AsHistorical wraps a candidate as a historical invoice with the given ID.
func (c *InvoiceCandidate) AsHistorical(id string) HistoricalInvoice {
	return HistoricalInvoice{ID: id, InvoiceCandidate: *c}
}
