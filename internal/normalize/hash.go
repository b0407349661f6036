package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/steveyegge/dupcheck/internal/types"
)

// Document returns the canonical, order-independent projection of a candidate
// that ContentHash serializes. encoding/json writes map keys in sorted order,
// so the serialized form does not depend on field order in the input.
func Document(c *types.InvoiceCandidate) map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(c.LineItems))
	for _, item := range c.LineItems {
		items = append(items, map[string]interface{}{
			"description": strings.ToLower(strings.TrimSpace(item.Description)),
			"quantity":    item.Quantity.Round(4).String(),
			"unit_price":  item.UnitPrice.StringFixed(2),
		})
	}

	date := ""
	if !c.InvoiceDate.IsZero() {
		date = c.InvoiceDate.UTC().Format("2006-01-02")
	}

	return map[string]interface{}{
		"amount":         Amount(c.TotalAmount),
		"invoice_date":   date,
		"invoice_number": InvoiceNumber(c.InvoiceNumber),
		"line_items":     items,
		"po_number":      PONumber(c.PONumber),
		"supplier_name":  SupplierName(c.SupplierName),
		"tax_id":         TaxID(c.SupplierTaxID),
	}
}

// ContentHash returns the hex SHA-256 of the candidate's canonical document.
func ContentHash(c *types.InvoiceCandidate) (string, error) {
	data, err := json.Marshal(Document(c))
	if err != nil {
		return "", fmt.Errorf("marshalling content document: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Amount renders an amount rounded to two decimal places.
func Amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
