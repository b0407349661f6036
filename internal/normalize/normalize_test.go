package normalize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/dupcheck/internal/types"
)

func TestField(t *testing.T) {
	tests := []struct {
		name  string
		value string
		kind  Kind
		want  string
	}{
		{"invoice prefix with dash", "INV-1001", KindInvoiceNumber, "1001"},
		{"invoice bare digits", "1001", KindInvoiceNumber, "1001"},
		{"invoice glued prefix", "inv1001", KindInvoiceNumber, "1001"},
		{"invoice word prefix", "Invoice No. 2045", KindInvoiceNumber, "2045"},
		{"invoice ref suffix", "7781 REF", KindInvoiceNumber, "7781"},
		{"invoice only noise keeps text", "INV", KindInvoiceNumber, "INV"},
		{"invoice alpha after glued prefix kept", "REFUND-9", KindInvoiceNumber, "REFUND9"},
		{"supplier pty ltd", "Acme Pty Ltd", KindSupplierName, "ACME"},
		{"supplier plain", "ACME", KindSupplierName, "ACME"},
		{"supplier parenthesised suffix", "Gamma Supplies (Pty) Ltd", KindSupplierName, "GAMMASUPPLIES"},
		{"supplier leading the", "The Widget Company", KindSupplierName, "WIDGET"},
		{"supplier only suffix kept", "Co Ltd", KindSupplierName, "COLTD"},
		{"po prefix", "PO-4410", KindPONumber, "4410"},
		{"po glued", "po4410", KindPONumber, "4410"},
		{"tax id punctuation", "41 234-567 89", KindTaxID, "4123456789"},
		{"generic", "a.b-c", KindGeneric, "ABC"},
		{"empty", "   ", KindSupplierName, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Field(tt.value, tt.kind))
		})
	}
}

func hashCandidate() *types.InvoiceCandidate {
	return &types.InvoiceCandidate{
		InvoiceNumber: "INV-1001",
		SupplierName:  "Acme Pty Ltd",
		SupplierTaxID: "41-234",
		TotalAmount:   decimal.RequireFromString("1500"),
		InvoiceDate:   time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC),
		PONumber:      "PO-1",
		LineItems: []types.LineItem{
			{Description: "  Steel Bolts ", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.RequireFromString("2.5")},
		},
	}
}

func TestContentHashIsStableAcrossEquivalentInput(t *testing.T) {
	a := hashCandidate()
	b := hashCandidate()
	b.InvoiceNumber = "1001"
	b.SupplierName = "ACME"
	b.TotalAmount = decimal.RequireFromString("1500.001")
	b.InvoiceDate = time.Date(2024, 1, 10, 2, 0, 0, 0, time.UTC)
	b.PONumber = "po1"
	b.LineItems[0].Description = "steel bolts"
	b.LineItems[0].UnitPrice = decimal.RequireFromString("2.50")

	ha, err := ContentHash(a)
	require.NoError(t, err)
	hb, err := ContentHash(b)
	require.NoError(t, err)

	assert.Len(t, ha, 64)
	assert.Equal(t, ha, hb)
}

func TestContentHashChangesWithAmount(t *testing.T) {
	a := hashCandidate()
	b := hashCandidate()
	b.TotalAmount = decimal.RequireFromString("1500.02")

	ha, err := ContentHash(a)
	require.NoError(t, err)
	hb, err := ContentHash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestDocumentFields(t *testing.T) {
	doc := Document(hashCandidate())
	assert.Equal(t, "1500.00", doc["amount"])
	assert.Equal(t, "2024-01-10", doc["invoice_date"])
	assert.Equal(t, "1001", doc["invoice_number"])
	assert.Equal(t, "ACME", doc["supplier_name"])
	assert.Equal(t, "41234", doc["tax_id"])
	assert.Equal(t, "1", doc["po_number"])

	items, ok := doc["line_items"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "steel bolts", items[0]["description"])
	assert.Equal(t, "2.50", items[0]["unit_price"])
	assert.Equal(t, "10", items[0]["quantity"])
}
