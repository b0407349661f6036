package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/steveyegge/dupcheck/internal/types"
)

// dateLayouts are accepted for invoice_date, tried in order.
var dateLayouts = []string{"2006-01-02", time.RFC3339, time.RFC3339Nano}

// invoiceRecord is the JSON shape read from input files. It differs from
// types.InvoiceCandidate only in accepting plain dates.
type invoiceRecord struct {
	ID            string           `json:"id,omitempty"`
	InvoiceNumber string           `json:"invoice_number"`
	SupplierName  string           `json:"supplier_name"`
	SupplierTaxID string           `json:"supplier_tax_id,omitempty"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	InvoiceDate   string           `json:"invoice_date"`
	PONumber      string           `json:"po_number,omitempty"`
	LineItems     []types.LineItem `json:"line_items,omitempty"`
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invoice_date %q is not YYYY-MM-DD or RFC 3339", s)
}

func (r invoiceRecord) candidate() (*types.InvoiceCandidate, error) {
	date, err := parseDate(r.InvoiceDate)
	if err != nil {
		return nil, err
	}
	return &types.InvoiceCandidate{
		InvoiceNumber: r.InvoiceNumber,
		SupplierName:  r.SupplierName,
		SupplierTaxID: r.SupplierTaxID,
		TotalAmount:   r.TotalAmount,
		InvoiceDate:   date,
		PONumber:      r.PONumber,
		LineItems:     r.LineItems,
	}, nil
}

// decodeRecords accepts a single JSON object or an array of objects.
func decodeRecords(data []byte) ([]invoiceRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("input is empty")
	}

	dec := func(v interface{}) error {
		d := json.NewDecoder(bytes.NewReader(trimmed))
		d.DisallowUnknownFields()
		return d.Decode(v)
	}

	if trimmed[0] == '[' {
		var records []invoiceRecord
		if err := dec(&records); err != nil {
			return nil, fmt.Errorf("failed to parse invoice array: %w", err)
		}
		return records, nil
	}
	var record invoiceRecord
	if err := dec(&record); err != nil {
		return nil, fmt.Errorf("failed to parse invoice: %w", err)
	}
	return []invoiceRecord{record}, nil
}

// readCandidates reads path and converts every record to a candidate.
// Record-level problems name the record index.
func readCandidates(path string) ([]*types.InvoiceCandidate, error) {
	records, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	out := make([]*types.InvoiceCandidate, len(records))
	for i, r := range records {
		c, err := r.candidate()
		if err != nil {
			return nil, fmt.Errorf("%s: record %d: %w", path, i, err)
		}
		out[i] = c
	}
	return out, nil
}

// readHistorical reads path as historical invoices. Records without an ID
// get one when stored.
func readHistorical(path string) ([]*types.HistoricalInvoice, error) {
	records, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	out := make([]*types.HistoricalInvoice, len(records))
	for i, r := range records {
		c, err := r.candidate()
		if err != nil {
			return nil, fmt.Errorf("%s: record %d: %w", path, i, err)
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%s: record %d: %w", path, i, err)
		}
		h := c.AsHistorical(r.ID)
		out[i] = &h
	}
	return out, nil
}

func readRecords(path string) ([]invoiceRecord, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = readAllStdin()
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	records, err := decodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

func readAllStdin() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(os.Stdin); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
