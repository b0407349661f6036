// Package normalize canonicalizes invoice fields and computes the content hash
// used for exact-match lookup.
package normalize

import (
	"strings"
	"unicode"
)

// Kind selects the noise-token rules applied by Field.
type Kind int

const (
	// KindGeneric only strips non-alphanumerics and upper-cases.
	KindGeneric Kind = iota
	// KindInvoiceNumber also drops INV/INVOICE/REF style prefixes and suffixes.
	KindInvoiceNumber
	// KindSupplierName also drops business-entity suffixes (LTD, PTY, INC, ...).
	KindSupplierName
	// KindPONumber also drops PO/PURCHASE ORDER prefixes.
	KindPONumber
	// KindTaxID is treated like KindGeneric.
	KindTaxID
)

var invoiceNoise = map[string]bool{
	"INV": true, "INVOICE": true, "REF": true, "REFERENCE": true,
	"NO": true, "NUM": true, "NUMBER": true, "TAX": true,
}

// gluedInvoicePrefixes are stripped when they run straight into the digits, e.g. INV1001.
var gluedInvoicePrefixes = []string{"INVOICE", "INV", "REF"}

var supplierSuffixes = map[string]bool{
	"LTD": true, "LIMITED": true, "PTY": true, "PROPRIETARY": true, "INC": true,
	"INCORPORATED": true, "LLC": true, "LLP": true, "CORP": true, "CORPORATION": true,
	"CO": true, "COMPANY": true, "PLC": true, "GMBH": true, "AG": true, "SA": true,
	"BV": true, "NV": true, "SRL": true, "CC": true,
}

var poNoise = map[string]bool{
	"PO": true, "PURCHASE": true, "ORDER": true, "NO": true, "NUM": true, "NUMBER": true,
}

// Field canonicalizes value according to kind. The result contains only
// upper-case letters and digits. When stripping noise tokens would leave
// nothing, the unstripped compact form is returned instead.
func Field(value string, kind Kind) string {
	tokens := tokenize(value)
	if len(tokens) == 0 {
		return ""
	}

	var kept []string
	switch kind {
	case KindInvoiceNumber:
		kept = trimTokens(tokens, invoiceNoise, invoiceNoise)
		joined := strings.Join(kept, "")
		for _, prefix := range gluedInvoicePrefixes {
			rest := strings.TrimPrefix(joined, prefix)
			if rest != joined && rest != "" && isDigit(rest[0]) {
				joined = rest
				break
			}
		}
		if joined == "" {
			return strings.Join(tokens, "")
		}
		return joined
	case KindSupplierName:
		kept = trimTokens(tokens, map[string]bool{"THE": true}, supplierSuffixes)
	case KindPONumber:
		kept = trimTokens(tokens, poNoise, nil)
		joined := strings.Join(kept, "")
		if rest := strings.TrimPrefix(joined, "PO"); rest != joined && rest != "" && isDigit(rest[0]) {
			joined = rest
		}
		if joined == "" {
			return strings.Join(tokens, "")
		}
		return joined
	default:
		kept = tokens
	}

	if len(kept) == 0 {
		return strings.Join(tokens, "")
	}
	return strings.Join(kept, "")
}

// InvoiceNumber is shorthand for Field(value, KindInvoiceNumber).
func InvoiceNumber(value string) string { return Field(value, KindInvoiceNumber) }

// SupplierName is shorthand for Field(value, KindSupplierName).
func SupplierName(value string) string { return Field(value, KindSupplierName) }

// PONumber is shorthand for Field(value, KindPONumber).
func PONumber(value string) string { return Field(value, KindPONumber) }

// TaxID is shorthand for Field(value, KindTaxID).
func TaxID(value string) string { return Field(value, KindTaxID) }

// tokenize splits value into upper-cased alphanumeric runs.
func tokenize(value string) []string {
	return strings.FieldsFunc(strings.ToUpper(value), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// trimTokens drops leading tokens found in lead and trailing tokens found in
// trail, repeatedly, until a non-noise token is reached on each side.
func trimTokens(tokens []string, lead, trail map[string]bool) []string {
	start, end := 0, len(tokens)
	for start < end && lead[tokens[start]] {
		start++
	}
	for end > start && trail[tokens[end-1]] {
		end--
	}
	return tokens[start:end]
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
