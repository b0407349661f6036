// Package deduplication decides whether a submitted invoice duplicates one
// that has been seen before.
//
// # Overview
//
// A check compares one InvoiceCandidate against the historical invoices the
// caller supplies in the CheckContext. The engine owns no storage: the caller
// chooses the comparison window, and persists whatever it wants from the
// returned Result (including its audit trail).
//
// CheckBatch checks several candidates in order. Each candidate that is not
// itself flagged joins the comparison set of the ones after it, so invoices
// submitted twice in one batch are caught.
//
// # Pipeline
//
// Every check walks the same stage machine, recording one audit entry per
// transition:
//
//	INITIALIZED -> VALIDATED -> EXACT_MATCHED -> COMPLETED
//	                         -> FUZZY_ANALYZED -> CLUSTERED -> CONTEXTUALIZED -> SCORED -> COMPLETED
//
//  1. Validation rejects candidates missing an invoice number, supplier name,
//     positive amount or date, or any field listed in Config.RequiredFields.
//  2. Exact matching compares normalized invoice numbers, normalized supplier
//     names and amounts. A hit short-circuits with an EXACT / CRITICAL result.
//  3. Fuzzy matchers score invoice numbers (Levenshtein and Jaro-Winkler),
//     supplier names (Jaro-Winkler, Soundex and Metaphone) and amounts
//     (absolute and percentage tolerance).
//  4. Cluster analyzers look for temporal clusters (same supplier inside the
//     window), supplier clusters (one tax ID, several names) and line-item
//     overlap.
//  5. The contextual analyzer turns business context (trusted supplier,
//     recurring pattern, PO mismatch, risk category, custom rules) into a
//     bounded confidence adjustment and a false-positive probability.
//  6. The aggregator weights the best evidence of each kind, classifies the
//     duplicate type and risk, and picks mitigation actions.
//
// Fuzzy and cluster analyzers are independent of each other and run
// concurrently when Config.ParallelAnalyzers is set. Evidence is collected
// into per-analyzer slots, so results do not depend on scheduling.
//
// # Error Handling
//
// Invalid input returns a *ValidationError and no result. Any failure inside
// the pipeline, including a panic in an analyzer, produces the fail-safe
// result instead of an error:
//   - IsDuplicate true, DuplicateType EXACT, RiskLevel SEVERE, confidence 1.0
//   - mitigation BLOCK_PAYMENT, IMMEDIATE_ESCALATION, SYSTEM_ADMIN_NOTIFICATION
//   - a terminal FAILED audit entry and FailSafe set
//
// A fail-safe result must never be read as "clear".
//
// # Usage
//
//	engine, err := deduplication.New(deduplication.DefaultConfig(), deduplication.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	result, err := engine.Check(candidate, &deduplication.CheckContext{
//	    HistoricalInvoices: history,
//	    SupplierCategory:   types.SupplierCategoryStandard,
//	})
//	var verr *deduplication.ValidationError
//	if errors.As(err, &verr) {
//	    return fmt.Errorf("rejecting invoice: %s %s", verr.Field, verr.Reason)
//	}
//	if result.RequiresAttention {
//	    // route to review
//	}
package deduplication
