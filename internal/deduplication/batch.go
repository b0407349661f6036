package deduplication

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/steveyegge/dupcheck/internal/events"
	"github.com/steveyegge/dupcheck/internal/types"
)

// batchIDPrefix marks earlier batch members in the comparison set.
const batchIDPrefix = "batch:"

// BatchInvoiceID returns the historical ID given to the member at index of
// the batch batchID, e.g. "batch:<batch id>:3".
func BatchInvoiceID(batchID string, index int) string {
	return batchIDPrefix + batchID + ":" + strconv.Itoa(index)
}

// BatchResult is the outcome of checking several candidates together.
type BatchResult struct {
	// BatchID identifies the batch in its events
	BatchID string `json:"batch_id"`

	// Results holds one result per candidate, nil where the candidate was invalid
	Results []*Result `json:"results"`

	// DuplicatePairs maps duplicate candidate indices to the historical
	// invoice ID they most likely duplicate
	DuplicatePairs map[int]string `json:"duplicate_pairs"`

	// WithinBatchDuplicates maps duplicate candidate indices to the index of
	// the earlier batch member they duplicate
	WithinBatchDuplicates map[int]int `json:"within_batch_duplicates,omitempty"`

	// Invalid maps rejected candidate indices to the validation failure
	Invalid map[int]string `json:"invalid,omitempty"`

	Stats BatchStats `json:"stats"`

	// Events are the batch_started and batch_completed entries
	Events []events.AuditEntry `json:"events"`
}

// BatchStats provides metrics about a batch check
type BatchStats struct {
	// TotalCandidates is the number of candidates submitted
	TotalCandidates int `json:"total_candidates"`

	// UniqueCount is the number of candidates not flagged as duplicates
	UniqueCount int `json:"unique_count"`

	// DuplicateCount is the number of duplicates of historical invoices
	DuplicateCount int `json:"duplicate_count"`

	// WithinBatchDuplicateCount is the number of duplicates of earlier batch members
	WithinBatchDuplicateCount int `json:"within_batch_duplicate_count"`

	// InvalidCount is the number of candidates rejected by validation
	InvalidCount int `json:"invalid_count"`

	// FailSafeCount is the number of candidates whose check failed
	FailSafeCount int `json:"fail_safe_count"`

	// ComparisonsMade is the total size of the comparison sets checked against
	ComparisonsMade int `json:"comparisons_made"`

	// ProcessingTimeMs is the time taken for the batch in milliseconds
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// CheckBatch implements Detector. Candidates are checked in order; each valid
// candidate joins the comparison set of the ones after it unless it was
// itself flagged. A fail-safe candidate is counted only in FailSafeCount.
func (e *Engine) CheckBatch(candidates []*types.InvoiceCandidate, cctx *CheckContext) (*BatchResult, error) {
	startTime := e.now()
	if cctx == nil {
		cctx = &CheckContext{}
	}

	result := &BatchResult{
		BatchID:               uuid.New().String(),
		Results:               make([]*Result, len(candidates)),
		DuplicatePairs:        make(map[int]string),
		WithinBatchDuplicates: make(map[int]int),
		Invalid:               make(map[int]string),
	}

	started, err := events.NewBatchStartedEvent(
		fmt.Sprintf("checking %d candidates", len(candidates)),
		events.BatchStartedData{
			BatchID:         result.BatchID,
			CandidateCount:  len(candidates),
			HistoricalCount: len(cctx.HistoricalInvoices),
		})
	if err != nil {
		return nil, fmt.Errorf("failed to record batch start: %w", err)
	}
	result.Events = append(result.Events, *started)

	history := make([]types.HistoricalInvoice, len(cctx.HistoricalInvoices), len(cctx.HistoricalInvoices)+len(candidates))
	copy(history, cctx.HistoricalInvoices)
	// only IDs appended here count as batch members
	members := make(map[string]int)

	for i, candidate := range candidates {
		if candidate == nil {
			result.Invalid[i] = ErrNilCandidate.Error()
			continue
		}

		sub := *cctx
		sub.HistoricalInvoices = history
		res, err := e.Check(candidate, &sub)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				result.Invalid[i] = verr.Error()
				continue
			}
			return nil, fmt.Errorf("checking candidate %d: %w", i, err)
		}
		result.Results[i] = res
		result.Stats.ComparisonsMade += len(history)

		switch {
		case res.FailSafe:
			result.Stats.FailSafeCount++
		case !res.IsDuplicate:
			id := BatchInvoiceID(result.BatchID, i)
			members[id] = i
			history = append(history, candidate.AsHistorical(id))
		default:
			target := ""
			if len(res.PotentialDuplicates) > 0 {
				target = res.PotentialDuplicates[0].HistoricalID
			}
			if j, ok := members[target]; ok {
				result.WithinBatchDuplicates[i] = j
			} else {
				result.DuplicatePairs[i] = target
			}
		}
	}

	result.Stats.TotalCandidates = len(candidates)
	result.Stats.DuplicateCount = len(result.DuplicatePairs)
	result.Stats.WithinBatchDuplicateCount = len(result.WithinBatchDuplicates)
	result.Stats.InvalidCount = len(result.Invalid)
	result.Stats.UniqueCount = result.Stats.TotalCandidates - result.Stats.DuplicateCount -
		result.Stats.WithinBatchDuplicateCount - result.Stats.InvalidCount - result.Stats.FailSafeCount
	result.Stats.ProcessingTimeMs = time.Since(startTime).Milliseconds()

	completed, err := events.NewBatchCompletedEvent(
		fmt.Sprintf("%d unique, %d duplicates, %d within batch", result.Stats.UniqueCount,
			result.Stats.DuplicateCount, result.Stats.WithinBatchDuplicateCount),
		events.BatchCompletedData{
			BatchID:          result.BatchID,
			CandidateCount:   len(candidates),
			DuplicateCount:   result.Stats.DuplicateCount,
			WithinBatchCount: result.Stats.WithinBatchDuplicateCount,
			FailSafeCount:    result.Stats.FailSafeCount,
			ProcessingTimeMs: result.Stats.ProcessingTimeMs,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to record batch completion: %w", err)
	}
	result.Events = append(result.Events, *completed)

	e.logger.Info("batch check completed",
		zap.String("batch_id", result.BatchID),
		zap.Int("candidates", result.Stats.TotalCandidates),
		zap.Int("unique", result.Stats.UniqueCount),
		zap.Int("duplicates", result.Stats.DuplicateCount),
		zap.Int("within_batch", result.Stats.WithinBatchDuplicateCount),
		zap.Int("invalid", result.Stats.InvalidCount),
		zap.Int("fail_safe", result.Stats.FailSafeCount))
	return result, nil
}

// Validate checks if the batch result has valid values
func (r *BatchResult) Validate() error {
	if r.Stats.TotalCandidates != len(r.Results) {
		return fmt.Errorf("stats.total_candidates (%d) does not match results length (%d)",
			r.Stats.TotalCandidates, len(r.Results))
	}
	if r.Stats.DuplicateCount != len(r.DuplicatePairs) {
		return fmt.Errorf("stats.duplicate_count (%d) does not match duplicate_pairs length (%d)",
			r.Stats.DuplicateCount, len(r.DuplicatePairs))
	}
	if r.Stats.WithinBatchDuplicateCount != len(r.WithinBatchDuplicates) {
		return fmt.Errorf("stats.within_batch_duplicate_count (%d) does not match within_batch_duplicates length (%d)",
			r.Stats.WithinBatchDuplicateCount, len(r.WithinBatchDuplicates))
	}
	if r.Stats.InvalidCount != len(r.Invalid) {
		return fmt.Errorf("stats.invalid_count (%d) does not match invalid length (%d)",
			r.Stats.InvalidCount, len(r.Invalid))
	}

	sum := r.Stats.UniqueCount + r.Stats.DuplicateCount + r.Stats.WithinBatchDuplicateCount +
		r.Stats.InvalidCount + r.Stats.FailSafeCount
	if sum != r.Stats.TotalCandidates {
		return fmt.Errorf("candidate counts (%d) do not add up to total_candidates (%d)",
			sum, r.Stats.TotalCandidates)
	}

	for dupIdx, origIdx := range r.WithinBatchDuplicates {
		if dupIdx < 0 || dupIdx >= r.Stats.TotalCandidates {
			return fmt.Errorf("within_batch_duplicates has invalid duplicate index %d", dupIdx)
		}
		if origIdx < 0 || origIdx >= dupIdx {
			return fmt.Errorf("within_batch_duplicates[%d] must point to an earlier candidate (got %d)", dupIdx, origIdx)
		}
		if _, inPairs := r.DuplicatePairs[dupIdx]; inPairs {
			return fmt.Errorf("candidate %d is in both duplicate_pairs and within_batch_duplicates", dupIdx)
		}
	}
	for idx := range r.DuplicatePairs {
		if idx < 0 || idx >= r.Stats.TotalCandidates {
			return fmt.Errorf("duplicate_pairs has invalid index %d", idx)
		}
	}
	for idx := range r.Invalid {
		if idx < 0 || idx >= r.Stats.TotalCandidates {
			return fmt.Errorf("invalid has out-of-range index %d", idx)
		}
		if r.Results[idx] != nil {
			return fmt.Errorf("invalid candidate %d has a result", idx)
		}
	}

	for i, res := range r.Results {
		if res == nil {
			if _, ok := r.Invalid[i]; !ok {
				return fmt.Errorf("candidate %d has no result and is not marked invalid", i)
			}
			continue
		}
		if err := res.Validate(); err != nil {
			return fmt.Errorf("result %d: %w", i, err)
		}
	}

	if r.Stats.ComparisonsMade < 0 {
		return fmt.Errorf("stats.comparisons_made cannot be negative (got %d)", r.Stats.ComparisonsMade)
	}
	if r.Stats.ProcessingTimeMs < 0 {
		return fmt.Errorf("stats.processing_time_ms cannot be negative (got %d)", r.Stats.ProcessingTimeMs)
	}
	return nil
}
