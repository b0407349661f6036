package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/steveyegge/dupcheck/internal/deduplication"
	"github.com/steveyegge/dupcheck/internal/events"
)

// ResultSummary is one row of the check_results table, without the full document.
type ResultSummary struct {
	CheckID               string
	ContentHash           string
	IsDuplicate           bool
	DuplicateType         string
	Confidence            float64
	RiskLevel             string
	InvestigationPriority string
	FailSafe              bool
	CompletedAt           string
}

// ResultFilter narrows ListResults.
type ResultFilter struct {
	// DuplicatesOnly keeps results flagged as duplicates (fail-safe results included)
	DuplicatesOnly bool
	// ContentHash keeps results for one candidate content
	ContentHash string
	// Limit caps the number of results (0 = no limit)
	Limit int
}

// SaveResult stores a check result together with its audit trail. The
// result must satisfy its own invariants.
func (s *SQLiteStorage) SaveResult(ctx context.Context, result *deduplication.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertResult(ctx, tx, result); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit result: %w", err)
	}
	return nil
}

// SaveBatch stores every result of a batch plus the batch's own entries.
// Invalid candidates have no result and are skipped.
func (s *SQLiteStorage) SaveBatch(ctx context.Context, batch *deduplication.BatchResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, result := range batch.Results {
		if result == nil {
			continue
		}
		if err := insertResult(ctx, tx, result); err != nil {
			return err
		}
	}
	if err := insertAuditEntries(ctx, tx, batch.Events); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch %s: %w", batch.BatchID, err)
	}
	return nil
}

func insertResult(ctx context.Context, tx *sql.Tx, result *deduplication.Result) error {
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}
	if err := result.Validate(); err != nil {
		return fmt.Errorf("refusing to store invalid result %s: %w", result.CheckID, err)
	}

	// The trail lives in audit_entries; the document holds everything else
	doc := *result
	doc.AuditTrail = nil
	document, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal result %s: %w", result.CheckID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO check_results (
			check_id, content_hash, is_duplicate, duplicate_type, confidence, risk_level,
			investigation_priority, fail_safe, started_at, completed_at, document
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.CheckID, result.ContentHash, boolToInt(result.IsDuplicate), string(result.DuplicateType),
		result.Confidence, string(result.RiskLevel), string(result.InvestigationPriority),
		boolToInt(result.FailSafe), formatTime(result.Timing.StartedAt), formatTime(result.Timing.CompletedAt),
		string(document),
	)
	if err != nil {
		return fmt.Errorf("failed to insert result %s: %w", result.CheckID, err)
	}

	return insertAuditEntries(ctx, tx, result.AuditTrail)
}

func insertAuditEntries(ctx context.Context, tx *sql.Tx, entries []events.AuditEntry) error {
	for _, entry := range entries {
		var data sql.NullString
		if entry.Data != nil {
			b, err := json.Marshal(entry.Data)
			if err != nil {
				return fmt.Errorf("failed to marshal data of entry %s: %w", entry.ID, err)
			}
			data = sql.NullString{String: string(b), Valid: true}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO audit_entries (id, check_id, sequence, type, stage, timestamp, severity, message, data)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			entry.ID, entry.CheckID, entry.Sequence, string(entry.Type), string(entry.Stage),
			formatTime(entry.Timestamp), string(entry.Severity), entry.Message, data,
		)
		if err != nil {
			return fmt.Errorf("failed to insert audit entry %d of %s: %w", entry.Sequence, entry.CheckID, err)
		}
	}
	return nil
}

// GetResult retrieves a stored result with its audit trail.
func (s *SQLiteStorage) GetResult(ctx context.Context, checkID string) (*deduplication.Result, error) {
	var document string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM check_results WHERE check_id = ?`, checkID).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("result %s: %w", checkID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result %s: %w", checkID, err)
	}

	var result deduplication.Result
	if err := json.Unmarshal([]byte(document), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result %s: %w", checkID, err)
	}

	trail, err := s.GetAuditTrail(ctx, checkID)
	if err != nil {
		return nil, err
	}
	result.AuditTrail = trail
	return &result, nil
}

// GetAuditTrail returns the entries recorded for a check or batch ID, in
// sequence order.
func (s *SQLiteStorage) GetAuditTrail(ctx context.Context, checkID string) ([]events.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, check_id, sequence, type, stage, timestamp, severity, message, data
		FROM audit_entries
		WHERE check_id = ?
		ORDER BY sequence ASC
	`, checkID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer rows.Close()

	var entries []events.AuditEntry
	for rows.Next() {
		var entry events.AuditEntry
		var entryType, stage, timestamp, severity string
		var data sql.NullString
		if err := rows.Scan(&entry.ID, &entry.CheckID, &entry.Sequence, &entryType, &stage,
			&timestamp, &severity, &entry.Message, &data); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.Type = events.EventType(entryType)
		entry.Stage = events.Stage(stage)
		entry.Severity = events.EventSeverity(severity)
		if entry.Timestamp, err = parseTime(timestamp); err != nil {
			return nil, fmt.Errorf("audit entry %s: %w", entry.ID, err)
		}
		if data.Valid {
			if err := json.Unmarshal([]byte(data.String), &entry.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal data of entry %s: %w", entry.ID, err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}
	return entries, nil
}

// ListResults returns result summaries, most recently completed first.
func (s *SQLiteStorage) ListResults(ctx context.Context, filter ResultFilter) ([]ResultSummary, error) {
	query := `
		SELECT check_id, content_hash, is_duplicate, duplicate_type, confidence, risk_level,
			investigation_priority, fail_safe, completed_at
		FROM check_results
		WHERE 1=1
	`
	var args []interface{}
	if filter.DuplicatesOnly {
		query += " AND is_duplicate = 1"
	}
	if filter.ContentHash != "" {
		query += " AND content_hash = ?"
		args = append(args, filter.ContentHash)
	}
	query += " ORDER BY completed_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var summaries []ResultSummary
	for rows.Next() {
		var r ResultSummary
		var isDuplicate, failSafe int
		if err := rows.Scan(&r.CheckID, &r.ContentHash, &isDuplicate, &r.DuplicateType, &r.Confidence,
			&r.RiskLevel, &r.InvestigationPriority, &failSafe, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.IsDuplicate = isDuplicate == 1
		r.FailSafe = failSafe == 1
		summaries = append(summaries, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}
	return summaries, nil
}
