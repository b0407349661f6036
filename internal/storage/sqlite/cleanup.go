package sqlite

import (
	"context"
	"fmt"
	"time"
)

// ResultCounts holds stored-result statistics for monitoring
type ResultCounts struct {
	TotalResults       int
	Duplicates         int
	FailSafe           int
	ByRiskLevel        map[string]int
	AuditEntries       int
	HistoricalInvoices int
}

// CleanupResultsByAge deletes check results (and their audit entries) that
// completed before the retention cutoff. Clear results expire after
// retentionDays; flagged results (duplicates and fail-safe results) after
// flaggedRetentionDays. Batch entries whose results are gone expire with the
// clear results. Deletions run batchSize results per transaction.
func (s *SQLiteStorage) CleanupResultsByAge(ctx context.Context, now time.Time, retentionDays, flaggedRetentionDays, batchSize int) (int, error) {
	if retentionDays < 0 || flaggedRetentionDays < 0 {
		return 0, fmt.Errorf("retention days cannot be negative")
	}
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}

	totalDeleted := 0

	clearCutoff := formatTime(now.AddDate(0, 0, -retentionDays))
	deleted, err := s.deleteResultsBatched(ctx, "is_duplicate = 0 AND fail_safe = 0", clearCutoff, batchSize)
	totalDeleted += deleted
	if err != nil {
		return totalDeleted, fmt.Errorf("failed to delete old clear results: %w", err)
	}

	flaggedCutoff := formatTime(now.AddDate(0, 0, -flaggedRetentionDays))
	deleted, err = s.deleteResultsBatched(ctx, "(is_duplicate = 1 OR fail_safe = 1)", flaggedCutoff, batchSize)
	totalDeleted += deleted
	if err != nil {
		return totalDeleted, fmt.Errorf("failed to delete old flagged results: %w", err)
	}

	// Batch entries have no check_results row of their own
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM audit_entries
		WHERE timestamp < ?
		  AND check_id NOT IN (SELECT check_id FROM check_results)
	`, clearCutoff); err != nil {
		return totalDeleted, fmt.Errorf("failed to delete orphaned audit entries: %w", err)
	}

	return totalDeleted, nil
}

// deleteResultsBatched deletes results matching cond that completed before
// cutoff, batchSize at a time, returning the number of results deleted.
func (s *SQLiteStorage) deleteResultsBatched(ctx context.Context, cond, cutoff string, batchSize int) (int, error) {
	totalDeleted := 0
	for {
		select {
		case <-ctx.Done():
			return totalDeleted, ctx.Err()
		default:
		}

		deleted, err := s.deleteResultsOnce(ctx, cond, cutoff, batchSize)
		totalDeleted += deleted
		if err != nil {
			return totalDeleted, err
		}
		if deleted < batchSize {
			return totalDeleted, nil
		}
	}
}

func (s *SQLiteStorage) deleteResultsOnce(ctx context.Context, cond, cutoff string, batchSize int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Both statements see the same oldest batch; the order is total
	expired := `SELECT check_id FROM check_results
		WHERE ` + cond + ` AND completed_at < ?
		ORDER BY completed_at ASC, check_id ASC
		LIMIT ?`

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM audit_entries WHERE check_id IN (`+expired+`)`, cutoff, batchSize); err != nil {
		return 0, fmt.Errorf("failed to delete audit entries: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM check_results WHERE check_id IN (`+expired+`)`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to delete results: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cleanup: %w", err)
	}
	return int(deleted), nil
}

// GetResultCounts returns stored-result statistics.
func (s *SQLiteStorage) GetResultCounts(ctx context.Context) (*ResultCounts, error) {
	counts := &ResultCounts{ByRiskLevel: make(map[string]int)}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(is_duplicate), 0), COALESCE(SUM(fail_safe), 0)
		FROM check_results
	`).Scan(&counts.TotalResults, &counts.Duplicates, &counts.FailSafe)
	if err != nil {
		return nil, fmt.Errorf("failed to count results: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT risk_level, COUNT(*) FROM check_results GROUP BY risk_level`)
	if err != nil {
		return nil, fmt.Errorf("failed to count results by risk level: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, fmt.Errorf("failed to scan risk level count: %w", err)
		}
		counts.ByRiskLevel[level] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating risk level counts: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_entries`).Scan(&counts.AuditEntries); err != nil {
		return nil, fmt.Errorf("failed to count audit entries: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM historical_invoices`).Scan(&counts.HistoricalInvoices); err != nil {
		return nil, fmt.Errorf("failed to count invoices: %w", err)
	}
	return counts, nil
}

// VacuumDatabase reclaims space freed by cleanup. It locks the database
// while it runs.
func (s *SQLiteStorage) VacuumDatabase(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}
