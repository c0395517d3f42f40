package sqlite

import (
	"context"

	"github.com/julianstephens/streakd/internal/storage"
)

func (s *Store) Audit(ctx context.Context) (storage.AuditReport, error) {
	var report storage.AuditReport

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT habit_id, day FROM habit_logs GROUP BY habit_id, day HAVING COUNT(*) > 1
		) AS dup`).Scan(&report.DuplicateLogs)
	if err != nil {
		return report, err
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM habits WHERE streak < 0").Scan(&report.NegativeStreaks)
	if err != nil {
		return report, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.owner_id, t.balance,
			(SELECT COUNT(*) FROM habit_logs l WHERE l.owner_id = t.owner_id AND l.auto_completed = 0) +
			(SELECT COALESCE(SUM(a.token_reward), 0) FROM achievements a WHERE a.owner_id = t.owner_id)
		FROM tokens t ORDER BY t.owner_id`)
	if err != nil {
		return report, err
	}
	for rows.Next() {
		var m storage.LedgerMismatch
		if err := rows.Scan(&m.OwnerID, &m.Balance, &m.Expected); err != nil {
			rows.Close()
			return report, err
		}
		if m.Balance != m.Expected {
			report.LedgerMismatches = append(report.LedgerMismatches, m)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return report, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT h.id, h.total_completions,
			(SELECT COUNT(*) FROM habit_logs l WHERE l.habit_id = h.id)
		FROM habits h ORDER BY h.id`)
	if err != nil {
		return report, err
	}
	defer rows.Close()
	for rows.Next() {
		var m storage.CounterMismatch
		if err := rows.Scan(&m.HabitID, &m.Counter, &m.Logs); err != nil {
			return report, err
		}
		if m.Counter != m.Logs {
			report.CounterDrift = append(report.CounterDrift, m)
		}
	}
	return report, rows.Err()
}
