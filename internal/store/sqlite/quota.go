package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shelfmate/shelfmate-server/internal/domain"
	"github.com/shelfmate/shelfmate-server/internal/store"
)

// GetQuotaCounter returns the counter for a user on a day (domain.DayLayout).
// Returns store.ErrNotFound if the user has made no request that day.
func (s *Store) GetQuotaCounter(ctx context.Context, userID, day string) (*domain.QuotaCounter, error) {
	q := domain.QuotaCounter{UserID: userID, Day: day}
	err := s.db.QueryRowContext(ctx, `
		SELECT count, max_per_day FROM quota_counters
		WHERE user_id = ? AND day = ?`,
		userID, day,
	).Scan(&q.Count, &q.MaxPerDay)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// IncrementQuotaCounter adds one request to the user's counter for day,
// creating it with count 1 and the given limit on the first request.
// The upsert is a single statement so concurrent requests never lose an increment.
func (s *Store) IncrementQuotaCounter(ctx context.Context, userID, day string, maxPerDay int) (*domain.QuotaCounter, error) {
	q := domain.QuotaCounter{UserID: userID, Day: day}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO quota_counters (user_id, day, count, max_per_day, updated_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(user_id, day) DO UPDATE SET
			count = count + 1,
			updated_at = excluded.updated_at
		RETURNING count, max_per_day`,
		userID, day, maxPerDay, formatTime(time.Now()),
	).Scan(&q.Count, &q.MaxPerDay)
	if err != nil {
		return nil, fmt.Errorf("upsert quota counter: %w", err)
	}
	return &q, nil
}

// DeleteQuotaCountersBefore removes counters for days strictly before day.
// Returns the number of rows removed.
func (s *Store) DeleteQuotaCountersBefore(ctx context.Context, day string) (int64, error) {
	if _, err := time.Parse(domain.DayLayout, day); err != nil {
		return 0, store.ErrInvalidInput.WithCause(err)
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM quota_counters WHERE day < ?`, day)
	if err != nil {
		return 0, fmt.Errorf("delete quota counters: %w", err)
	}
	return result.RowsAffected()
}
