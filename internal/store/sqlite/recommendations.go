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

const recommendationColumns = `id, created_at, updated_at, user_id, book_id, batch_id,
	title, reason, status, responded_at`

func scanRecommendation(scanner rowScanner) (*domain.Recommendation, error) {
	var (
		r           domain.Recommendation
		createdAt   string
		updatedAt   string
		bookID      sql.NullString
		status      string
		respondedAt sql.NullString
	)

	err := scanner.Scan(
		&r.ID,
		&createdAt,
		&updatedAt,
		&r.UserID,
		&bookID,
		&r.BatchID,
		&r.Title,
		&r.Reason,
		&status,
		&respondedAt,
	)
	if err != nil {
		return nil, err
	}

	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if r.RespondedAt, err = parseNullableTime(respondedAt); err != nil {
		return nil, err
	}
	r.BookID = bookID.String
	r.Status = domain.RecommendationStatus(status)

	return &r, nil
}

// CreateRecommendations inserts a batch of recommendations atomically.
// Slice order is kept as the display order within the batch.
func (s *Store) CreateRecommendations(ctx context.Context, recs []*domain.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recommendations (`+recommendationColumns+`, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range recs {
		_, err := stmt.ExecContext(ctx,
			r.ID,
			formatTime(r.CreatedAt),
			formatTime(r.UpdatedAt),
			r.UserID,
			nullString(r.BookID),
			r.BatchID,
			r.Title,
			r.Reason,
			string(r.Status),
			nullTimeString(r.RespondedAt),
			i,
		)
		if err != nil {
			return fmt.Errorf("insert recommendation %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// GetRecommendation retrieves a recommendation by ID.
// Returns store.ErrNotFound if it does not exist.
func (s *Store) GetRecommendation(ctx context.Context, id string) (*domain.Recommendation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recommendationColumns+` FROM recommendations WHERE id = ?`, id)

	r, err := scanRecommendation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListRecommendations returns a user's recommendations, newest first.
// An empty status lists every status.
func (s *Store) ListRecommendations(ctx context.Context, userID string, status domain.RecommendationStatus) ([]*domain.Recommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM recommendations WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, batch_id, position`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer rows.Close()

	recs := []*domain.Recommendation{}
	for rows.Next() {
		r, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// UpdateRecommendationStatus applies a status transition that was validated
// on r. The write only lands while the row is still pending; otherwise it
// returns store.ErrPreconditionFailed.
func (s *Store) UpdateRecommendationStatus(ctx context.Context, r *domain.Recommendation) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE recommendations
		SET status = ?, responded_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(r.Status),
		nullTimeString(r.RespondedAt),
		formatTime(r.UpdatedAt),
		r.ID,
		string(domain.RecommendationPending),
	)
	if err != nil {
		return fmt.Errorf("update recommendation: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrPreconditionFailed
	}
	return nil
}

// ListRejectedTitlesSince returns the distinct titles a user rejected at or
// after since, most recent first.
func (s *Store) ListRejectedTitlesSince(ctx context.Context, userID string, since time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT title FROM recommendations
		WHERE user_id = ? AND status = ? AND responded_at >= ?
		GROUP BY title
		ORDER BY MAX(responded_at) DESC`,
		userID, string(domain.RecommendationRejected), formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("query rejected titles: %w", err)
	}
	defer rows.Close()

	titles := []string{}
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, err
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}
