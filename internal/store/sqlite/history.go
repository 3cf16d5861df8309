package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shelfmate/shelfmate-server/internal/domain"
	"github.com/shelfmate/shelfmate-server/internal/store"
)

// CreateReadingHistory inserts a shelf entry for a user.
// Returns store.ErrAlreadyExists if the user already shelved the book.
func (s *Store) CreateReadingHistory(ctx context.Context, e *domain.ReadingHistoryEntry) error {
	if e.Rating != nil && !domain.ValidRating(*e.Rating) {
		return store.ErrInvalidInput.WithMessage("rating must be 0-5 in half-star steps")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reading_history (id, created_at, updated_at, user_id, book_id, status, rating)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		formatTime(e.CreatedAt),
		formatTime(e.UpdatedAt),
		e.UserID,
		e.BookID,
		string(e.Status),
		nullFloat64(e.Rating),
	)
	if isUniqueViolation(err, "") {
		return store.ErrAlreadyExists.WithCause(err)
	}
	return err
}

// ListReadingHistory returns a user's shelf entries, most recently updated first,
// with each entry's book title loaded.
func (s *Store) ListReadingHistory(ctx context.Context, userID string) ([]*domain.ReadingHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT h.id, h.created_at, h.updated_at, h.book_id, h.status, h.rating, b.title
		FROM reading_history h
		JOIN books b ON b.id = h.book_id
		WHERE h.user_id = ?
		ORDER BY h.updated_at DESC, h.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query reading history: %w", err)
	}
	defer rows.Close()

	entries := []*domain.ReadingHistoryEntry{}
	for rows.Next() {
		var (
			e         = domain.ReadingHistoryEntry{UserID: userID}
			createdAt string
			updatedAt string
			status    string
			rating    sql.NullFloat64
		)
		if err := rows.Scan(&e.ID, &createdAt, &updatedAt, &e.BookID, &status, &rating, &e.Title); err != nil {
			return nil, fmt.Errorf("scan reading history: %w", err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		e.Status = domain.ReadingStatus(status)
		if rating.Valid {
			r := rating.Float64
			e.Rating = &r
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
