package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shelfmate/shelfmate-server/internal/domain"
	"github.com/shelfmate/shelfmate-server/internal/store"
)

const authorColumns = `id, created_at, updated_at, name`

func scanAuthor(scanner rowScanner) (*domain.Author, error) {
	var (
		a         domain.Author
		createdAt string
		updatedAt string
	)
	if err := scanner.Scan(&a.ID, &createdAt, &updatedAt, &a.Name); err != nil {
		return nil, err
	}

	var err error
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAuthor inserts a new author.
// Returns store.ErrAlreadyExists if an author with the same name exists.
func (s *Store) CreateAuthor(ctx context.Context, a *domain.Author) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO authors (id, created_at, updated_at, name)
		VALUES (?, ?, ?, ?)`,
		a.ID,
		formatTime(a.CreatedAt),
		formatTime(a.UpdatedAt),
		a.Name,
	)
	if isUniqueViolation(err, "") {
		return store.ErrAlreadyExists.WithCause(err)
	}
	return err
}

// GetAuthorByName retrieves an author by exact, case-sensitive name.
// Returns store.ErrNotFound if the author does not exist.
func (s *Store) GetAuthorByName(ctx context.Context, name string) (*domain.Author, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+authorColumns+` FROM authors WHERE name = ?`, name)

	a, err := scanAuthor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}
