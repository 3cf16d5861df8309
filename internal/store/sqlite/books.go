package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shelfmate/shelfmate-server/internal/domain"
	"github.com/shelfmate/shelfmate-server/internal/normalize"
	"github.com/shelfmate/shelfmate-server/internal/store"
)

// bookColumns is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook.
const bookColumns = `id, created_at, updated_at, title, isbn10, isbn13,
	publisher, cover_url, synopsis, pages, published_year`

func scanBook(scanner rowScanner) (*domain.CatalogBook, error) {
	var (
		b             domain.CatalogBook
		createdAt     string
		updatedAt     string
		isbn10        sql.NullString
		isbn13        sql.NullString
		coverURL      sql.NullString
		synopsis      sql.NullString
		publishedYear sql.NullInt64
	)

	err := scanner.Scan(
		&b.ID,
		&createdAt,
		&updatedAt,
		&b.Title,
		&isbn10,
		&isbn13,
		&b.Publisher,
		&coverURL,
		&synopsis,
		&b.Pages,
		&publishedYear,
	)
	if err != nil {
		return nil, err
	}

	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	b.ISBN10 = isbn10.String
	b.ISBN13 = isbn13.String
	b.CoverURL = coverURL.String
	b.Synopsis = synopsis.String
	b.PublishedYear = int(publishedYear.Int64)

	return &b, nil
}

// CreateBook inserts a book and its ordered author links in one transaction.
// authors must already exist and be in credit order; b.Authors is set from them.
// Returns store.ErrAlreadyExists if the isbn13 is already catalogued.
func (s *Store) CreateBook(ctx context.Context, b *domain.CatalogBook, authors []*domain.Author) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO books (
			id, created_at, updated_at, title, title_key, isbn10, isbn13,
			publisher, cover_url, synopsis, pages, published_year
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID,
		formatTime(b.CreatedAt),
		formatTime(b.UpdatedAt),
		b.Title,
		normalize.Key(b.Title),
		nullString(b.ISBN10),
		nullString(b.ISBN13),
		b.Publisher,
		nullString(b.CoverURL),
		nullString(b.Synopsis),
		b.Pages,
		nullInt64(int64(b.PublishedYear)),
	)
	if err != nil {
		if isUniqueViolation(err, "books.isbn13") {
			return store.ErrAlreadyExists.WithCause(err)
		}
		return fmt.Errorf("insert book: %w", err)
	}

	names := make([]string, 0, len(authors))
	for i, a := range authors {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO book_authors (book_id, author_id, position)
			VALUES (?, ?, ?)
			ON CONFLICT(book_id, author_id) DO NOTHING`,
			b.ID, a.ID, i)
		if err != nil {
			return fmt.Errorf("insert book author %s: %w", a.ID, err)
		}
		names = append(names, a.Name)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	b.Authors = names
	return nil
}

// GetBook retrieves a book by ID with its authors loaded.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.CatalogBook, error) {
	return s.getBookWhere(ctx, `id = ?`, id)
}

// GetBookByISBN13 retrieves a book by exact isbn13.
// Returns store.ErrNotFound if no book carries it.
func (s *Store) GetBookByISBN13(ctx context.Context, isbn13 string) (*domain.CatalogBook, error) {
	if isbn13 == "" {
		return nil, store.ErrNotFound
	}
	return s.getBookWhere(ctx, `isbn13 = ?`, isbn13)
}

func (s *Store) getBookWhere(ctx context.Context, where string, arg any) (*domain.CatalogBook, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE `+where, arg)

	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if b.Authors, err = s.bookAuthorNames(ctx, b.ID); err != nil {
		return nil, err
	}
	return b, nil
}

// ListBooksByTitle returns books whose title matches case-insensitively,
// in catalog insertion order. Returns an empty slice when there is no match.
func (s *Store) ListBooksByTitle(ctx context.Context, title string) ([]*domain.CatalogBook, error) {
	key := normalize.Key(title)
	if key == "" {
		return []*domain.CatalogBook{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE title_key = ? ORDER BY created_at, id`, key)
	if err != nil {
		return nil, fmt.Errorf("query books by title: %w", err)
	}
	defer rows.Close()

	books := []*domain.CatalogBook{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for _, b := range books {
		if b.Authors, err = s.bookAuthorNames(ctx, b.ID); err != nil {
			return nil, err
		}
	}
	return books, nil
}

// bookAuthorNames loads author names for a book in credit order.
func (s *Store) bookAuthorNames(ctx context.Context, bookID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.name
		FROM book_authors ba
		JOIN authors a ON a.id = ba.author_id
		WHERE ba.book_id = ?
		ORDER BY ba.position`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query book authors: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
