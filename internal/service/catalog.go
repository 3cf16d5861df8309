package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/shelfmate/shelfmate-server/internal/domain"
	domainerrors "github.com/shelfmate/shelfmate-server/internal/errors"
	"github.com/shelfmate/shelfmate-server/internal/id"
	"github.com/shelfmate/shelfmate-server/internal/metadata/googlebooks"
	"github.com/shelfmate/shelfmate-server/internal/metrics"
	"github.com/shelfmate/shelfmate-server/internal/normalize"
	"github.com/shelfmate/shelfmate-server/internal/store"
)

// BookSearcher queries an external bibliographic source by title.
type BookSearcher interface {
	SearchByTitle(ctx context.Context, title string) ([]googlebooks.Volume, error)
}

// SearchCache stores external search candidates per query.
type SearchCache interface {
	Get(ctx context.Context, query string) (*store.CachedSearch, error)
	Set(ctx context.Context, query string, results []domain.CatalogBook) error
}

// CatalogService matches free-text titles against the local catalog and the
// external search, and persists new books without creating duplicates.
type CatalogService struct {
	store    store.CatalogStore
	searcher BookSearcher
	cache    SearchCache // Optional
	logger   *slog.Logger

	// insertMu serializes the lookup-then-insert of new books in this process.
	// Across processes only the isbn13 constraint protects inserts.
	insertMu sync.Mutex
}

// NewCatalogService creates a new catalog service. cache may be nil.
func NewCatalogService(store store.CatalogStore, searcher BookSearcher, cache SearchCache, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		store:    store,
		searcher: searcher,
		cache:    cache,
		logger:   logger,
	}
}

// SearchLocal returns catalog books whose title matches case-insensitively,
// oldest first.
func (s *CatalogService) SearchLocal(ctx context.Context, title string) ([]*domain.CatalogBook, error) {
	if normalize.IsBlank(title) {
		return nil, nil
	}
	books, err := s.store.ListBooksByTitle(ctx, title)
	if err != nil {
		return nil, domainerrors.Storage(err, "failed to search catalog")
	}
	return books, nil
}

// SearchExternal returns unsaved candidates from the external search.
// Results are cached per normalized query.
func (s *CatalogService) SearchExternal(ctx context.Context, title string) ([]*domain.CatalogBook, error) {
	if normalize.IsBlank(title) {
		return nil, nil
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, title)
		if err != nil {
			s.logger.Warn("search cache lookup failed", "title", title, "error", err)
		}
		metrics.RecordSearchCache(cached != nil)
		if cached != nil {
			return toPointers(cached.Results), nil
		}
	}

	volumes, err := s.searcher.SearchByTitle(ctx, title)
	metrics.RecordExternalSearch(err)
	if err != nil {
		return nil, domainerrors.UpstreamUnavailable(err, "external catalog search failed")
	}

	results := make([]domain.CatalogBook, 0, len(volumes))
	for i := range volumes {
		if normalize.IsBlank(volumes[i].Title) {
			continue
		}
		results = append(results, candidateFromVolume(&volumes[i]))
	}

	if s.cache != nil {
		// Don't fail the search if caching fails.
		if err := s.cache.Set(ctx, title, results); err != nil {
			s.logger.Warn("failed to cache search results", "title", title, "error", err)
		}
	}

	return toPointers(results), nil
}

// HybridSearch returns local matches first, then external candidates not
// already represented among them. If the external search fails and local
// matches exist, the local matches are returned alone.
func (s *CatalogService) HybridSearch(ctx context.Context, title string) ([]*domain.CatalogBook, error) {
	local, err := s.SearchLocal(ctx, title)
	if err != nil {
		return nil, err
	}

	external, err := s.SearchExternal(ctx, title)
	if err != nil {
		if len(local) > 0 {
			s.logger.Warn("external search failed, using local matches",
				"title", title,
				"local_matches", len(local),
				"error", err,
			)
			return local, nil
		}
		return nil, err
	}

	results := append(make([]*domain.CatalogBook, 0, len(local)+len(external)), local...)
	for _, candidate := range external {
		if !containsDuplicate(results, candidate) {
			results = append(results, candidate)
		}
	}
	return results, nil
}

// ResolveOne returns the first local match for title, else the first external
// match. Returns a NotFound error when neither search has results.
func (s *CatalogService) ResolveOne(ctx context.Context, title string) (*domain.CatalogBook, error) {
	local, err := s.SearchLocal(ctx, title)
	if err != nil {
		return nil, err
	}
	if len(local) > 0 {
		return local[0], nil
	}

	external, err := s.SearchExternal(ctx, title)
	if err != nil {
		return nil, err
	}
	if len(external) > 0 {
		return external[0], nil
	}

	return nil, domainerrors.NotFoundf("no catalog match for %q", title)
}

// Persist stores a candidate and returns the catalog book it resolves to.
// An existing book is returned unchanged when one matches by isbn13, or by
// title and first author when isbn13 cannot decide.
func (s *CatalogService) Persist(ctx context.Context, candidate *domain.CatalogBook) (*domain.CatalogBook, error) {
	if candidate.IsPersisted() {
		return candidate, nil
	}

	book := Sanitize(*candidate)
	if book.Title == "" {
		return nil, domainerrors.Validation("book title is required")
	}

	authors, err := s.resolveAuthors(ctx, book.Authors)
	if err != nil {
		return nil, err
	}

	if book.ISBN13 != "" {
		existing, err := s.bookByISBN13(ctx, book.ISBN13)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	s.insertMu.Lock()
	defer s.insertMu.Unlock()

	existing, err := s.findDuplicate(ctx, &book)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	bookID, err := id.Generate(id.PrefixBook)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to generate book id")
	}
	book.ID = bookID
	book.InitTimestamps()

	err = s.store.CreateBook(ctx, &book, authors)
	if errors.Is(err, store.ErrAlreadyExists) {
		// Another writer stored the same isbn13 first.
		existing, lookupErr := s.bookByISBN13(ctx, book.ISBN13)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if existing != nil {
			s.logger.Debug("book insert collapsed to existing row", "isbn13", book.ISBN13, "book_id", existing.ID)
			return existing, nil
		}
		return nil, domainerrors.Storage(err, "failed to store book")
	}
	if err != nil {
		return nil, domainerrors.Storage(err, "failed to store book")
	}

	s.logger.Info("book added to catalog",
		"book_id", book.ID,
		"title", book.Title,
		"isbn13", book.ISBN13,
	)
	return &book, nil
}

func (s *CatalogService) bookByISBN13(ctx context.Context, isbn13 string) (*domain.CatalogBook, error) {
	if isbn13 == "" {
		return nil, nil
	}
	book, err := s.store.GetBookByISBN13(ctx, isbn13)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domainerrors.Storage(err, "failed to look up isbn13")
	}
	return book, nil
}

// findDuplicate returns the first stored book with the same title that is a
// duplicate of b.
func (s *CatalogService) findDuplicate(ctx context.Context, b *domain.CatalogBook) (*domain.CatalogBook, error) {
	rows, err := s.store.ListBooksByTitle(ctx, b.Title)
	if err != nil {
		return nil, domainerrors.Storage(err, "failed to search catalog")
	}
	for _, row := range rows {
		if IsDuplicate(row, b) {
			return row, nil
		}
	}
	return nil, nil
}

// resolveAuthors finds or creates each named author, in credit order.
// Names match exactly; a repeated name is linked once.
func (s *CatalogService) resolveAuthors(ctx context.Context, names []string) ([]*domain.Author, error) {
	authors := make([]*domain.Author, 0, len(names))
	seen := make(map[string]bool, len(names))

	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		author, err := s.findOrCreateAuthor(ctx, name)
		if err != nil {
			return nil, err
		}
		authors = append(authors, author)
	}
	return authors, nil
}

func (s *CatalogService) findOrCreateAuthor(ctx context.Context, name string) (*domain.Author, error) {
	author, err := s.store.GetAuthorByName(ctx, name)
	if err == nil {
		return author, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.Storage(err, "failed to look up author")
	}

	authorID, err := id.Generate(id.PrefixAuthor)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to generate author id")
	}
	author = &domain.Author{Entity: domain.Entity{ID: authorID}, Name: name}
	author.InitTimestamps()

	err = s.store.CreateAuthor(ctx, author)
	if errors.Is(err, store.ErrAlreadyExists) {
		// Lost the race; the winner's row is the author.
		author, err = s.store.GetAuthorByName(ctx, name)
	}
	if err != nil {
		return nil, domainerrors.Storage(err, "failed to store author")
	}
	return author, nil
}

// IsDuplicate reports whether two candidates describe the same book.
// Two non-empty isbn13 values decide alone. Otherwise the normalized title and
// normalized first author must both match; a missing author list compares as
// an empty first author.
func IsDuplicate(a, b *domain.CatalogBook) bool {
	if a.ISBN13 != "" && b.ISBN13 != "" {
		return a.ISBN13 == b.ISBN13
	}
	return a.TitleKey() == b.TitleKey() &&
		normalize.FirstAuthorKey(a.Authors) == normalize.FirstAuthorKey(b.Authors)
}

func containsDuplicate(books []*domain.CatalogBook, candidate *domain.CatalogBook) bool {
	for _, b := range books {
		if IsDuplicate(b, candidate) {
			return true
		}
	}
	return false
}

// Sanitize returns a copy of b cleaned for storage:
// cover URL and synopsis cleared when blank or "null", synopsis trimmed and
// truncated to domain.MaxSynopsisLength, publisher defaulted, pages at least 1.
func Sanitize(b domain.CatalogBook) domain.CatalogBook {
	b.Title = strings.TrimSpace(b.Title)
	b.ISBN10 = clearBlank(b.ISBN10)
	b.ISBN13 = clearBlank(b.ISBN13)

	b.CoverURL = clearBlank(b.CoverURL)

	b.Synopsis = clearBlank(b.Synopsis)
	if b.Synopsis != "" {
		b.Synopsis = normalize.Truncate(b.Synopsis, domain.MaxSynopsisLength)
	}

	if normalize.IsBlank(b.Publisher) {
		b.Publisher = domain.DefaultPublisher
	}
	if b.Pages <= 0 {
		b.Pages = 1
	}

	authors := make([]string, 0, len(b.Authors))
	for _, name := range b.Authors {
		if !normalize.IsBlank(name) {
			authors = append(authors, strings.TrimSpace(name))
		}
	}
	b.Authors = authors

	return b
}

// clearBlank trims s and returns "" when it carries no value.
func clearBlank(s string) string {
	if normalize.IsBlank(s) {
		return ""
	}
	return strings.TrimSpace(s)
}

func candidateFromVolume(v *googlebooks.Volume) domain.CatalogBook {
	return domain.CatalogBook{
		Title:         strings.TrimSpace(v.Title),
		ISBN10:        v.ISBN10,
		ISBN13:        v.ISBN13,
		Publisher:     v.Publisher,
		CoverURL:      v.Thumbnail,
		Synopsis:      v.Description,
		Pages:         v.PageCount,
		PublishedYear: v.PublishedYear,
		Authors:       v.Authors,
	}
}

func toPointers(books []domain.CatalogBook) []*domain.CatalogBook {
	out := make([]*domain.CatalogBook, len(books))
	for i := range books {
		out[i] = &books[i]
	}
	return out
}
