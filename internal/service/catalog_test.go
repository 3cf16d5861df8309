package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfmate/shelfmate-server/internal/domain"
	domainerrors "github.com/shelfmate/shelfmate-server/internal/errors"
	"github.com/shelfmate/shelfmate-server/internal/metadata/googlebooks"
	"github.com/shelfmate/shelfmate-server/internal/store"
	"github.com/shelfmate/shelfmate-server/internal/store/sqlite"
)

func setupTestCatalog(t *testing.T) (*CatalogService, *sqlite.Store, *fakeSearcher) {
	t.Helper()
	s := newTestStore(t)
	searcher := newFakeSearcher()
	return NewCatalogService(s, searcher, nil, testLogger()), s, searcher
}

func TestIsDuplicate(t *testing.T) {
	tests := []struct {
		name string
		a, b *domain.CatalogBook
		want bool
	}{
		{
			name: "equal isbn13",
			a:    candidate("Dune", "9780441013593", "Frank Herbert"),
			b:    candidate("Dune (Deluxe Edition)", "9780441013593"),
			want: true,
		},
		{
			name: "different isbn13 with same title and author",
			a:    candidate("Dune", "9780441013593", "Frank Herbert"),
			b:    candidate("Dune", "9780593099322", "Frank Herbert"),
			want: false,
		},
		{
			name: "no isbn13, same title and author after normalization",
			a:    candidate("Dune", "", "Frank Herbert"),
			b:    candidate("  DUNE ", "", "frank herbert "),
			want: true,
		},
		{
			name: "one isbn13 missing, same title and author",
			a:    candidate("Dune", "9780441013593", "Frank Herbert"),
			b:    candidate("dune", "", "Frank Herbert"),
			want: true,
		},
		{
			name: "same title, different author",
			a:    candidate("Beloved", "", "Toni Morrison"),
			b:    candidate("Beloved", "", "Lara Adrian"),
			want: false,
		},
		{
			name: "both without authors",
			a:    candidate("Beowulf", ""),
			b:    candidate("beowulf", ""),
			want: true,
		},
		{
			name: "only one without authors",
			a:    candidate("Beowulf", ""),
			b:    candidate("Beowulf", "", "Seamus Heaney"),
			want: false,
		},
		{
			name: "first author decides",
			a:    candidate("Good Omens", "", "Terry Pratchett", "Neil Gaiman"),
			b:    candidate("Good Omens", "", "Neil Gaiman", "Terry Pratchett"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDuplicate(tt.a, tt.b))
			assert.Equal(t, tt.want, IsDuplicate(tt.b, tt.a), "predicate must be symmetric")
		})
	}
}

func TestSanitize(t *testing.T) {
	t.Run("long synopsis is truncated to the limit", func(t *testing.T) {
		got := Sanitize(domain.CatalogBook{Title: "Dune", Synopsis: synopsisOf(5100)})
		assert.Equal(t, domain.MaxSynopsisLength, utf8.RuneCountInString(got.Synopsis))
		assert.Equal(t, "...", got.Synopsis[len(got.Synopsis)-3:])
	})

	t.Run("synopsis at the limit is kept", func(t *testing.T) {
		got := Sanitize(domain.CatalogBook{Title: "Dune", Synopsis: synopsisOf(5000)})
		assert.Equal(t, synopsisOf(5000), got.Synopsis)
	})

	t.Run("blank and null values", func(t *testing.T) {
		got := Sanitize(domain.CatalogBook{
			Title:     " Dune ",
			CoverURL:  "null",
			Synopsis:  "   ",
			Publisher: "NULL",
			ISBN13:    "null",
			Pages:     0,
			Authors:   []string{" Frank Herbert ", "", "null"},
		})
		assert.Equal(t, "Dune", got.Title)
		assert.Empty(t, got.CoverURL)
		assert.Empty(t, got.Synopsis)
		assert.Empty(t, got.ISBN13)
		assert.Equal(t, domain.DefaultPublisher, got.Publisher)
		assert.Equal(t, 1, got.Pages)
		assert.Equal(t, []string{"Frank Herbert"}, got.Authors)
	})

	t.Run("synopsis is trimmed", func(t *testing.T) {
		got := Sanitize(domain.CatalogBook{Title: "Dune", Synopsis: "\n  Spice.  \n", Pages: -4})
		assert.Equal(t, "Spice.", got.Synopsis)
		assert.Equal(t, 1, got.Pages)
	})

	t.Run("input is not modified", func(t *testing.T) {
		in := domain.CatalogBook{Title: "Dune", Authors: []string{" Frank Herbert"}}
		_ = Sanitize(in)
		assert.Equal(t, " Frank Herbert", in.Authors[0])
	})
}

func TestCatalogService_PersistDeduplicatesByISBN(t *testing.T) {
	svc, _, _ := setupTestCatalog(t)
	ctx := context.Background()

	first, err := svc.Persist(ctx, candidate("Dune", "9780441013593", "Frank Herbert"))
	require.NoError(t, err)
	require.True(t, first.IsPersisted())

	second, err := svc.Persist(ctx, candidate("Dune: 40th Anniversary", "9780441013593", "Someone Else"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Dune", second.Title, "existing row is returned unchanged")
}

func TestCatalogService_PersistDeduplicatesByTitleAndAuthor(t *testing.T) {
	svc, s, _ := setupTestCatalog(t)
	ctx := context.Background()

	first, err := svc.Persist(ctx, candidate("The Name of the Wind", "", "Patrick Rothfuss"))
	require.NoError(t, err)

	second, err := svc.Persist(ctx, candidate("the name of the wind ", "", "patrick rothfuss"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// Same title, different author is a different book.
	other, err := svc.Persist(ctx, candidate("The Name of the Wind", "", "Another Writer"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	books, err := s.ListBooksByTitle(ctx, "The Name of the Wind")
	require.NoError(t, err)
	assert.Len(t, books, 2)
}

func TestCatalogService_PersistKeepsDistinctISBNs(t *testing.T) {
	svc, _, _ := setupTestCatalog(t)
	ctx := context.Background()

	hardcover, err := svc.Persist(ctx, candidate("Dune", "9780441013593", "Frank Herbert"))
	require.NoError(t, err)
	paperback, err := svc.Persist(ctx, candidate("Dune", "9780593099322", "Frank Herbert"))
	require.NoError(t, err)

	assert.NotEqual(t, hardcover.ID, paperback.ID)
}

func TestCatalogService_PersistSanitizesAndLinksAuthors(t *testing.T) {
	svc, s, _ := setupTestCatalog(t)
	ctx := context.Background()

	c := candidate("Good Omens", "", "Terry Pratchett", "Neil Gaiman")
	c.Synopsis = synopsisOf(5100)
	c.CoverURL = "null"

	book, err := svc.Persist(ctx, c)
	require.NoError(t, err)

	stored, err := s.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Terry Pratchett", "Neil Gaiman"}, stored.Authors)
	assert.Len(t, stored.Synopsis, domain.MaxSynopsisLength)
	assert.Empty(t, stored.CoverURL)
	assert.Equal(t, domain.DefaultPublisher, stored.Publisher)
	assert.Equal(t, 1, stored.Pages)

	// Authors are reused by exact name.
	_, err = svc.Persist(ctx, candidate("Small Gods", "", "Terry Pratchett"))
	require.NoError(t, err)
	author, err := s.GetAuthorByName(ctx, "Terry Pratchett")
	require.NoError(t, err)
	assert.Equal(t, "Terry Pratchett", author.Name)

	// Names are case-sensitive, so a different casing is a new author.
	_, err = svc.Persist(ctx, candidate("Mort", "", "terry pratchett"))
	require.NoError(t, err)
	lower, err := s.GetAuthorByName(ctx, "terry pratchett")
	require.NoError(t, err)
	assert.NotEqual(t, author.ID, lower.ID)
}

func TestCatalogService_PersistRejectsBlankTitle(t *testing.T) {
	svc, _, _ := setupTestCatalog(t)

	_, err := svc.Persist(context.Background(), candidate("  ", ""))
	assert.True(t, errors.Is(err, domainerrors.ErrValidation))
}

func TestCatalogService_PersistConcurrent(t *testing.T) {
	svc, s, _ := setupTestCatalog(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		isbn13 string
	}{
		{"with isbn13", "9780547928227"},
		{"without isbn13", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title := "The Hobbit " + tt.name

			var (
				wg  sync.WaitGroup
				mu  sync.Mutex
				ids = make(map[string]bool)
			)
			for range 8 {
				wg.Go(func() {
					book, err := svc.Persist(ctx, candidate(title, tt.isbn13, "J.R.R. Tolkien"))
					if !assert.NoError(t, err) {
						return
					}
					mu.Lock()
					ids[book.ID] = true
					mu.Unlock()
				})
			}
			wg.Wait()

			assert.Len(t, ids, 1, "every caller should get the same book")
			books, err := s.ListBooksByTitle(ctx, title)
			require.NoError(t, err)
			assert.Len(t, books, 1)
		})
	}
}

// racingStore reports a miss for the isbn13 lookup once, as if another
// writer inserted the row between the lookup and the insert.
type racingStore struct {
	store.CatalogStore
	missed bool
}

func (r *racingStore) GetBookByISBN13(ctx context.Context, isbn13 string) (*domain.CatalogBook, error) {
	if !r.missed {
		r.missed = true
		return nil, store.ErrNotFound
	}
	return r.CatalogStore.GetBookByISBN13(ctx, isbn13)
}

func TestCatalogService_PersistRetriesAsLookupOnConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	winner := NewCatalogService(s, newFakeSearcher(), nil, testLogger())
	existing, err := winner.Persist(ctx, candidate("Dune", "9780441013593", "Frank Herbert"))
	require.NoError(t, err)

	// Different title so the title check cannot find it; only the isbn13
	// constraint can.
	loser := NewCatalogService(&racingStore{CatalogStore: s}, newFakeSearcher(), nil, testLogger())
	got, err := loser.Persist(ctx, candidate("Dune (Ace)", "9780441013593", "Frank Herbert"))
	require.NoError(t, err)
	assert.Equal(t, existing.ID, got.ID)
}

func TestCatalogService_HybridSearch(t *testing.T) {
	svc, _, searcher := setupTestCatalog(t)
	ctx := context.Background()

	local, err := svc.Persist(ctx, candidate("Dune", "9780441013593", "Frank Herbert"))
	require.NoError(t, err)

	searcher.add(googlebooks.Volume{Title: "Dune", ISBN13: "9780441013593", Authors: []string{"Frank Herbert"}})
	searcher.add(googlebooks.Volume{Title: "DUNE", Authors: []string{"frank herbert"}})
	searcher.add(googlebooks.Volume{Title: "Dune", Authors: []string{"Brian Herbert"}, Publisher: "Tor"})
	searcher.add(googlebooks.Volume{Title: "Dune", Authors: []string{"Brian Herbert"}})

	results, err := svc.HybridSearch(ctx, "dune")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, local.ID, results[0].ID, "local matches come first")
	assert.False(t, results[1].IsPersisted())
	assert.Equal(t, []string{"Brian Herbert"}, results[1].Authors)
	assert.Equal(t, "Tor", results[1].Publisher, "the first external representative is kept")
}

func TestCatalogService_HybridSearchExternalFailure(t *testing.T) {
	svc, _, searcher := setupTestCatalog(t)
	ctx := context.Background()

	_, err := svc.Persist(ctx, candidate("Dune", "", "Frank Herbert"))
	require.NoError(t, err)

	searcher.fail("Dune", googlebooks.ErrServer)
	searcher.fail("Emma", googlebooks.ErrServer)

	results, err := svc.HybridSearch(ctx, "Dune")
	require.NoError(t, err, "local matches survive an external outage")
	assert.Len(t, results, 1)

	_, err = svc.HybridSearch(ctx, "Emma")
	assert.True(t, errors.Is(err, domainerrors.ErrUpstreamUnavailable))
	assert.True(t, errors.Is(err, googlebooks.ErrServer))
}

func TestCatalogService_ResolveOne(t *testing.T) {
	svc, _, searcher := setupTestCatalog(t)
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		_, err := svc.ResolveOne(ctx, "A Book Nobody Wrote")
		assert.True(t, errors.Is(err, domainerrors.ErrNotFound))
	})

	t.Run("local match wins without an external call", func(t *testing.T) {
		local, err := svc.Persist(ctx, candidate("Emma", "", "Jane Austen"))
		require.NoError(t, err)
		searcher.add(googlebooks.Volume{Title: "Emma", Authors: []string{"Jane Austen"}})

		before := searcher.callCount()
		got, err := svc.ResolveOne(ctx, "EMMA")
		require.NoError(t, err)
		assert.Equal(t, local.ID, got.ID)
		assert.Equal(t, before, searcher.callCount())
	})

	t.Run("external match is returned unsaved", func(t *testing.T) {
		searcher.add(googlebooks.Volume{
			Title:         "Persuasion",
			ISBN13:        "9780141439686",
			Authors:       []string{"Jane Austen"},
			Thumbnail:     "https://books.example/persuasion.jpg",
			PageCount:     249,
			PublishedYear: 1817,
		})

		got, err := svc.ResolveOne(ctx, "Persuasion")
		require.NoError(t, err)
		assert.False(t, got.IsPersisted())
		assert.Equal(t, "9780141439686", got.ISBN13)
		assert.Equal(t, "https://books.example/persuasion.jpg", got.CoverURL)
		assert.Equal(t, 249, got.Pages)
		assert.Equal(t, 1817, got.PublishedYear)
	})
}

func TestCatalogService_SearchExternalUsesCache(t *testing.T) {
	s := newTestStore(t)
	searcher := newFakeSearcher()
	cache, err := store.OpenSearchCache("", time.Hour, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	svc := NewCatalogService(s, searcher, cache, testLogger())
	ctx := context.Background()

	searcher.add(googlebooks.Volume{Title: "Hyperion", ISBN13: "9780553283686", Authors: []string{"Dan Simmons"}})
	searcher.volumes["hyperion"] = append(searcher.volumes["hyperion"], googlebooks.Volume{Title: "   "})

	first, err := svc.SearchExternal(ctx, "Hyperion")
	require.NoError(t, err)
	require.Len(t, first, 1, "volumes without a title are skipped")

	second, err := svc.SearchExternal(ctx, " hyperion")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "9780553283686", second[0].ISBN13)
	assert.Equal(t, 1, searcher.callCount(), "second search should be served from cache")
}
