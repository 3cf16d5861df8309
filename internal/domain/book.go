package domain

import "github.com/shelfmate/shelfmate-server/internal/normalize"

const (
	// MaxSynopsisLength is the longest synopsis, in characters, the catalog stores.
	MaxSynopsisLength = 5000

	// DefaultPublisher replaces a missing publisher at persistence time.
	DefaultPublisher = "Unknown Publisher"
)

// CatalogBook is a bibliographic record in the local catalog.
// A candidate returned by an external search has an empty ID until persisted.
// Identity is immutable once stored.
type CatalogBook struct {
	Entity
	Title         string   `json:"title"`
	ISBN10        string   `json:"isbn10,omitempty"`
	ISBN13        string   `json:"isbn13,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	CoverURL      string   `json:"cover_url,omitempty"`
	Synopsis      string   `json:"synopsis,omitempty"`
	Pages         int      `json:"pages"`
	PublishedYear int      `json:"published_year,omitempty"`
	Authors       []string `json:"authors"` // Ordered; index 0 is the primary author
}

// IsPersisted reports whether the book has been stored in the local catalog.
func (b *CatalogBook) IsPersisted() bool {
	return b.ID != ""
}

// FirstAuthor returns the primary author name, or "" when none is known.
func (b *CatalogBook) FirstAuthor() string {
	if len(b.Authors) == 0 {
		return ""
	}
	return b.Authors[0]
}

// TitleKey returns the normalized title used for matching.
func (b *CatalogBook) TitleKey() string {
	return normalize.Key(b.Title)
}

// Author is a person credited on catalog books. Names are unique and matched exactly.
type Author struct {
	Entity
	Name string `json:"name"`
}
