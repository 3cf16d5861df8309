package service

import (
	"context"
	"log/slog"

	"github.com/shelfmate/shelfmate-server/internal/domain"
	"github.com/shelfmate/shelfmate-server/internal/metrics"
	"github.com/shelfmate/shelfmate-server/internal/recommend"
)

// BookResolver resolves a free-text title to a catalog book, persisting
// external matches. CatalogService implements it.
type BookResolver interface {
	ResolveOne(ctx context.Context, title string) (*domain.CatalogBook, error)
	Persist(ctx context.Context, candidate *domain.CatalogBook) (*domain.CatalogBook, error)
}

// EnrichedRecommendation is a model suggestion with bibliographic metadata
// attached. When Enriched is false only Title and Reason are set.
type EnrichedRecommendation struct {
	Title         string   `json:"title"`
	Reason        string   `json:"reason"`
	Enriched      bool     `json:"enriched"`
	BookID        string   `json:"book_id,omitempty"`
	CoverURL      string   `json:"cover_url,omitempty"`
	ISBN10        string   `json:"isbn10,omitempty"`
	ISBN13        string   `json:"isbn13,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	PublishedYear int      `json:"published_year,omitempty"`
	Pages         int      `json:"pages,omitempty"`
	Synopsis      string   `json:"synopsis,omitempty"`
	Authors       []string `json:"authors,omitempty"`
}

// Enricher attaches catalog records to parsed candidates.
type Enricher struct {
	resolver BookResolver
	logger   *slog.Logger
}

// NewEnricher creates a new enricher.
func NewEnricher(resolver BookResolver, logger *slog.Logger) *Enricher {
	return &Enricher{
		resolver: resolver,
		logger:   logger,
	}
}

// Enrich resolves each candidate in order. The result has one entry per
// candidate; a candidate that cannot be resolved is returned degraded and
// never stops the rest.
func (e *Enricher) Enrich(ctx context.Context, candidates []recommend.Candidate) []EnrichedRecommendation {
	results := make([]EnrichedRecommendation, 0, len(candidates))
	for _, c := range candidates {
		r := e.enrichOne(ctx, c)
		metrics.RecordEnrichment(r.Enriched)
		results = append(results, r)
	}
	return results
}

func (e *Enricher) enrichOne(ctx context.Context, c recommend.Candidate) EnrichedRecommendation {
	book, err := e.resolver.ResolveOne(ctx, c.Title)
	if err != nil {
		e.logger.Debug("candidate not resolved", "title", c.Title, "error", err)
		return degraded(c)
	}

	if !book.IsPersisted() {
		book, err = e.resolver.Persist(ctx, book)
		if err != nil {
			e.logger.Warn("failed to persist catalog match", "title", c.Title, "error", err)
			return degraded(c)
		}
	}

	return EnrichedRecommendation{
		Title:         book.Title,
		Reason:        c.Reason,
		Enriched:      true,
		BookID:        book.ID,
		CoverURL:      book.CoverURL,
		ISBN10:        book.ISBN10,
		ISBN13:        book.ISBN13,
		Publisher:     book.Publisher,
		PublishedYear: book.PublishedYear,
		Pages:         book.Pages,
		Synopsis:      book.Synopsis,
		Authors:       book.Authors,
	}
}

func degraded(c recommend.Candidate) EnrichedRecommendation {
	return EnrichedRecommendation{
		Title:  c.Title,
		Reason: c.Reason,
	}
}
