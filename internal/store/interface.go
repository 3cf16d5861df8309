package store

import (
	"context"
	"time"

	"github.com/shelfmate/shelfmate-server/internal/domain"
)

// CatalogStore persists books and authors.
type CatalogStore interface {
	CreateAuthor(ctx context.Context, a *domain.Author) error
	GetAuthorByName(ctx context.Context, name string) (*domain.Author, error)

	CreateBook(ctx context.Context, b *domain.CatalogBook, authors []*domain.Author) error
	GetBook(ctx context.Context, id string) (*domain.CatalogBook, error)
	GetBookByISBN13(ctx context.Context, isbn13 string) (*domain.CatalogBook, error)
	ListBooksByTitle(ctx context.Context, title string) ([]*domain.CatalogBook, error)
}

// QuotaStore persists per-user daily request counters.
type QuotaStore interface {
	GetQuotaCounter(ctx context.Context, userID, day string) (*domain.QuotaCounter, error)
	IncrementQuotaCounter(ctx context.Context, userID, day string, maxPerDay int) (*domain.QuotaCounter, error)
	DeleteQuotaCountersBefore(ctx context.Context, day string) (int64, error)
}

// ReaderStore exposes the reader state recommendation generation reads.
type ReaderStore interface {
	GetSurveyState(ctx context.Context, userID string) (*domain.SurveyState, error)
	SaveSurveyState(ctx context.Context, st *domain.SurveyState) error

	CreateReadingHistory(ctx context.Context, e *domain.ReadingHistoryEntry) error
	ListReadingHistory(ctx context.Context, userID string) ([]*domain.ReadingHistoryEntry, error)
}

// RecommendationStore persists generated recommendations and their lifecycle.
type RecommendationStore interface {
	CreateRecommendations(ctx context.Context, recs []*domain.Recommendation) error
	GetRecommendation(ctx context.Context, id string) (*domain.Recommendation, error)
	ListRecommendations(ctx context.Context, userID string, status domain.RecommendationStatus) ([]*domain.Recommendation, error)
	UpdateRecommendationStatus(ctx context.Context, r *domain.Recommendation) error
	ListRejectedTitlesSince(ctx context.Context, userID string, since time.Time) ([]string, error)
}

// Store defines the interface for all persistence operations.
type Store interface {
	Close() error
	Ping() error

	CatalogStore
	QuotaStore
	ReaderStore
	RecommendationStore
}
