package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/shelfmate/shelfmate-server/internal/domain"
	"github.com/shelfmate/shelfmate-server/internal/normalize"
)

const (
	searchPrefix = "catalog:search:"

	// DefaultSearchCacheDuration bounds how long an external search result is reused.
	DefaultSearchCacheDuration = 24 * time.Hour
)

// CachedSearch wraps external search candidates with cache info.
type CachedSearch struct {
	Query     string               `json:"query"`
	Results   []domain.CatalogBook `json:"results"`
	FetchedAt time.Time            `json:"fetched_at"`
}

// SearchCache stores external catalog search results in Badger.
// Keys are normalized queries, so "The Hobbit" and " the hobbit " share an entry.
type SearchCache struct {
	db     *badger.DB
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time
}

// OpenSearchCache opens (or creates) a search cache at path.
// An empty path opens an in-memory cache.
func OpenSearchCache(path string, ttl time.Duration, logger *slog.Logger) (*SearchCache, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil            // Disable Badger's internal logging
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultSearchCacheDuration
	}

	if logger != nil {
		logger.Info("Search cache opened", "path", path, "ttl", ttl)
	}

	return &SearchCache{
		db:     db,
		logger: logger,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Close closes the underlying database.
func (c *SearchCache) Close() error {
	return c.db.Close()
}

func searchKey(query string) []byte {
	return []byte(searchPrefix + normalize.Key(query))
}

// Get retrieves cached results for a query.
// Returns nil, nil if not found or expired.
func (c *SearchCache) Get(ctx context.Context, query string) (*CachedSearch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var cached CachedSearch
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(searchKey(query))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &cached)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached search: %w", err)
	}

	if c.now().Sub(cached.FetchedAt) > c.ttl {
		return nil, nil // Treat as cache miss
	}

	return &cached, nil
}

// Set stores results for a query. Candidates are copied without catalog IDs;
// a cached external result is never mistaken for a persisted row.
func (c *SearchCache) Set(ctx context.Context, query string, results []domain.CatalogBook) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stripped := make([]domain.CatalogBook, len(results))
	for i, r := range results {
		r.Entity = domain.Entity{}
		stripped[i] = r
	}

	data, err := json.Marshal(CachedSearch{
		Query:     query,
		Results:   stripped,
		FetchedAt: c.now(),
	})
	if err != nil {
		return fmt.Errorf("marshal cached search: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(searchKey(query), data).WithTTL(c.ttl))
	})
}

// Delete removes cached results for a query.
func (c *SearchCache) Delete(ctx context.Context, query string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return c.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(searchKey(query))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil // Idempotent
		}
		return err
	})
}
