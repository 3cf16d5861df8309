package providers

import (
	"fmt"
	"os"

	"github.com/samber/do/v2"

	"github.com/shelfmate/shelfmate-server/internal/config"
	"github.com/shelfmate/shelfmate-server/internal/logger"
	"github.com/shelfmate/shelfmate-server/internal/store"
	"github.com/shelfmate/shelfmate-server/internal/store/sqlite"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the SQLite store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := os.MkdirAll(cfg.Data.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dbPath := cfg.Data.DatabasePath()
	db, err := sqlite.Open(dbPath, log.Component("store"))
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}

// SearchCacheHandle wraps the badger search cache with shutdown capability.
type SearchCacheHandle struct {
	*store.SearchCache
}

// Shutdown implements do.Shutdownable.
func (h *SearchCacheHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchCache provides the cache of external search results.
func ProvideSearchCache(i do.Injector) (*SearchCacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	path := cfg.Data.SearchCachePath()
	cache, err := store.OpenSearchCache(path, cfg.GoogleBooks.CacheTTL, log.Component("search_cache"))
	if err != nil {
		return nil, err
	}

	log.Info("Search cache initialized", "path", path, "ttl", cfg.GoogleBooks.CacheTTL)

	return &SearchCacheHandle{SearchCache: cache}, nil
}
