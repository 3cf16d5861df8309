// Package di provides dependency injection configuration for the Shelfmate server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/shelfmate/shelfmate-server/internal/config"
	"github.com/shelfmate/shelfmate-server/internal/di/providers"
	"github.com/shelfmate/shelfmate-server/internal/logger"
	"github.com/shelfmate/shelfmate-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchCache)

	// Upstream clients
	do.Provide(injector, providers.ProvideGoogleBooksClient)
	do.Provide(injector, providers.ProvideLLMClient)

	// Business services
	do.Provide(injector, providers.ProvideQuotaService)
	do.Provide(injector, providers.ProvideCatalogService)
	do.Provide(injector, providers.ProvideEnricher)
	do.Provide(injector, providers.ProvideRecommendationService)

	// Workers
	do.Provide(injector, providers.ProvideQuotaSweepJob)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)

	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SearchCacheHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.GoogleBooksClientHandle](injector)
	_ = do.MustInvoke[*providers.LLMClientHandle](injector)

	// Business services
	_ = do.MustInvoke[*service.QuotaService](injector)
	_ = do.MustInvoke[*service.CatalogService](injector)
	_ = do.MustInvoke[*service.Enricher](injector)
	_ = do.MustInvoke[*service.RecommendationService](injector)

	// Workers
	_ = do.MustInvoke[*providers.QuotaSweepJob](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
