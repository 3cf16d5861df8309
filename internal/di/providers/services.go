package providers

import (
	"github.com/samber/do/v2"

	"github.com/shelfmate/shelfmate-server/internal/config"
	"github.com/shelfmate/shelfmate-server/internal/logger"
	"github.com/shelfmate/shelfmate-server/internal/service"
)

// ProvideQuotaService provides the daily quota tracker.
func ProvideQuotaService(i do.Injector) (*service.QuotaService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewQuotaService(storeHandle.Store, service.QuotaConfig{
		Enabled:   cfg.Quota.Enabled,
		MaxPerDay: cfg.Quota.MaxPerDay,
	}, log.Component("quota")), nil
}

// ProvideCatalogService provides the catalog matcher.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	searchHandle := do.MustInvoke[*GoogleBooksClientHandle](i)
	cacheHandle := do.MustInvoke[*SearchCacheHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCatalogService(
		storeHandle.Store,
		searchHandle.Client,
		cacheHandle.SearchCache,
		log.Component("catalog"),
	), nil
}

// ProvideEnricher provides the recommendation enricher.
func ProvideEnricher(i do.Injector) (*service.Enricher, error) {
	catalog := do.MustInvoke[*service.CatalogService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewEnricher(catalog, log.Component("enricher")), nil
}

// ProvideRecommendationService provides the recommendation orchestrator.
func ProvideRecommendationService(i do.Injector) (*service.RecommendationService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	quota := do.MustInvoke[*service.QuotaService](i)
	llmHandle := do.MustInvoke[*LLMClientHandle](i)
	enricher := do.MustInvoke[*service.Enricher](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewRecommendationService(
		storeHandle.Store,
		quota,
		llmHandle.Client,
		enricher,
		service.RecommendationConfig{
			RejectionWindow:   cfg.Recommend.RejectionWindow,
			GenerationTimeout: cfg.LLM.Timeout,
		},
		log.Component("recommendation"),
	), nil
}
