// Package providers contains dependency injection providers for the Shelfmate server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/shelfmate/shelfmate-server/internal/config"
	"github.com/shelfmate/shelfmate-server/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting Shelfmate Server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Data.BasePath,
		"llm_model", cfg.LLM.Model,
		"quota_enabled", cfg.Quota.Enabled,
	)

	return log, nil
}
