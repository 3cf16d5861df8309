package providers

import (
	"github.com/samber/do/v2"

	"github.com/shelfmate/shelfmate-server/internal/config"
	"github.com/shelfmate/shelfmate-server/internal/llm"
	"github.com/shelfmate/shelfmate-server/internal/logger"
	"github.com/shelfmate/shelfmate-server/internal/metadata/googlebooks"
)

// GoogleBooksClientHandle wraps the Google Books client with shutdown capability.
type GoogleBooksClientHandle struct {
	*googlebooks.Client
}

// Shutdown implements do.Shutdownable.
func (h *GoogleBooksClientHandle) Shutdown() error {
	h.Client.Close()
	return nil
}

// ProvideGoogleBooksClient provides the external bibliographic search client.
func ProvideGoogleBooksClient(i do.Injector) (*GoogleBooksClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client := googlebooks.New(googlebooks.Config{
		BaseURL:    cfg.GoogleBooks.BaseURL,
		APIKey:     cfg.GoogleBooks.APIKey,
		MaxResults: cfg.GoogleBooks.MaxResults,
		Timeout:    cfg.GoogleBooks.Timeout,
	}, log.Component("googlebooks"))
	log.Info("Google Books client initialized", "authenticated", cfg.GoogleBooks.APIKey != "")

	return &GoogleBooksClientHandle{Client: client}, nil
}

// LLMClientHandle wraps the text-generation client with shutdown capability.
type LLMClientHandle struct {
	*llm.Client
}

// Shutdown implements do.Shutdownable.
func (h *LLMClientHandle) Shutdown() error {
	h.Client.Close()
	return nil
}

// ProvideLLMClient provides the text-generation client.
func ProvideLLMClient(i do.Injector) (*LLMClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client := llm.New(llm.Config{
		BaseURL:           cfg.LLM.BaseURL,
		APIKey:            cfg.LLM.APIKey,
		Model:             cfg.LLM.Model,
		MaxTokens:         cfg.LLM.MaxTokens,
		Temperature:       cfg.LLM.Temperature,
		Timeout:           cfg.LLM.Timeout,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
	}, log.Component("llm"))
	if cfg.LLM.APIKey == "" {
		log.Warn("LLM_API_KEY is not set; generation requests will be rejected by the provider")
	}
	log.Info("Text generation client initialized", "model", client.Model())

	return &LLMClientHandle{Client: client}, nil
}
