// Package providers selects and constructs the concrete llm.Provider adapter
// named by the run configuration, the way the teacher's factory wires its
// client adapters together behind a single switch.
package providers

import (
	"fmt"
	"net/http"

	"rlm/internal/config"
	"rlm/internal/llm"
	"rlm/internal/llm/anthropic"
	"rlm/internal/llm/google"
	openaillm "rlm/internal/llm/openai"
)

// Build constructs the llm.Provider named by cfg.Provider.
func Build(cfg config.Config, httpClient *http.Client) (llm.Provider, error) {
	switch cfg.Provider {
	case "", "openai":
		return openaillm.New(cfg.APIKey, cfg.Model, cfg.BaseURL, httpClient), nil
	case "local":
		return llm.NewHTTPCompatProvider(cfg.BaseURL, cfg.APIKey, httpClient), nil
	case "anthropic":
		return anthropic.New(cfg.APIKey, cfg.Model, cfg.BaseURL, httpClient), nil
	case "google":
		return google.New(cfg.APIKey, cfg.Model, cfg.BaseURL, httpClient)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
