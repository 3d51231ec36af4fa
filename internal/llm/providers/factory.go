// Package providers selects and builds the configured llm.Provider.
package providers

import (
	"context"
	"fmt"
	"net/http"

	"turag/internal/config"
	"turag/internal/llm"
	"turag/internal/llm/anthropic"
	"turag/internal/llm/google"
	"turag/internal/llm/openai"
)

// Build constructs an llm.Provider for the configured provider name.
func Build(ctx context.Context, cfg config.Config, httpClient *http.Client) (llm.Provider, error) {
	switch cfg.LLM.Provider {
	case "", "openai":
		return openai.New(cfg.LLM.OpenAI, httpClient), nil
	case "anthropic":
		return anthropic.New(cfg.LLM.Anthropic, httpClient), nil
	case "google":
		return google.New(ctx, cfg.LLM.Google, httpClient)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
	}
}
