package ai

import (
	"fmt"
	"time"

	"github.com/kiranshivaraju/feedlens/internal/ai/anthropic"
	"github.com/kiranshivaraju/feedlens/internal/ai/ollama"
	"github.com/kiranshivaraju/feedlens/internal/ai/openai"
	"github.com/kiranshivaraju/feedlens/internal/config"
	"github.com/kiranshivaraju/feedlens/pkg/models"
)

// ProviderFactory builds a client for a resolved provider selection.
type ProviderFactory func(models.ResolvedProvider) (models.AIProvider, error)

// NewProvider constructs the AI provider named by the resolved settings.
// Called once per workflow invocation with the current selection.
func NewProvider(rp models.ResolvedProvider) (models.AIProvider, error) {
	c := rp.Config
	timeout := time.Duration(c.TimeoutMs) * time.Millisecond

	switch c.Kind {
	case models.ProviderOllama:
		return ollama.NewProvider(config.OllamaConfig{
			BaseURL:       orDefault(c.BaseURL, "http://localhost:11434"),
			Model:         c.ModelID,
			MaxTokens:     c.MaxTokens,
			ContextLength: c.ContextLength,
			Timeout:       timeout,
		}), nil
	case models.ProviderOpenAI:
		return openai.NewProvider(config.OpenAIConfig{
			BaseURL:   orDefault(c.BaseURL, "https://api.openai.com"),
			APIKey:    rp.Credential,
			Model:     c.ModelID,
			MaxTokens: c.MaxTokens,
			Timeout:   timeout,
		}), nil
	case models.ProviderAnthropic:
		return anthropic.NewProvider(config.AnthropicConfig{
			BaseURL:   orDefault(c.BaseURL, "https://api.anthropic.com"),
			APIKey:    rp.Credential,
			Model:     c.ModelID,
			MaxTokens: c.MaxTokens,
			Timeout:   timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of ollama, openai, anthropic", c.Kind)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
