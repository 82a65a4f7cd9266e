package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/feedlens/internal/config"
	"github.com/kiranshivaraju/feedlens/internal/store"
	"github.com/kiranshivaraju/feedlens/pkg/models"
)

// seedSettings writes the environment's AI selection and API keys into the
// settings store when nothing is stored yet. Stored values always win.
func seedSettings(ctx context.Context, settings store.SettingsStore, cfg config.AIConfig) error {
	_, err := settings.GetActiveProviderConfig(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		seed := providerConfigFromEnv(cfg)
		if err := settings.PutProviderConfig(ctx, seed); err != nil {
			return fmt.Errorf("seed provider settings: %w", err)
		}
		slog.Info("provider settings seeded", "provider", seed.Kind, "model", seed.ModelID)
	case err != nil:
		return fmt.Errorf("read provider settings: %w", err)
	}

	keys := map[models.ProviderKind]string{
		models.ProviderAnthropic: cfg.Anthropic.APIKey,
		models.ProviderOpenAI:    cfg.OpenAI.APIKey,
	}
	for kind, key := range keys {
		if key == "" {
			continue
		}
		stored, err := settings.GetCredential(ctx, kind)
		if err != nil {
			return fmt.Errorf("read %s credential: %w", kind, err)
		}
		if stored != "" {
			continue
		}
		if err := settings.PutCredential(ctx, kind, key); err != nil {
			return fmt.Errorf("seed %s credential: %w", kind, err)
		}
		slog.Info("provider credential seeded", "provider", kind)
	}
	return nil
}

func providerConfigFromEnv(cfg config.AIConfig) models.ProviderConfig {
	pc := models.ProviderConfig{
		Kind:      models.ProviderKind(cfg.Provider),
		MaxTokens: cfg.MaxTokens,
		MaxRounds: cfg.MaxRounds,
	}
	switch pc.Kind {
	case models.ProviderOllama:
		pc.ModelID = cfg.Ollama.Model
		pc.BaseURL = cfg.Ollama.BaseURL
		pc.ContextLength = cfg.Ollama.ContextLength
		pc.TimeoutMs = int(cfg.Ollama.Timeout.Milliseconds())
	case models.ProviderOpenAI:
		pc.ModelID = cfg.OpenAI.Model
		pc.BaseURL = cfg.OpenAI.BaseURL
		pc.TimeoutMs = int(cfg.OpenAI.Timeout.Milliseconds())
	case models.ProviderAnthropic:
		pc.ModelID = cfg.Anthropic.Model
		pc.BaseURL = cfg.Anthropic.BaseURL
		pc.TimeoutMs = int(cfg.Anthropic.Timeout.Milliseconds())
	}
	return pc
}
