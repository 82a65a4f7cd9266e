// Package credentials resolves the active provider selection and the secret
// it needs before a provider call.
package credentials

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/kiranshivaraju/feedlens/internal/ai/llm"
	"github.com/kiranshivaraju/feedlens/pkg/models"
)

// Settings is the external settings collaborator. It is called on every
// workflow invocation.
type Settings interface {
	GetActiveProviderConfig(ctx context.Context) (models.ProviderConfig, error)
	// GetCredential returns "" when no credential is stored for kind.
	GetCredential(ctx context.Context, kind models.ProviderKind) (string, error)
}

// Gateway caches credentials per provider kind for its own lifetime. The
// cache is never invalidated; a rotated key takes effect after restart.
// Safe for concurrent use.
type Gateway struct {
	settings Settings

	mu    sync.RWMutex
	cache map[models.ProviderKind]string
	group singleflight.Group
}

func NewGateway(settings Settings) *Gateway {
	return &Gateway{
		settings: settings,
		cache:    make(map[models.ProviderKind]string),
	}
}

// ActiveConfig returns the current provider selection without touching credentials.
func (g *Gateway) ActiveConfig(ctx context.Context) (models.ProviderConfig, error) {
	cfg, err := g.settings.GetActiveProviderConfig(ctx)
	if err != nil {
		return models.ProviderConfig{}, fmt.Errorf("load provider settings: %w", err)
	}
	return cfg, nil
}

// ResolveProvider returns the active provider configuration and, for hosted
// providers, its credential. A hosted provider with no stored credential
// yields llm.ErrCredentialMissing.
func (g *Gateway) ResolveProvider(ctx context.Context) (models.ResolvedProvider, error) {
	cfg, err := g.ActiveConfig(ctx)
	if err != nil {
		return models.ResolvedProvider{}, err
	}
	if !cfg.Kind.Valid() {
		return models.ResolvedProvider{}, fmt.Errorf("unknown AI provider %q in settings", cfg.Kind)
	}

	resolved := models.ResolvedProvider{Config: cfg}
	if !cfg.Kind.Hosted() {
		return resolved, nil
	}

	secret, err := g.credential(ctx, cfg.Kind)
	if err != nil {
		return models.ResolvedProvider{}, err
	}
	if secret == "" {
		return models.ResolvedProvider{}, fmt.Errorf("%s: %w", cfg.Kind, llm.ErrCredentialMissing)
	}
	resolved.Credential = secret
	return resolved, nil
}

func (g *Gateway) credential(ctx context.Context, kind models.ProviderKind) (string, error) {
	g.mu.RLock()
	secret, ok := g.cache[kind]
	g.mu.RUnlock()
	if ok {
		return secret, nil
	}

	v, err, _ := g.group.Do(string(kind), func() (any, error) {
		secret, err := g.settings.GetCredential(ctx, kind)
		if err != nil {
			return "", fmt.Errorf("load %s credential: %w", kind, err)
		}
		// A missing credential is not cached so that one stored later is picked up.
		if secret != "" {
			g.mu.Lock()
			g.cache[kind] = secret
			g.mu.Unlock()
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
