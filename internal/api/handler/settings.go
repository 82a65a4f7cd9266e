package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/feedlens/internal/api/response"
	"github.com/kiranshivaraju/feedlens/internal/cache"
	"github.com/kiranshivaraju/feedlens/pkg/models"
)

const installedModelsTTL = time.Minute

// SettingsRepository holds the persisted provider selection and credentials.
type SettingsRepository interface {
	GetActiveProviderConfig(ctx context.Context) (models.ProviderConfig, error)
	PutProviderConfig(ctx context.Context, cfg models.ProviderConfig) error
	GetCredential(ctx context.Context, kind models.ProviderKind) (string, error)
	PutCredential(ctx context.Context, kind models.ProviderKind, secret string) error
}

// ProviderOps are the provider calls made outside of an analysis round.
// Satisfied by *ai.AnalysisService.
type ProviderOps interface {
	TestConnection(ctx context.Context) (models.ConnectionResult, error)
	ListInstalledModels(ctx context.Context) ([]models.InstalledModel, error)
}

// KeyValueCache is the subset of cache.Cache used for installed-model listings.
type KeyValueCache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

type settingsResponse struct {
	Config      models.ProviderConfig        `json:"config"`
	Credentials map[models.ProviderKind]bool `json:"credentials"`
}

// NewGetSettingsHandler returns an http.HandlerFunc for GET /api/v1/ai/settings.
// Credentials are reported as configured or not, never echoed.
func NewGetSettingsHandler(repo SettingsRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := repo.GetActiveProviderConfig(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		creds := make(map[models.ProviderKind]bool)
		for _, kind := range []models.ProviderKind{models.ProviderAnthropic, models.ProviderOpenAI} {
			secret, err := repo.GetCredential(r.Context(), kind)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			creds[kind] = secret != ""
		}
		response.JSON(w, settingsResponse{Config: cfg, Credentials: creds})
	}
}

// NewPutSettingsHandler returns an http.HandlerFunc for PUT /api/v1/ai/settings.
func NewPutSettingsHandler(repo SettingsRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg models.ProviderConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		cfg.ModelID = strings.TrimSpace(cfg.ModelID)
		cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)

		switch {
		case !cfg.Kind.Valid():
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "provider must be one of ollama, openai, anthropic", nil)
			return
		case cfg.ModelID == "":
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "modelId is required", nil)
			return
		case cfg.MaxTokens < 1:
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "maxTokens must be at least 1", nil)
			return
		case cfg.MaxRounds < 1:
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "maxRounds must be at least 1", nil)
			return
		case cfg.TimeoutMs < 0 || cfg.ContextLength < 0:
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "timeoutMs and contextLength must not be negative", nil)
			return
		case cfg.BaseURL != "" && !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://"):
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "baseUrl must start with http:// or https://", nil)
			return
		}

		if err := repo.PutProviderConfig(r.Context(), cfg); err != nil {
			writeServiceError(w, r, err)
			return
		}
		slog.Info("provider settings updated", "provider", cfg.Kind, "model", cfg.ModelID, "max_rounds", cfg.MaxRounds)
		response.JSON(w, cfg)
	}
}

// NewPutCredentialHandler returns an http.HandlerFunc for
// PUT /api/v1/ai/credentials/{provider}. An empty apiKey removes the credential.
func NewPutCredentialHandler(repo SettingsRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := models.ProviderKind(chi.URLParam(r, "provider"))
		if !kind.Hosted() {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "credentials are only stored for openai and anthropic", nil)
			return
		}
		var req struct {
			APIKey string `json:"apiKey"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		key := strings.TrimSpace(req.APIKey)
		previous, err := repo.GetCredential(r.Context(), kind)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if err := repo.PutCredential(r.Context(), kind, key); err != nil {
			writeServiceError(w, r, err)
			return
		}

		res := credentialUpdate(kind, previous, key)
		slog.Info("provider credential updated", "provider", kind, "removed", key == "", "restart_required", res.RestartRequired)
		response.JSON(w, res)
	}
}

// credentialUpdate describes when a key change reaches running analyses. A
// first key is picked up immediately; a replaced or removed one is not.
func credentialUpdate(kind models.ProviderKind, previous, key string) models.CredentialUpdate {
	res := models.CredentialUpdate{
		Provider:        kind,
		Configured:      key != "",
		RestartRequired: previous != "" && previous != key,
	}
	switch {
	case key == "" && previous == "":
		res.Message = fmt.Sprintf("No %s credential was stored.", kind)
	case key == "":
		res.Message = fmt.Sprintf("Removed %s credential.", kind)
	case !res.RestartRequired:
		res.Message = fmt.Sprintf("Stored %s credential.", kind)
	default:
		res.Message = fmt.Sprintf("Replaced %s credential.", kind)
	}
	if res.RestartRequired {
		res.Message += " The server keeps using the previous key until it restarts."
	}
	return res
}

// NewTestConnectionHandler returns an http.HandlerFunc for POST /api/v1/ai/test-connection.
func NewTestConnectionHandler(ops ProviderOps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := ops.TestConnection(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, res)
	}
}

// NewListModelsHandler returns an http.HandlerFunc for GET /api/v1/ai/models.
// Listings are cached per provider base URL; cache failures fall through to
// the provider.
func NewListModelsHandler(ops ProviderOps, repo SettingsRepository, c KeyValueCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		cfg, err := repo.GetActiveProviderConfig(ctx)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		key := cache.InstalledModelsKey(cfg.BaseURL)

		if c != nil {
			if raw, ok, err := c.Get(ctx, key); err == nil && ok {
				var cached []models.InstalledModel
				if json.Unmarshal(raw, &cached) == nil {
					response.JSON(w, cached)
					return
				}
			} else if err != nil {
				slog.Warn("installed models cache read failed", "error", err)
			}
		}

		installed, err := ops.ListInstalledModels(ctx)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if installed == nil {
			installed = []models.InstalledModel{}
		}
		if c != nil {
			if raw, err := json.Marshal(installed); err == nil {
				if err := c.Set(ctx, key, raw, installedModelsTTL); err != nil {
					slog.Warn("installed models cache write failed", "error", err)
				}
			}
		}
		response.JSON(w, installed)
	}
}
