package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kiranshivaraju/feedlens/internal/ai/llm"
	"github.com/kiranshivaraju/feedlens/internal/config"
	"github.com/kiranshivaraju/feedlens/pkg/models"
)

const connectionTimeout = 10 * time.Second

// Provider implements models.AIProvider against a same-host Ollama server.
type Provider struct {
	cfg    config.OllamaConfig
	client *http.Client
}

func NewProvider(cfg config.OllamaConfig) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultOllamaTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Provider{cfg: cfg, client: &http.Client{}}
}

func (p *Provider) Kind() models.ProviderKind { return models.ProviderOllama }

func (p *Provider) Model() string { return p.cfg.Model }

// Analyze runs one non-streaming generation. Local inference is slow, so the
// deadline comes from the configured timeout rather than the hosted default.
func (p *Provider) Analyze(ctx context.Context, req models.AnalyzeRequest) (models.AnalyzeResponse, error) {
	ctx, cancel := llm.WithTimeoutCap(ctx, p.cfg.Timeout)
	defer cancel()

	maxTokens := req.Options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.cfg.MaxTokens
	}
	body := generateRequest{
		Model:  p.cfg.Model,
		System: llm.SystemPrompt,
		Prompt: llm.BuildAnalysisPrompt(req.Report, req.PreviousQuestions, req.Options),
		Stream: false,
		Format: "json",
		Options: generateOptions{
			NumCtx:      p.cfg.ContextLength,
			NumPredict:  maxTokens,
			Temperature: 0.2,
		},
	}

	var out generateResponse
	if err := p.do(ctx, http.MethodPost, "/api/generate", body, &out); err != nil {
		return models.AnalyzeResponse{}, err
	}

	result, questions, _ := llm.ParseAnalysis(out.Response)
	model := out.Model
	if model == "" {
		model = p.cfg.Model
	}
	return models.AnalyzeResponse{
		Result:      &result,
		RawResponse: out.Response,
		Questions:   questions,
		TokenUsage:  llm.NewTokenUsage(models.ProviderOllama, out.PromptEvalCount, out.EvalCount),
		Model:       model,
	}, nil
}

// ListInstalledModels returns the models pulled onto the local server.
func (p *Provider) ListInstalledModels(ctx context.Context) ([]models.InstalledModel, error) {
	ctx, cancel := llm.WithTimeoutCap(ctx, connectionTimeout)
	defer cancel()

	var out tagsResponse
	if err := p.do(ctx, http.MethodGet, "/api/tags", nil, &out); err != nil {
		return nil, err
	}
	installed := make([]models.InstalledModel, 0, len(out.Models))
	for _, m := range out.Models {
		installed = append(installed, models.InstalledModel{
			Name:       m.Name,
			Size:       m.Size,
			ModifiedAt: m.ModifiedAt,
		})
	}
	return installed, nil
}

// TestConnection verifies the server is reachable and the configured model is installed.
func (p *Provider) TestConnection(ctx context.Context) models.ConnectionResult {
	start := time.Now()
	installed, err := p.ListInstalledModels(ctx)
	if err != nil {
		return models.ConnectionResult{
			Success: false,
			Message: fmt.Sprintf("Cannot reach Ollama at %s: %v", p.cfg.BaseURL, err),
		}
	}

	names := make([]string, 0, len(installed))
	for _, m := range installed {
		if matchesModel(m.Name, p.cfg.Model) {
			return models.ConnectionResult{
				Success:   true,
				Message:   fmt.Sprintf("Connected to Ollama; model %s is installed", m.Name),
				LatencyMs: llm.LatencyMs(start),
				ModelInfo: m.Name,
			}
		}
		names = append(names, m.Name)
	}

	available := "none"
	if len(names) > 0 {
		available = strings.Join(names, ", ")
	}
	return models.ConnectionResult{
		Success:   false,
		Message:   fmt.Sprintf("Model %q is not installed (available: %s)", p.cfg.Model, available),
		LatencyMs: llm.LatencyMs(start),
	}
}

func (p *Provider) BuildFollowUpPrompt(report models.FeedbackReport, result models.AnalysisResult) string {
	return llm.BuildFollowUpPrompt(report, result)
}

// matchesModel accepts an exact name or a tagged variant such as "llama3:latest" for "llama3".
func matchesModel(installed, configured string) bool {
	if configured == "" {
		return false
	}
	return installed == configured || strings.HasPrefix(installed, configured)
}

func (p *Provider) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return llm.TransportError("ollama", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return llm.StatusError("ollama", resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ollama: %w: %v", llm.ErrInvalidResponse, err)
	}
	return nil
}

// --- Ollama wire types ---

type generateRequest struct {
	Model   string          `json:"model"`
	System  string          `json:"system,omitempty"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Format  string          `json:"format,omitempty"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	NumCtx      int     `json:"num_ctx,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

type tagsResponse struct {
	Models []tagModel `json:"models"`
}

type tagModel struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

var _ models.AIProvider = (*Provider)(nil)
