package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kiranshivaraju/feedlens/internal/ai/llm"
	"github.com/kiranshivaraju/feedlens/internal/config"
	"github.com/kiranshivaraju/feedlens/pkg/models"
)

const connectionTimeout = 10 * time.Second

// Provider implements models.AIProvider using the OpenAI Chat Completions API.
type Provider struct {
	cfg    config.OpenAIConfig
	client *http.Client
}

func NewProvider(cfg config.OpenAIConfig) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultHostedTimeout
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Provider{cfg: cfg, client: &http.Client{}}
}

func (p *Provider) Kind() models.ProviderKind { return models.ProviderOpenAI }

func (p *Provider) Model() string { return p.cfg.Model }

func (p *Provider) Analyze(ctx context.Context, req models.AnalyzeRequest) (models.AnalyzeResponse, error) {
	if p.cfg.APIKey == "" {
		return models.AnalyzeResponse{}, fmt.Errorf("openai: %w", llm.ErrCredentialMissing)
	}
	ctx, cancel := llm.WithTimeoutCap(ctx, p.cfg.Timeout)
	defer cancel()

	maxTokens := req.Options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.cfg.MaxTokens
	}
	body, err := json.Marshal(chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: llm.SystemPrompt},
			{Role: "user", Content: llm.BuildAnalysisPrompt(req.Report, req.PreviousQuestions, req.Options)},
		},
		MaxTokens:      maxTokens,
		Temperature:    0.2,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return models.AnalyzeResponse{}, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return models.AnalyzeResponse{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return models.AnalyzeResponse{}, llm.TransportError("openai", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.AnalyzeResponse{}, llm.StatusError("openai", resp)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.AnalyzeResponse{}, fmt.Errorf("openai: %w: %v", llm.ErrInvalidResponse, err)
	}

	var raw string
	if len(out.Choices) > 0 {
		raw = strings.TrimSpace(out.Choices[0].Message.Content)
	}

	result, questions, _ := llm.ParseAnalysis(raw)
	model := out.Model
	if model == "" {
		model = p.cfg.Model
	}
	return models.AnalyzeResponse{
		Result:      &result,
		RawResponse: raw,
		Questions:   questions,
		TokenUsage:  llm.NewTokenUsage(models.ProviderOpenAI, out.Usage.PromptTokens, out.Usage.CompletionTokens),
		Model:       model,
	}, nil
}

// TestConnection retrieves the configured model. 401 and 429 are reported
// directly; the method never returns an error.
func (p *Provider) TestConnection(ctx context.Context) models.ConnectionResult {
	if p.cfg.APIKey == "" {
		return models.ConnectionResult{Success: false, Message: "API key not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.cfg.BaseURL+"/v1/models/"+url.PathEscape(p.cfg.Model), nil)
	if err != nil {
		return models.ConnectionResult{Success: false, Message: fmt.Sprintf("Invalid request: %v", err)}
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return models.ConnectionResult{Success: false, Message: fmt.Sprintf("Connection failed: %v", err)}
	}
	defer resp.Body.Close()
	latency := llm.LatencyMs(start)

	switch resp.StatusCode {
	case http.StatusOK:
		var info modelObject
		_ = json.NewDecoder(resp.Body).Decode(&info)
		name := info.ID
		if name == "" {
			name = p.cfg.Model
		}
		return models.ConnectionResult{
			Success:   true,
			Message:   fmt.Sprintf("Connected to OpenAI (%s)", name),
			LatencyMs: latency,
			ModelInfo: strings.TrimSpace(name + " " + info.OwnedBy),
		}
	case http.StatusUnauthorized:
		return models.ConnectionResult{Success: false, Message: "Invalid API key", LatencyMs: latency}
	case http.StatusTooManyRequests:
		return models.ConnectionResult{Success: false, Message: "Rate limited - try again later", LatencyMs: latency}
	case http.StatusNotFound:
		return models.ConnectionResult{Success: false, Message: fmt.Sprintf("Model %q not found", p.cfg.Model), LatencyMs: latency}
	}
	return models.ConnectionResult{
		Success:   false,
		Message:   fmt.Sprintf("Unexpected response from OpenAI: status %d", resp.StatusCode),
		LatencyMs: latency,
	}
}

func (p *Provider) BuildFollowUpPrompt(report models.FeedbackReport, result models.AnalysisResult) string {
	return llm.BuildFollowUpPrompt(report, result)
}

// --- OpenAI wire types ---

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int         `json:"index"`
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type modelObject struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by"`
}

var _ models.AIProvider = (*Provider)(nil)
