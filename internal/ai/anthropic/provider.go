package anthropic

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

const (
	apiVersion        = "2023-06-01"
	connectionTimeout = 10 * time.Second
)

// Provider implements models.AIProvider using the Anthropic Messages API.
type Provider struct {
	cfg    config.AnthropicConfig
	client *http.Client
}

func NewProvider(cfg config.AnthropicConfig) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultHostedTimeout
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Provider{cfg: cfg, client: &http.Client{}}
}

func (p *Provider) Kind() models.ProviderKind { return models.ProviderAnthropic }

func (p *Provider) Model() string { return p.cfg.Model }

func (p *Provider) Analyze(ctx context.Context, req models.AnalyzeRequest) (models.AnalyzeResponse, error) {
	if p.cfg.APIKey == "" {
		return models.AnalyzeResponse{}, fmt.Errorf("anthropic: %w", llm.ErrCredentialMissing)
	}
	ctx, cancel := llm.WithTimeoutCap(ctx, p.cfg.Timeout)
	defer cancel()

	maxTokens := req.Options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.cfg.MaxTokens
	}
	body, err := json.Marshal(messagesRequest{
		Model:     p.cfg.Model,
		MaxTokens: maxTokens,
		System:    llm.SystemPrompt,
		Messages: []message{
			{Role: "user", Content: llm.BuildAnalysisPrompt(req.Report, req.PreviousQuestions, req.Options)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return models.AnalyzeResponse{}, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return models.AnalyzeResponse{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	p.setHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return models.AnalyzeResponse{}, llm.TransportError("anthropic", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.AnalyzeResponse{}, llm.StatusError("anthropic", resp)
	}

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.AnalyzeResponse{}, fmt.Errorf("anthropic: %w: %v", llm.ErrInvalidResponse, err)
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	raw := strings.TrimSpace(text.String())

	result, questions, _ := llm.ParseAnalysis(raw)
	model := out.Model
	if model == "" {
		model = p.cfg.Model
	}
	return models.AnalyzeResponse{
		Result:      &result,
		RawResponse: raw,
		Questions:   questions,
		TokenUsage:  llm.NewTokenUsage(models.ProviderAnthropic, out.Usage.InputTokens, out.Usage.OutputTokens),
		Model:       model,
	}, nil
}

// TestConnection fetches the configured model's metadata. 401 and 429 are
// reported directly; the method never returns an error.
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
	p.setHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return models.ConnectionResult{Success: false, Message: fmt.Sprintf("Connection failed: %v", err)}
	}
	defer resp.Body.Close()
	latency := llm.LatencyMs(start)

	switch resp.StatusCode {
	case http.StatusOK:
		var info modelInfo
		_ = json.NewDecoder(resp.Body).Decode(&info)
		name := info.DisplayName
		if name == "" {
			name = p.cfg.Model
		}
		return models.ConnectionResult{
			Success:   true,
			Message:   fmt.Sprintf("Connected to Anthropic (%s)", name),
			LatencyMs: latency,
			ModelInfo: name,
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
		Message:   fmt.Sprintf("Unexpected response from Anthropic: status %d", resp.StatusCode),
		LatencyMs: latency,
	}
}

func (p *Provider) BuildFollowUpPrompt(report models.FeedbackReport, result models.AnalysisResult) string {
	return llm.BuildFollowUpPrompt(report, result)
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", apiVersion)
}

// --- Anthropic wire types ---

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Content []contentBlock `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type modelInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

var _ models.AIProvider = (*Provider)(nil)
