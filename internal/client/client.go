// Package client is a thin HTTP client for the Feedlens API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kiranshivaraju/feedlens/pkg/models"
)

// DefaultTimeout covers a full analysis round against a slow local model.
const DefaultTimeout = 5 * time.Minute

// APIError is a non-2xx response from the server.
type APIError struct {
	Status    int
	Code      string
	Message   string
	Retryable bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// Client talks to one Feedlens server.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Settings mirrors GET /api/v1/ai/settings.
type Settings struct {
	Config      models.ProviderConfig        `json:"config"`
	Credentials map[models.ProviderKind]bool `json:"credentials"`
}

// Page is one page of a collection response.
type Page[T any] struct {
	Items   []T
	Total   int
	HasNext bool
}

func (c *Client) CreateFeedback(ctx context.Context, r models.FeedbackReport) (*models.FeedbackReport, error) {
	var out models.FeedbackReport
	return &out, c.do(ctx, http.MethodPost, "/api/v1/feedback", r, &out)
}

func (c *Client) GetFeedback(ctx context.Context, feedbackID string) (*models.FeedbackReport, error) {
	var out models.FeedbackReport
	return &out, c.do(ctx, http.MethodGet, feedbackPath(feedbackID), nil, &out)
}

// ListFeedback lists reports, optionally narrowed by analysis status.
func (c *Client) ListFeedback(ctx context.Context, status models.AnalysisStatus, page, limit int) (*Page[models.FeedbackReport], error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}
	if page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	path := "/api/v1/feedback"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var env struct {
		Data []models.FeedbackReport `json:"data"`
		Meta struct {
			Total   int  `json:"total"`
			HasNext bool `json:"hasNext"`
		} `json:"meta"`
	}
	if err := c.doRaw(ctx, http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	return &Page[models.FeedbackReport]{Items: env.Data, Total: env.Meta.Total, HasNext: env.Meta.HasNext}, nil
}

func (c *Client) StartAnalysis(ctx context.Context, feedbackID, clarification string) (*models.FeedbackAnalysis, error) {
	var out models.FeedbackAnalysis
	body := map[string]string{"clarification": clarification}
	return &out, c.do(ctx, http.MethodPost, feedbackPath(feedbackID)+"/analysis", body, &out)
}

func (c *Client) GetAnalysis(ctx context.Context, feedbackID string) (*models.FeedbackAnalysis, error) {
	var out models.FeedbackAnalysis
	return &out, c.do(ctx, http.MethodGet, feedbackPath(feedbackID)+"/analysis", nil, &out)
}

func (c *Client) Answer(ctx context.Context, feedbackID, questionID, answer, answeredBy string) (*models.FeedbackAnalysis, error) {
	var out models.FeedbackAnalysis
	body := map[string]string{"answer": answer, "answeredBy": answeredBy}
	return &out, c.do(ctx, http.MethodPost, questionPath(feedbackID, questionID)+"/answer", body, &out)
}

func (c *Client) PassToUser(ctx context.Context, feedbackID, questionID string) (*models.FeedbackAnalysis, error) {
	var out models.FeedbackAnalysis
	return &out, c.do(ctx, http.MethodPost, questionPath(feedbackID, questionID)+"/pass", nil, &out)
}

func (c *Client) GenerateFollowUp(ctx context.Context, feedbackID string) (*models.FollowUpArtifact, error) {
	var out models.FollowUpArtifact
	return &out, c.do(ctx, http.MethodPost, feedbackPath(feedbackID)+"/analysis/follow-ups", nil, &out)
}

func (c *Client) MarkFollowUpCopied(ctx context.Context, feedbackID, artifactID string) (*models.FollowUpArtifact, error) {
	var out models.FollowUpArtifact
	path := feedbackPath(feedbackID) + "/analysis/follow-ups/" + url.PathEscape(artifactID) + "/copied"
	return &out, c.do(ctx, http.MethodPost, path, nil, &out)
}

func (c *Client) TestConnection(ctx context.Context) (*models.ConnectionResult, error) {
	var out models.ConnectionResult
	return &out, c.do(ctx, http.MethodPost, "/api/v1/ai/test-connection", nil, &out)
}

func (c *Client) ListModels(ctx context.Context) ([]models.InstalledModel, error) {
	var out []models.InstalledModel
	return out, c.do(ctx, http.MethodGet, "/api/v1/ai/models", nil, &out)
}

func (c *Client) GetSettings(ctx context.Context) (*Settings, error) {
	var out Settings
	return &out, c.do(ctx, http.MethodGet, "/api/v1/ai/settings", nil, &out)
}

func (c *Client) PutSettings(ctx context.Context, cfg models.ProviderConfig) (*models.ProviderConfig, error) {
	var out models.ProviderConfig
	return &out, c.do(ctx, http.MethodPut, "/api/v1/ai/settings", cfg, &out)
}

// PutCredential stores apiKey for kind. An empty key removes the stored one.
func (c *Client) PutCredential(ctx context.Context, kind models.ProviderKind, apiKey string) (*models.CredentialUpdate, error) {
	path := "/api/v1/ai/credentials/" + url.PathEscape(string(kind))
	var out models.CredentialUpdate
	return &out, c.do(ctx, http.MethodPut, path, map[string]string{"apiKey": apiKey}, &out)
}

func feedbackPath(id string) string {
	return "/api/v1/feedback/" + url.PathEscape(id)
}

func questionPath(feedbackID, questionID string) string {
	return feedbackPath(feedbackID) + "/analysis/questions/" + url.PathEscape(questionID)
}

// do sends a request and unwraps the {"data": ...} envelope into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if out == nil {
		return c.doRaw(ctx, method, path, body, nil)
	}
	env := struct {
		Data any `json:"data"`
	}{Data: out}
	return c.doRaw(ctx, method, path, body, &env)
}

func (c *Client) doRaw(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Details struct {
				Retryable bool `json:"retryable"`
			} `json:"details"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode, Code: "HTTP_ERROR", Message: strings.TrimSpace(string(raw))}
	if json.Unmarshal(raw, &env) == nil && env.Error.Code != "" {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Retryable = env.Error.Details.Retryable
	}
	return apiErr
}
