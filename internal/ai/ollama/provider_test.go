package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/feedlens/internal/ai/llm"
	"github.com/kiranshivaraju/feedlens/internal/config"
	"github.com/kiranshivaraju/feedlens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, baseURL, model string) *Provider {
	t.Helper()
	return NewProvider(config.OllamaConfig{
		BaseURL:       baseURL,
		Model:         model,
		MaxTokens:     512,
		ContextLength: 4096,
		Timeout:       5 * time.Second,
	})
}

func sampleRequest() models.AnalyzeRequest {
	return models.AnalyzeRequest{
		Report: models.FeedbackReport{
			ID:          "fb-1",
			Type:        "bug",
			Title:       "Crash on save",
			Description: "The app closes when I press save.",
		},
		Options: models.AnalyzeOptions{Round: 1, MaxRounds: 3},
	}
}

const modelJSON = `{"summary":"Save handler panics","confirmedFacts":["crash on save"],"confidence":"high",
"suggestedActions":["inspect save handler"],"questions":[{"id":"q1","question":"Which version?","isRequired":true}]}`

func TestAnalyze_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.False(t, req.Stream)
		assert.Equal(t, "json", req.Format)
		assert.Equal(t, 4096, req.Options.NumCtx)
		assert.Equal(t, 512, req.Options.NumPredict)
		assert.Contains(t, req.Prompt, "Crash on save")

		_ = json.NewEncoder(w).Encode(generateResponse{
			Model:           "llama3:latest",
			Response:        modelJSON,
			Done:            true,
			PromptEvalCount: 120,
			EvalCount:       80,
		})
	}))
	defer ts.Close()

	p := newTestProvider(t, ts.URL, "llama3")
	resp, err := p.Analyze(context.Background(), sampleRequest())
	require.NoError(t, err)

	require.NotNil(t, resp.Result)
	assert.Equal(t, "Save handler panics", resp.Result.Summary)
	assert.Equal(t, models.ConfidenceHigh, resp.Result.Confidence)
	assert.Equal(t, modelJSON, resp.RawResponse)
	require.Len(t, resp.Questions, 1)
	assert.Equal(t, "q1", resp.Questions[0].ID)
	assert.Equal(t, "llama3:latest", resp.Model)
	require.NotNil(t, resp.TokenUsage)
	assert.Equal(t, 200, resp.TokenUsage.Total)
	assert.Nil(t, resp.TokenUsage.EstimatedCost)
}

func TestAnalyze_MalformedOutputIsDegraded(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "not json at all", Done: true})
	}))
	defer ts.Close()

	resp, err := newTestProvider(t, ts.URL, "llama3").Analyze(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, llm.DegradedSummary, resp.Result.Summary)
	assert.Equal(t, models.ConfidenceLow, resp.Result.Confidence)
	assert.Empty(t, resp.Questions)
	assert.Equal(t, "not json at all", resp.RawResponse)
}

func TestAnalyze_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := newTestProvider(t, ts.URL, "llama3").Analyze(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrProviderUnavailable)
}

func TestAnalyze_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	p := NewProvider(config.OllamaConfig{BaseURL: ts.URL, Model: "llama3", Timeout: 50 * time.Millisecond})
	_, err := p.Analyze(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeTimeout, llm.Classify(err).Code)
}

func TestAnalyze_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	_, err := newTestProvider(t, url, "llama3").Analyze(context.Background(), sampleRequest())
	require.Error(t, err)
	c := llm.Classify(err)
	assert.Equal(t, models.ErrCodeProviderUnavailable, c.Code)
	assert.True(t, c.Retryable)
}

func tagsServer(t *testing.T, names ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		var out tagsResponse
		for _, n := range names {
			out.Models = append(out.Models, tagModel{Name: n, Size: 4_000_000_000})
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
}

func TestListInstalledModels(t *testing.T) {
	ts := tagsServer(t, "llama3:latest", "mistral:7b")
	defer ts.Close()

	installed, err := newTestProvider(t, ts.URL, "llama3").ListInstalledModels(context.Background())
	require.NoError(t, err)
	require.Len(t, installed, 2)
	assert.Equal(t, "llama3:latest", installed[0].Name)
	assert.Equal(t, int64(4_000_000_000), installed[0].Size)
}

func TestTestConnection_ModelInstalledByPrefix(t *testing.T) {
	ts := tagsServer(t, "mistral:7b", "llama3:latest")
	defer ts.Close()

	res := newTestProvider(t, ts.URL, "llama3").TestConnection(context.Background())
	assert.True(t, res.Success)
	assert.Equal(t, "llama3:latest", res.ModelInfo)
	assert.NotNil(t, res.LatencyMs)
}

func TestTestConnection_ModelInstalledExact(t *testing.T) {
	ts := tagsServer(t, "llama3:8b")
	defer ts.Close()

	res := newTestProvider(t, ts.URL, "llama3:8b").TestConnection(context.Background())
	assert.True(t, res.Success)
}

func TestTestConnection_ModelMissing(t *testing.T) {
	ts := tagsServer(t, "mistral:7b")
	defer ts.Close()

	res := newTestProvider(t, ts.URL, "llama3").TestConnection(context.Background())
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "not installed")
	assert.Contains(t, res.Message, "mistral:7b")
}

func TestTestConnection_Unreachable(t *testing.T) {
	ts := tagsServer(t)
	url := ts.URL
	ts.Close()

	res := newTestProvider(t, url, "llama3").TestConnection(context.Background())
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "Cannot reach Ollama")
}

func TestKindAndModel(t *testing.T) {
	p := newTestProvider(t, "http://localhost:11434/", "llama3")
	assert.Equal(t, models.ProviderOllama, p.Kind())
	assert.Equal(t, "llama3", p.Model())
	assert.Equal(t, "http://localhost:11434", p.cfg.BaseURL)
}
