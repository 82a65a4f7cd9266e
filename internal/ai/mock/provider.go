package mock

import (
	"context"
	"sync"

	"github.com/kiranshivaraju/feedlens/internal/ai/llm"
	"github.com/kiranshivaraju/feedlens/pkg/models"
)

// MockProvider satisfies models.AIProvider for testing. Every Analyze call is
// recorded in order.
type MockProvider struct {
	Kind_              models.ProviderKind
	Model_             string
	AnalyzeFunc        func(ctx context.Context, req models.AnalyzeRequest) (models.AnalyzeResponse, error)
	TestConnectionFunc func(ctx context.Context) models.ConnectionResult

	mu    sync.Mutex
	calls []models.AnalyzeRequest
}

func (m *MockProvider) Kind() models.ProviderKind { return m.Kind_ }

func (m *MockProvider) Model() string { return m.Model_ }

func (m *MockProvider) Analyze(ctx context.Context, req models.AnalyzeRequest) (models.AnalyzeResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, req)
	}
	return models.AnalyzeResponse{}, nil
}

func (m *MockProvider) TestConnection(ctx context.Context) models.ConnectionResult {
	if m.TestConnectionFunc != nil {
		return m.TestConnectionFunc(ctx)
	}
	return models.ConnectionResult{Success: true, Message: "mock connected", ModelInfo: m.Model_}
}

func (m *MockProvider) BuildFollowUpPrompt(report models.FeedbackReport, result models.AnalysisResult) string {
	return llm.BuildFollowUpPrompt(report, result)
}

// Calls returns a copy of the recorded Analyze requests.
func (m *MockProvider) Calls() []models.AnalyzeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.AnalyzeRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times Analyze was invoked.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Response builds a successful AnalyzeResponse carrying the given questions.
func Response(summary string, questions ...models.ClarifyingQuestion) models.AnalyzeResponse {
	return models.AnalyzeResponse{
		Result: &models.AnalysisResult{
			Summary:          summary,
			ConfirmedFacts:   []string{"reported by user"},
			Confidence:       models.ConfidenceMedium,
			SuggestedActions: []string{"Reproduce locally"},
		},
		RawResponse: `{"summary":"` + summary + `"}`,
		Questions:   questions,
		TokenUsage:  &models.TokenUsage{Input: 100, Output: 50, Total: 150},
		Model:       "mock-v1",
	}
}

// NewMockProvider returns a MockProvider that always completes with no questions.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Kind_:  models.ProviderOllama,
		Model_: "mock-v1",
		AnalyzeFunc: func(_ context.Context, _ models.AnalyzeRequest) (models.AnalyzeResponse, error) {
			return Response("Mock analysis summary for testing"), nil
		},
	}
}

// NewScriptedProvider returns the given responses in order, repeating the
// last one once the script is exhausted.
func NewScriptedProvider(responses ...models.AnalyzeResponse) *MockProvider {
	m := &MockProvider{Kind_: models.ProviderOllama, Model_: "mock-v1"}
	m.AnalyzeFunc = func(_ context.Context, _ models.AnalyzeRequest) (models.AnalyzeResponse, error) {
		if len(responses) == 0 {
			return models.AnalyzeResponse{}, nil
		}
		n := m.CallCount() - 1
		if n >= len(responses) {
			n = len(responses) - 1
		}
		return responses[n], nil
	}
	return m
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Kind_:  models.ProviderAnthropic,
		Model_: "mock-failing",
		AnalyzeFunc: func(_ context.Context, _ models.AnalyzeRequest) (models.AnalyzeResponse, error) {
			return models.AnalyzeResponse{}, err
		},
		TestConnectionFunc: func(_ context.Context) models.ConnectionResult {
			return models.ConnectionResult{Success: false, Message: err.Error()}
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Kind_:  models.ProviderOllama,
		Model_: "mock-timeout",
		AnalyzeFunc: func(ctx context.Context, _ models.AnalyzeRequest) (models.AnalyzeResponse, error) {
			<-ctx.Done()
			return models.AnalyzeResponse{}, llm.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockProvider implements AIProvider.
var _ models.AIProvider = (*MockProvider)(nil)
