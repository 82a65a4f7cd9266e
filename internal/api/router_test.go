package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/feedlens/internal/api"
	mw "github.com/kiranshivaraju/feedlens/internal/api/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- stub counter ---

type stubCounter struct {
	n int64
}

func (c *stubCounter) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	c.n++
	return c.n, nil
}

// --- router tests ---

// echo writes the matched route parameters back as JSON.
func echo(w http.ResponseWriter, r *http.Request) {
	rctx := chi.RouteContext(r.Context())
	params := map[string]string{}
	for i, k := range rctx.URLParams.Keys {
		params[k] = rctx.URLParams.Values[i]
	}
	json.NewEncoder(w).Encode(params)
}

func newTestRouter(limit int) http.Handler {
	return api.NewRouter(api.Dependencies{
		RateLimit: mw.NewRateLimit(&stubCounter{}, limit),
		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		},
		CreateFeedback:   echo,
		GetFeedback:      echo,
		StartAnalysis:    echo,
		GetAnalysis:      echo,
		AnalysisEvents:   echo,
		AnswerQuestion:   echo,
		PassToUser:       echo,
		CreateFollowUp:   echo,
		MarkFollowUpCopy: echo,
		TestConnection:   echo,
		GetSettings:      echo,
		PutSettings:      echo,
		PutCredential:    echo,
	})
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router := newTestRouter(60)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(mw.RequestIDHeader))
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"), "health is not rate limited")
}

func TestRouter_RoutesCaptureParams(t *testing.T) {
	router := newTestRouter(60)

	tests := []struct {
		method string
		path   string
		want   map[string]string
	}{
		{"POST", "/api/v1/feedback", map[string]string{}},
		{"GET", "/api/v1/feedback/fb-1", map[string]string{"feedbackID": "fb-1"}},
		{"POST", "/api/v1/feedback/fb-1/analysis", map[string]string{"feedbackID": "fb-1"}},
		{"GET", "/api/v1/feedback/fb-1/analysis", map[string]string{"feedbackID": "fb-1"}},
		{"GET", "/api/v1/feedback/fb-1/analysis/events", map[string]string{"feedbackID": "fb-1"}},
		{"POST", "/api/v1/feedback/fb-1/analysis/questions/q1/answer", map[string]string{"feedbackID": "fb-1", "questionID": "q1"}},
		{"POST", "/api/v1/feedback/fb-1/analysis/questions/q1/pass", map[string]string{"feedbackID": "fb-1", "questionID": "q1"}},
		{"POST", "/api/v1/feedback/fb-1/analysis/follow-ups", map[string]string{"feedbackID": "fb-1"}},
		{"POST", "/api/v1/feedback/fb-1/analysis/follow-ups/a1/copied", map[string]string{"feedbackID": "fb-1", "artifactID": "a1"}},
		{"POST", "/api/v1/ai/test-connection", map[string]string{}},
		{"GET", "/api/v1/ai/settings", map[string]string{}},
		{"PUT", "/api/v1/ai/settings", map[string]string{}},
		{"PUT", "/api/v1/ai/credentials/openai", map[string]string{"provider": "openai"}},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			var got map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			for k, v := range tt.want {
				assert.Equal(t, v, got[k], k)
			}
			assert.Equal(t, "60", w.Header().Get("X-RateLimit-Limit"))
		})
	}
}

func TestRouter_UnwiredHandlerIsNotImplemented(t *testing.T) {
	router := newTestRouter(60)

	req := httptest.NewRequest("GET", "/api/v1/ai/models", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NOT_IMPLEMENTED", body["error"].(map[string]any)["code"])
}

func TestRouter_RateLimited(t *testing.T) {
	router := newTestRouter(1)

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest("GET", "/api/v1/ai/settings", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, "request %d", i)
	}
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(60)

	req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(60)

	req := httptest.NewRequest("DELETE", "/api/v1/ai/settings", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := api.NewRouter(api.Dependencies{
		CORS:           api.NewCORS([]string{"https://admin.example.com"}),
		StartAnalysis:  echo,
		HealthHandler:  echo,
		TestConnection: echo,
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/feedback/fb-1/analysis", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://admin.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
