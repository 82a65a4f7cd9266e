package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kiranshivaraju/feedlens/internal/api/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestDataEnvelopes(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter, any)
		status int
	}{
		{"json", response.JSON, http.StatusOK},
		{"created", response.Created, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w, map[string]string{"feedbackId": "fb-1"})

			assert.Equal(t, tt.status, w.Code)
			data := decode(t, w)["data"].(map[string]any)
			assert.Equal(t, "fb-1", data["feedbackId"])
		})
	}
}

func TestCollection(t *testing.T) {
	w := httptest.NewRecorder()
	items := []map[string]string{{"id": "fb-1"}, {"id": "fb-2"}}

	response.Collection(w, items, response.Page(1, 2, 5))

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["data"].([]any), 2)
	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(1), meta["page"])
	assert.Equal(t, float64(2), meta["limit"])
	assert.Equal(t, float64(5), meta["total"])
	assert.Equal(t, true, meta["hasNext"])
}

func TestPage(t *testing.T) {
	assert.True(t, response.Page(1, 20, 21).HasNext)
	assert.False(t, response.Page(2, 20, 21).HasNext)
	assert.False(t, response.Page(1, 20, 20).HasNext)
	assert.False(t, response.Page(1, 20, 0).HasNext)
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	response.Error(w, http.StatusBadGateway, "RATE_LIMITED", "provider rate limit", map[string]bool{"retryable": true})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	errBody := decode(t, w)["error"].(map[string]any)
	assert.Equal(t, "RATE_LIMITED", errBody["code"])
	assert.Equal(t, "provider rate limit", errBody["message"])
	assert.Equal(t, true, errBody["details"].(map[string]any)["retryable"])
}

func TestError_OmitsNilDetails(t *testing.T) {
	w := httptest.NewRecorder()
	response.Error(w, http.StatusNotFound, "NOT_FOUND", "analysis not found", nil)

	errBody := decode(t, w)["error"].(map[string]any)
	_, has := errBody["details"]
	assert.False(t, has)
}

func TestStream(t *testing.T) {
	w := httptest.NewRecorder()
	s, err := response.StartStream(w)
	require.NoError(t, err)

	require.NoError(t, s.Event("analysis", map[string]string{"status": "analyzing"}))
	require.NoError(t, s.Comment("keep-alive"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.True(t, w.Flushed)
	assert.Equal(t, "event: analysis\ndata: {\"status\":\"analyzing\"}\n\n: keep-alive\n\n", w.Body.String())
}

type plainWriter struct{ http.ResponseWriter }

func TestStream_RequiresFlusher(t *testing.T) {
	_, err := response.StartStream(plainWriter{httptest.NewRecorder()})
	assert.ErrorIs(t, err, response.ErrStreamingUnsupported)
}
