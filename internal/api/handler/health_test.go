package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	ok := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("down") })

	tests := []struct {
		name     string
		db       Pinger
		cache    Pinger
		status   int
		database string
		cacheSt  string
	}{
		{"all ok", ok, ok, http.StatusOK, "ok", "ok"},
		{"database down", down, ok, http.StatusServiceUnavailable, "degraded", "ok"},
		{"cache down", ok, down, http.StatusServiceUnavailable, "ok", "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tt.db, tt.cache).ServeHTTP(rec, newReq(t, "GET", "/api/v1/health", nil))

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				data := parseOK(t, rec, http.StatusOK)
				services := data["services"].(map[string]any)
				assert.Equal(t, tt.database, services["database"])
				assert.Equal(t, tt.cacheSt, services["cache"])
				return
			}
			e := parseErr(t, rec)
			assert.Equal(t, "DEGRADED", e.Code)
			assert.Equal(t, tt.database, e.Details["database"])
			assert.Equal(t, tt.cacheSt, e.Details["cache"])
		})
	}
}
