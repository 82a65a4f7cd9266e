package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/feedlens/internal/ai/llm"
	"github.com/kiranshivaraju/feedlens/internal/api/response"
	"github.com/kiranshivaraju/feedlens/internal/store"
	"github.com/kiranshivaraju/feedlens/pkg/models"
)

const (
	analysisEvent     = "analysis"
	eventBuffer       = 16
	keepAliveInterval = 15 * time.Second
)

// NewAnalysisEventsHandler returns an http.HandlerFunc for
// GET /api/v1/feedback/{feedbackID}/analysis/events.
//
// The stream opens with the current record, if any, followed by every
// persisted update. It ends once a completed or failed record is sent, or
// when the client goes away.
func NewAnalysisEventsHandler(svc Analyzer, sub store.Subscriber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		feedbackID := chi.URLParam(r, "feedbackID")

		// Subscribe before reading the current state so no update falls between.
		updates := make(chan *models.FeedbackAnalysis, eventBuffer)
		unsubscribe, err := sub.SubscribeAnalysis(ctx, feedbackID, func(a *models.FeedbackAnalysis) {
			select {
			case updates <- a:
			default:
				slog.Warn("analysis event dropped", "feedback_id", feedbackID, "status", a.Status)
			}
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		defer unsubscribe()

		current, err := svc.Get(ctx, feedbackID)
		if err != nil && !errors.Is(err, llm.ErrNotFound) {
			writeServiceError(w, r, err)
			return
		}

		stream, err := response.StartStream(w)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Streaming unsupported", nil)
			return
		}

		if current != nil {
			if err := stream.Event(analysisEvent, current); err != nil {
				return
			}
			if terminal(current.Status) {
				return
			}
		}

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := stream.Comment("keep-alive"); err != nil {
					return
				}
			case a := <-updates:
				if err := stream.Event(analysisEvent, a); err != nil {
					return
				}
				if terminal(a.Status) {
					return
				}
			}
		}
	}
}

func terminal(s models.AnalysisStatus) bool {
	return s == models.StatusCompleted || s == models.StatusFailed
}
