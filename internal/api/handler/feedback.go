package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/feedlens/internal/api/response"
	"github.com/kiranshivaraju/feedlens/internal/store"
	"github.com/kiranshivaraju/feedlens/pkg/models"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 10000
)

// FeedbackRepository is the feedback intake store.
type FeedbackRepository interface {
	CreateFeedback(ctx context.Context, report *models.FeedbackReport) error
	GetFeedback(ctx context.Context, id string) (*models.FeedbackReport, error)
	ListFeedback(ctx context.Context, filter store.FeedbackFilter) ([]*models.FeedbackReport, int, error)
}

type createFeedbackRequest struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Context     models.FeedbackContext `json:"context"`
}

// NewCreateFeedbackHandler returns an http.HandlerFunc for POST /api/v1/feedback.
func NewCreateFeedbackHandler(repo FeedbackRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createFeedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		req.Type = strings.TrimSpace(req.Type)
		req.Title = strings.TrimSpace(req.Title)
		req.Description = strings.TrimSpace(req.Description)
		switch {
		case req.Type == "":
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "type is required", nil)
			return
		case req.Title == "":
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "title is required", nil)
			return
		case len(req.Title) > maxTitleLen:
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "title must be at most 200 characters", nil)
			return
		case req.Description == "":
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "description is required", nil)
			return
		case len(req.Description) > maxDescriptionLen:
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "description must be at most 10000 characters", nil)
			return
		}

		report := &models.FeedbackReport{
			ID:          strings.TrimSpace(req.ID),
			Type:        req.Type,
			Title:       req.Title,
			Description: req.Description,
			Context:     req.Context,
		}
		if err := repo.CreateFeedback(r.Context(), report); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				response.Error(w, http.StatusConflict, "CONFLICT", "feedback already exists", nil)
				return
			}
			writeServiceError(w, r, err)
			return
		}
		response.Created(w, report)
	}
}

// NewGetFeedbackHandler returns an http.HandlerFunc for GET /api/v1/feedback/{feedbackID}.
func NewGetFeedbackHandler(repo FeedbackRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := repo.GetFeedback(r.Context(), chi.URLParam(r, "feedbackID"))
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, string(models.ErrCodeNotFound), "feedback not found", nil)
			return
		}
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, report)
	}
}

// NewListFeedbackHandler returns an http.HandlerFunc for GET /api/v1/feedback.
// Supports ?type=, ?status=, ?page= and ?limit=.
func NewListFeedbackHandler(repo FeedbackRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := store.FeedbackFilter{
			Type:   q.Get("type"),
			Status: models.AnalysisStatus(q.Get("status")),
			Page:   queryInt(q.Get("page"), 1),
			Limit:  queryInt(q.Get("limit"), 20),
		}
		if filter.Limit > 100 {
			filter.Limit = 100
		}
		if filter.Status != "" && !validStatus(filter.Status) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "unknown status filter", nil)
			return
		}

		reports, total, err := repo.ListFeedback(r.Context(), filter)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if reports == nil {
			reports = []*models.FeedbackReport{}
		}
		response.Collection(w, reports, response.Page(filter.Page, filter.Limit, total))
	}
}

func queryInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func validStatus(s models.AnalysisStatus) bool {
	switch s {
	case models.StatusAnalyzing, models.StatusNeedsClarification, models.StatusAwaitingUser,
		models.StatusCompleted, models.StatusFailed:
		return true
	}
	return false
}
