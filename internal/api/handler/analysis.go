package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/feedlens/internal/ai"
	"github.com/kiranshivaraju/feedlens/internal/api/response"
	"github.com/kiranshivaraju/feedlens/pkg/models"
)

// Analyzer is the clarification workflow the analysis handlers drive.
// Satisfied by *ai.AnalysisService.
type Analyzer interface {
	Get(ctx context.Context, feedbackID string) (*models.FeedbackAnalysis, error)
	StartOrContinue(ctx context.Context, feedbackID, clarification string) (*models.FeedbackAnalysis, error)
	SubmitAnswer(ctx context.Context, p ai.SubmitAnswerParams) (*models.FeedbackAnalysis, error)
	PassQuestionToUser(ctx context.Context, feedbackID, questionID string) (*models.FeedbackAnalysis, error)
	GenerateFollowUp(ctx context.Context, feedbackID string) (*models.FollowUpArtifact, error)
	MarkFollowUpCopied(ctx context.Context, feedbackID, artifactID string) (*models.FollowUpArtifact, error)
}

// NewStartAnalysisHandler returns an http.HandlerFunc for
// POST /api/v1/feedback/{feedbackID}/analysis. The body is optional.
func NewStartAnalysisHandler(svc Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Clarification string `json:"clarification"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		rec, err := svc.StartOrContinue(r.Context(), chi.URLParam(r, "feedbackID"), req.Clarification)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, rec)
	}
}

// NewGetAnalysisHandler returns an http.HandlerFunc for GET /api/v1/feedback/{feedbackID}/analysis.
func NewGetAnalysisHandler(svc Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := svc.Get(r.Context(), chi.URLParam(r, "feedbackID"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, rec)
	}
}

// NewAnswerHandler returns an http.HandlerFunc for
// POST /api/v1/feedback/{feedbackID}/analysis/questions/{questionID}/answer.
func NewAnswerHandler(svc Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Answer     string `json:"answer"`
			AnsweredBy string `json:"answeredBy"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		rec, err := svc.SubmitAnswer(r.Context(), ai.SubmitAnswerParams{
			FeedbackID: chi.URLParam(r, "feedbackID"),
			QuestionID: chi.URLParam(r, "questionID"),
			Answer:     req.Answer,
			AnsweredBy: req.AnsweredBy,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, rec)
	}
}

// NewPassToUserHandler returns an http.HandlerFunc for
// POST /api/v1/feedback/{feedbackID}/analysis/questions/{questionID}/pass.
func NewPassToUserHandler(svc Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := svc.PassQuestionToUser(r.Context(), chi.URLParam(r, "feedbackID"), chi.URLParam(r, "questionID"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, rec)
	}
}

// NewFollowUpHandler returns an http.HandlerFunc for
// POST /api/v1/feedback/{feedbackID}/analysis/follow-ups.
func NewFollowUpHandler(svc Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		artifact, err := svc.GenerateFollowUp(r.Context(), chi.URLParam(r, "feedbackID"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.Created(w, artifact)
	}
}

// NewFollowUpCopiedHandler returns an http.HandlerFunc for
// POST /api/v1/feedback/{feedbackID}/analysis/follow-ups/{artifactID}/copied.
func NewFollowUpCopiedHandler(svc Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		artifact, err := svc.MarkFollowUpCopied(r.Context(), chi.URLParam(r, "feedbackID"), chi.URLParam(r, "artifactID"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, artifact)
	}
}
