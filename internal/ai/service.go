package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/feedlens/internal/ai/llm"
	"github.com/kiranshivaraju/feedlens/internal/analysis"
	"github.com/kiranshivaraju/feedlens/internal/config"
	"github.com/kiranshivaraju/feedlens/internal/store"
	"github.com/kiranshivaraju/feedlens/pkg/models"
)

const (
	defaultAnsweredBy = "user"

	// persistTimeout bounds writes that must land after the caller has gone away.
	persistTimeout = 5 * time.Second
)

// ProviderResolver supplies the active provider selection. It is satisfied
// by *credentials.Gateway.
type ProviderResolver interface {
	ActiveConfig(ctx context.Context) (models.ProviderConfig, error)
	ResolveProvider(ctx context.Context) (models.ResolvedProvider, error)
}

// ModelLister is implemented by providers that can enumerate local models.
type ModelLister interface {
	ListInstalledModels(ctx context.Context) ([]models.InstalledModel, error)
}

// SubmitAnswerParams holds the input to SubmitAnswer.
type SubmitAnswerParams struct {
	FeedbackID string
	QuestionID string
	Answer     string
	AnsweredBy string
}

// AnalysisService runs the clarification workflow for feedback reports.
//
// Each call is a read-modify-write of one analysis document with no locking;
// concurrent calls for the same feedback id race and the store's last write wins.
type AnalysisService struct {
	feedback    store.FeedbackStore
	analyses    store.AnalysisStore
	resolver    ProviderResolver
	newProvider ProviderFactory
	now         func() time.Time
}

// Option configures an AnalysisService.
type Option func(*AnalysisService)

// WithProviderFactory replaces NewProvider, mainly for tests.
func WithProviderFactory(f ProviderFactory) Option {
	return func(s *AnalysisService) { s.newProvider = f }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *AnalysisService) { s.now = now }
}

// NewAnalysisService creates a new AnalysisService.
func NewAnalysisService(feedback store.FeedbackStore, analyses store.AnalysisStore, resolver ProviderResolver, opts ...Option) *AnalysisService {
	s := &AnalysisService{
		feedback:    feedback,
		analyses:    analyses,
		resolver:    resolver,
		newProvider: NewProvider,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the analysis record for a feedback id.
func (s *AnalysisService) Get(ctx context.Context, feedbackID string) (*models.FeedbackAnalysis, error) {
	return s.load(ctx, feedbackID)
}

// StartOrContinue runs the next analysis round for a feedback report,
// creating the record on first use. A non-blank clarification is recorded as
// an admin-answered question before the provider is called.
//
// Provider failures are recorded on the record (status failed) and the
// original error is returned.
func (s *AnalysisService) StartOrContinue(ctx context.Context, feedbackID, clarification string) (*models.FeedbackAnalysis, error) {
	report, err := s.feedback.GetFeedback(ctx, feedbackID)
	if err != nil {
		return nil, notFound("feedback", feedbackID, err)
	}

	rec, err := s.analyses.GetAnalysis(ctx, feedbackID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		rec, err = s.newRecord(ctx, feedbackID)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("load analysis: %w", err)
	}

	now := s.now()
	if text := strings.TrimSpace(clarification); text != "" {
		rec.ClarifyingQuestions = append(rec.ClarifyingQuestions, analysis.AdminClarification(text, now))
	}

	if rec.QuestionRound >= rec.MaxRounds {
		return s.exhaust(ctx, rec)
	}
	return s.runRound(ctx, report, rec)
}

// SubmitAnswer records an answer. Once every required question is answered
// the next round starts, unless the round ceiling is reached, in which case
// the record is completed without another provider call.
func (s *AnalysisService) SubmitAnswer(ctx context.Context, p SubmitAnswerParams) (*models.FeedbackAnalysis, error) {
	answer := strings.TrimSpace(p.Answer)
	if answer == "" {
		return nil, ErrEmptyAnswer
	}

	rec, err := s.load(ctx, p.FeedbackID)
	if err != nil {
		return nil, err
	}
	i := analysis.FindQuestion(rec.ClarifyingQuestions, p.QuestionID)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, p.QuestionID)
	}

	answeredBy := strings.TrimSpace(p.AnsweredBy)
	if answeredBy == "" {
		answeredBy = defaultAnsweredBy
	}
	now := s.now()
	q := &rec.ClarifyingQuestions[i]
	q.Answer = answer
	q.AnsweredBy = answeredBy
	q.AnsweredAt = &now
	q.PassedToUser = false
	rec.UpdatedAt = now

	if !analysis.IsSatisfied(rec.ClarifyingQuestions) {
		if rec.Status == models.StatusAwaitingUser && !analysis.HasPendingUserQuestion(rec.ClarifyingQuestions) {
			rec.Status = models.StatusNeedsClarification
		}
		if err := s.analyses.PutAnalysis(ctx, rec); err != nil {
			return nil, fmt.Errorf("persist answer: %w", err)
		}
		return rec, nil
	}

	if rec.QuestionRound >= rec.MaxRounds {
		return s.exhaust(ctx, rec)
	}

	if err := s.analyses.PutAnalysis(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist answer: %w", err)
	}
	return s.StartOrContinue(ctx, p.FeedbackID, "")
}

// PassQuestionToUser hands a question to the original reporter and parks the
// record in awaiting_user until an answer arrives.
func (s *AnalysisService) PassQuestionToUser(ctx context.Context, feedbackID, questionID string) (*models.FeedbackAnalysis, error) {
	rec, err := s.load(ctx, feedbackID)
	if err != nil {
		return nil, err
	}
	i := analysis.FindQuestion(rec.ClarifyingQuestions, questionID)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, questionID)
	}

	rec.ClarifyingQuestions[i].PassedToUser = true
	rec.Status = models.StatusAwaitingUser
	rec.UpdatedAt = s.now()
	if err := s.analyses.PutAnalysis(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist pass to user: %w", err)
	}
	return rec, nil
}

// GenerateFollowUp renders a remediation prompt from the current result and
// appends it to the record's follow-up artifacts.
func (s *AnalysisService) GenerateFollowUp(ctx context.Context, feedbackID string) (*models.FollowUpArtifact, error) {
	rec, err := s.load(ctx, feedbackID)
	if err != nil {
		return nil, err
	}
	if rec.Result == nil {
		return nil, ErrNoResult
	}
	report, err := s.feedback.GetFeedback(ctx, feedbackID)
	if err != nil {
		return nil, notFound("feedback", feedbackID, err)
	}

	body := llm.BuildFollowUpPrompt(*report, *rec.Result)
	if resolved, err := s.resolver.ResolveProvider(ctx); err == nil {
		if provider, err := s.newProvider(resolved); err == nil {
			body = provider.BuildFollowUpPrompt(*report, *rec.Result)
		}
	} else {
		slog.Debug("follow-up rendered without provider", "feedback_id", feedbackID, "error", err)
	}

	now := s.now()
	artifact := models.FollowUpArtifact{
		ID:          uuid.NewString(),
		GeneratedAt: now,
		Body:        body,
	}
	rec.FollowUpArtifacts = append(rec.FollowUpArtifacts, artifact)
	rec.UpdatedAt = now
	if err := s.analyses.PutAnalysis(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist follow-up: %w", err)
	}
	return &artifact, nil
}

// MarkFollowUpCopied flags an artifact as copied by an operator.
func (s *AnalysisService) MarkFollowUpCopied(ctx context.Context, feedbackID, artifactID string) (*models.FollowUpArtifact, error) {
	rec, err := s.load(ctx, feedbackID)
	if err != nil {
		return nil, err
	}
	for i := range rec.FollowUpArtifacts {
		a := &rec.FollowUpArtifacts[i]
		if a.ID != artifactID {
			continue
		}
		if !a.Copied {
			now := s.now()
			a.Copied = true
			a.CopiedAt = &now
			rec.UpdatedAt = now
			if err := s.analyses.PutAnalysis(ctx, rec); err != nil {
				return nil, fmt.Errorf("persist follow-up copied: %w", err)
			}
		}
		out := *a
		return &out, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, artifactID)
}

// TestConnection checks the active provider. A missing credential is
// reported as an unsuccessful result rather than an error.
func (s *AnalysisService) TestConnection(ctx context.Context) (models.ConnectionResult, error) {
	resolved, err := s.resolver.ResolveProvider(ctx)
	if errors.Is(err, llm.ErrCredentialMissing) {
		return models.ConnectionResult{Success: false, Message: "API key not configured"}, nil
	}
	if err != nil {
		return models.ConnectionResult{}, err
	}
	provider, err := s.newProvider(resolved)
	if err != nil {
		return models.ConnectionResult{}, err
	}
	res := provider.TestConnection(ctx)
	slog.Info("provider connection tested", "provider", provider.Kind(), "model", provider.Model(), "success", res.Success)
	return res, nil
}

// ListInstalledModels lists the models of the active provider when it is a
// local server.
func (s *AnalysisService) ListInstalledModels(ctx context.Context) ([]models.InstalledModel, error) {
	resolved, err := s.resolver.ResolveProvider(ctx)
	if err != nil {
		return nil, err
	}
	provider, err := s.newProvider(resolved)
	if err != nil {
		return nil, err
	}
	lister, ok := provider.(ModelLister)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelListingUnsupported, provider.Kind())
	}
	return lister.ListInstalledModels(ctx)
}

func (s *AnalysisService) newRecord(ctx context.Context, feedbackID string) (*models.FeedbackAnalysis, error) {
	cfg, err := s.resolver.ActiveConfig(ctx)
	if err != nil {
		return nil, err
	}
	maxRounds := cfg.MaxRounds
	if maxRounds < 1 {
		maxRounds = config.DefaultMaxRounds
	}
	now := s.now()
	return &models.FeedbackAnalysis{
		ID:                  uuid.NewString(),
		FeedbackID:          feedbackID,
		CreatedAt:           now,
		UpdatedAt:           now,
		Provider:            cfg.Kind,
		ModelID:             cfg.ModelID,
		Status:              models.StatusAnalyzing,
		ClarifyingQuestions: []models.ClarifyingQuestion{},
		QuestionRound:       0,
		MaxRounds:           maxRounds,
		FollowUpArtifacts:   []models.FollowUpArtifact{},
	}, nil
}

// runRound performs one provider call. The analyzing state is persisted
// before the call so an interrupted round leaves a durable record.
func (s *AnalysisService) runRound(ctx context.Context, report *models.FeedbackReport, rec *models.FeedbackAnalysis) (*models.FeedbackAnalysis, error) {
	rec.QuestionRound++
	rec.Status = models.StatusAnalyzing
	rec.Error = nil
	rec.UpdatedAt = s.now()
	if err := s.analyses.PutAnalysis(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist analyzing state: %w", err)
	}

	log := slog.With("feedback_id", rec.FeedbackID, "round", rec.QuestionRound, "max_rounds", rec.MaxRounds)

	resolved, err := s.resolver.ResolveProvider(ctx)
	if err != nil {
		return s.fail(ctx, rec, err)
	}
	provider, err := s.newProvider(resolved)
	if err != nil {
		return s.fail(ctx, rec, err)
	}
	rec.Provider = provider.Kind()
	rec.ModelID = provider.Model()

	start := time.Now()
	resp, err := provider.Analyze(ctx, models.AnalyzeRequest{
		Report:            *report,
		PreviousQuestions: analysis.AnsweredQuestions(rec.ClarifyingQuestions),
		Options: models.AnalyzeOptions{
			MaxTokens: resolved.Config.MaxTokens,
			Round:     rec.QuestionRound,
			MaxRounds: rec.MaxRounds,
		},
	})
	if err != nil {
		return s.fail(ctx, rec, err)
	}

	result := llm.DegradedResult()
	if resp.Result != nil {
		result = *resp.Result
	}
	rec.Result = &result
	rec.RawResponse = resp.RawResponse
	rec.TokenUsage = resp.TokenUsage
	if resp.Model != "" {
		rec.ModelID = resp.Model
	}
	rec.ClarifyingQuestions = analysis.MergeQuestions(rec.ClarifyingQuestions, resp.Questions)

	if analysis.IsSatisfied(rec.ClarifyingQuestions) {
		rec.Status = models.StatusCompleted
	} else {
		rec.Status = models.StatusNeedsClarification
	}
	rec.UpdatedAt = s.now()
	if err := s.persistDetached(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist analysis result: %w", err)
	}

	log.Info("analysis round finished",
		"provider", rec.Provider,
		"model", rec.ModelID,
		"status", rec.Status,
		"questions", len(rec.ClarifyingQuestions),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}

// exhaust completes a record whose rounds are used up. A record that never
// produced a result cannot be completed and is left untouched.
func (s *AnalysisService) exhaust(ctx context.Context, rec *models.FeedbackAnalysis) (*models.FeedbackAnalysis, error) {
	if rec.Result == nil {
		return nil, ErrRoundsExhausted
	}
	rec.Status = models.StatusCompleted
	rec.Error = nil
	rec.UpdatedAt = s.now()
	if err := s.analyses.PutAnalysis(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist completed state: %w", err)
	}
	slog.Info("analysis completed at round limit", "feedback_id", rec.FeedbackID, "round", rec.QuestionRound)
	return rec, nil
}

func (s *AnalysisService) fail(ctx context.Context, rec *models.FeedbackAnalysis, cause error) (*models.FeedbackAnalysis, error) {
	c := llm.Classify(cause)
	now := s.now()
	rec.Status = models.StatusFailed
	rec.Error = &models.AnalysisError{
		Code:      c.Code,
		Message:   cause.Error(),
		Timestamp: now,
		Retryable: c.Retryable,
	}
	rec.UpdatedAt = now
	if err := s.persistDetached(ctx, rec); err != nil {
		slog.Error("persist failed analysis", "feedback_id", rec.FeedbackID, "error", err)
	}
	slog.Warn("analysis round failed",
		"feedback_id", rec.FeedbackID,
		"round", rec.QuestionRound,
		"error_code", c.Code,
		"retryable", c.Retryable,
		"error", cause,
	)
	return nil, cause
}

// persistDetached writes the outcome of a provider call even when ctx was
// cancelled during the call, so a round never stays analyzing.
func (s *AnalysisService) persistDetached(ctx context.Context, rec *models.FeedbackAnalysis) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	return s.analyses.PutAnalysis(ctx, rec)
}

func (s *AnalysisService) load(ctx context.Context, feedbackID string) (*models.FeedbackAnalysis, error) {
	rec, err := s.analyses.GetAnalysis(ctx, feedbackID)
	if err != nil {
		return nil, notFound("analysis", feedbackID, err)
	}
	return rec, nil
}

// notFound maps store misses onto llm.ErrNotFound so they classify as NOT_FOUND.
func notFound(what, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, llm.ErrNotFound)
	}
	return fmt.Errorf("load %s %s: %w", what, id, err)
}
