package models

import "time"

// AnalysisStatus is the state of a FeedbackAnalysis.
type AnalysisStatus string

const (
	StatusAnalyzing          AnalysisStatus = "analyzing"
	StatusNeedsClarification AnalysisStatus = "needs_clarification"
	StatusAwaitingUser       AnalysisStatus = "awaiting_user"
	StatusCompleted          AnalysisStatus = "completed"
	StatusFailed             AnalysisStatus = "failed"
)

// Confidence is the provider's self-reported certainty in a diagnosis.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// AnsweredByAdmin marks answers supplied by an operator rather than the reporter.
const AnsweredByAdmin = "admin"

// FeedbackAnalysis tracks the AI-assisted diagnosis of one feedback report.
// Exactly one exists per FeedbackID; writes replace the whole document.
type FeedbackAnalysis struct {
	ID                  string               `json:"id"`
	FeedbackID          string               `json:"feedbackId"`
	CreatedAt           time.Time            `json:"createdAt"`
	UpdatedAt           time.Time            `json:"updatedAt"`
	Provider            ProviderKind         `json:"provider"`
	ModelID             string               `json:"modelId"`
	Status              AnalysisStatus       `json:"status"`
	Result              *AnalysisResult      `json:"result,omitempty"`
	RawResponse         string               `json:"rawResponse,omitempty"`
	ClarifyingQuestions []ClarifyingQuestion `json:"clarifyingQuestions"`
	QuestionRound       int                  `json:"questionRound"`
	MaxRounds           int                  `json:"maxRounds"`
	FollowUpArtifacts   []FollowUpArtifact   `json:"followUpArtifacts"`
	TokenUsage          *TokenUsage          `json:"tokenUsage,omitempty"`
	Error               *AnalysisError       `json:"error,omitempty"`
}

// AnalysisResult is the structured diagnosis returned by a provider.
type AnalysisResult struct {
	Summary          string     `json:"summary"`
	ConfirmedFacts   []string   `json:"confirmedFacts"`
	Confidence       Confidence `json:"confidence"`
	SuggestedActions []string   `json:"suggestedActions"`
	AffectedAreas    []string   `json:"affectedAreas,omitempty"`
}

// ClarifyingQuestion is raised by a provider (or an admin) and answered later.
type ClarifyingQuestion struct {
	ID           string     `json:"id"`
	Question     string     `json:"question"`
	IsRequired   bool       `json:"isRequired"`
	Category     string     `json:"category"`
	Answer       string     `json:"answer,omitempty"`
	AnsweredBy   string     `json:"answeredBy,omitempty"`
	AnsweredAt   *time.Time `json:"answeredAt,omitempty"`
	PassedToUser bool       `json:"passedToUser,omitempty"`
}

// FollowUpArtifact is an auxiliary document generated from a diagnosis.
type FollowUpArtifact struct {
	ID          string     `json:"id"`
	GeneratedAt time.Time  `json:"generatedAt"`
	Body        string     `json:"body"`
	Copied      bool       `json:"copied"`
	CopiedAt    *time.Time `json:"copiedAt,omitempty"`
}

// TokenUsage is reported by the last successful provider call.
type TokenUsage struct {
	Input         int      `json:"input"`
	Output        int      `json:"output"`
	Total         int      `json:"total"`
	EstimatedCost *float64 `json:"estimatedCost,omitempty"`
}

// AnalysisError is populated only while Status is StatusFailed.
type AnalysisError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Retryable bool      `json:"retryable"`
	Details   string    `json:"details,omitempty"`
}

// ErrorCode is the closed set of failure kinds recorded on an analysis.
type ErrorCode string

const (
	ErrCodeInvalidAPIKey       ErrorCode = "INVALID_API_KEY"
	ErrCodeRateLimited         ErrorCode = "RATE_LIMITED"
	ErrCodeTimeout             ErrorCode = "TIMEOUT"
	ErrCodeContextTooLong      ErrorCode = "CONTEXT_TOO_LONG"
	ErrCodeParseError          ErrorCode = "PARSE_ERROR"
	ErrCodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrCodeCredentialMissing   ErrorCode = "CREDENTIAL_MISSING"
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrCodeUnknown             ErrorCode = "UNKNOWN"
)
