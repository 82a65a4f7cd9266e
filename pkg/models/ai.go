// Package models contains shared data models used across the Feedlens codebase.
package models

import (
	"context"
	"time"
)

// AIProvider is the core interface that all AI integrations must implement.
// Never call specific AI providers directly; always inject this interface.
type AIProvider interface {
	// Analyze diagnoses a feedback report. It fails only on transport, auth or
	// credential problems; unparseable model output yields a degraded result.
	Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error)
	// TestConnection checks reachability and credentials. It never returns an error.
	TestConnection(ctx context.Context) ConnectionResult
	// BuildFollowUpPrompt renders a remediation prompt for a finished diagnosis.
	BuildFollowUpPrompt(report FeedbackReport, result AnalysisResult) string
	// Kind returns the provider identifier (e.g., "ollama", "openai").
	Kind() ProviderKind
	// Model returns the concrete model the provider talks to.
	Model() string
}

// AnalyzeRequest is the input to an AI analysis operation.
type AnalyzeRequest struct {
	Report FeedbackReport
	// PreviousQuestions holds questions that already carry an answer.
	PreviousQuestions []ClarifyingQuestion
	Options           AnalyzeOptions
}

// AnalyzeOptions tunes a single analysis call.
type AnalyzeOptions struct {
	MaxTokens int
	Round     int
	MaxRounds int
}

// AnalyzeResponse is the canonical output of every provider.
type AnalyzeResponse struct {
	Result      *AnalysisResult
	RawResponse string
	Questions   []ClarifyingQuestion
	TokenUsage  *TokenUsage
	Model       string
}

// ConnectionResult reports the outcome of a connectivity check.
type ConnectionResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	LatencyMs *int64 `json:"latencyMs,omitempty"`
	ModelInfo string `json:"modelInfo,omitempty"`
}

// InstalledModel is a model available on the local inference server.
type InstalledModel struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}
