package store

import (
	"context"
	"errors"

	"github.com/kiranshivaraju/feedlens/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// FeedbackStore holds the immutable feedback reports.
type FeedbackStore interface {
	GetFeedback(ctx context.Context, id string) (*models.FeedbackReport, error)
	CreateFeedback(ctx context.Context, report *models.FeedbackReport) error
}

// FeedbackLister pages through feedback reports.
type FeedbackLister interface {
	ListFeedback(ctx context.Context, filter FeedbackFilter) ([]*models.FeedbackReport, int, error)
}

// FeedbackFilter narrows ListFeedback. Status matches the analysis status of
// each report; reports never analyzed have none.
type FeedbackFilter struct {
	Type   string
	Status models.AnalysisStatus
	Page   int
	Limit  int
}

// AnalysisStore holds one analysis document per feedback id. PutAnalysis
// replaces the whole document.
type AnalysisStore interface {
	GetAnalysis(ctx context.Context, feedbackID string) (*models.FeedbackAnalysis, error)
	PutAnalysis(ctx context.Context, analysis *models.FeedbackAnalysis) error
}

// SettingsStore holds the AI provider selection and the sealed provider credentials.
type SettingsStore interface {
	GetActiveProviderConfig(ctx context.Context) (models.ProviderConfig, error)
	PutProviderConfig(ctx context.Context, cfg models.ProviderConfig) error
	// GetCredential returns "" when nothing is stored for kind.
	GetCredential(ctx context.Context, kind models.ProviderKind) (string, error)
	// PutCredential stores secret for kind; an empty secret removes it.
	PutCredential(ctx context.Context, kind models.ProviderKind, secret string) error
}

// Subscriber delivers every persisted version of one analysis record to fn
// until unsubscribe is called or ctx ends.
type Subscriber interface {
	SubscribeAnalysis(ctx context.Context, feedbackID string, fn func(*models.FeedbackAnalysis)) (unsubscribe func(), err error)
}

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	FeedbackStore
	FeedbackLister
	AnalysisStore
	SettingsStore
}
