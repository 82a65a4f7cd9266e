package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/feedlens/internal/api/middleware"
	"github.com/kiranshivaraju/feedlens/internal/api/response"
	"github.com/rs/cors"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	CORS      *cors.Cors
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	CreateFeedback http.HandlerFunc
	ListFeedback   http.HandlerFunc
	GetFeedback    http.HandlerFunc

	StartAnalysis    http.HandlerFunc
	GetAnalysis      http.HandlerFunc
	AnalysisEvents   http.HandlerFunc
	AnswerQuestion   http.HandlerFunc
	PassToUser       http.HandlerFunc
	CreateFollowUp   http.HandlerFunc
	MarkFollowUpCopy http.HandlerFunc

	TestConnection http.HandlerFunc
	ListModels     http.HandlerFunc
	GetSettings    http.HandlerFunc
	PutSettings    http.HandlerFunc
	PutCredential  http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	if deps.CORS != nil {
		r.Use(deps.CORS.Handler)
	}

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Post("/api/v1/feedback", orNotImplemented(deps.CreateFeedback))
		r.Get("/api/v1/feedback", orNotImplemented(deps.ListFeedback))

		r.Route("/api/v1/feedback/{feedbackID}", func(r chi.Router) {
			r.Get("/", orNotImplemented(deps.GetFeedback))

			r.Post("/analysis", orNotImplemented(deps.StartAnalysis))
			r.Get("/analysis", orNotImplemented(deps.GetAnalysis))
			r.Get("/analysis/events", orNotImplemented(deps.AnalysisEvents))
			r.Post("/analysis/questions/{questionID}/answer", orNotImplemented(deps.AnswerQuestion))
			r.Post("/analysis/questions/{questionID}/pass", orNotImplemented(deps.PassToUser))
			r.Post("/analysis/follow-ups", orNotImplemented(deps.CreateFollowUp))
			r.Post("/analysis/follow-ups/{artifactID}/copied", orNotImplemented(deps.MarkFollowUpCopy))
		})

		r.Post("/api/v1/ai/test-connection", orNotImplemented(deps.TestConnection))
		r.Get("/api/v1/ai/models", orNotImplemented(deps.ListModels))
		r.Get("/api/v1/ai/settings", orNotImplemented(deps.GetSettings))
		r.Put("/api/v1/ai/settings", orNotImplemented(deps.PutSettings))
		r.Put("/api/v1/ai/credentials/{provider}", orNotImplemented(deps.PutCredential))
	})

	return r
}

// NewCORS allows the admin UI on the given origins to call the API and read
// the request id and rate limit headers.
func NewCORS(origins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", mw.RequestIDHeader},
		ExposedHeaders: []string{mw.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:         300,
	})
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
