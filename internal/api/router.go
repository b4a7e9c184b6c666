package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/itsbennie/bennie/internal/evaluation"
	"github.com/itsbennie/bennie/internal/lesson"
	"github.com/itsbennie/bennie/internal/profile"
	"github.com/itsbennie/bennie/internal/schedule"
	"github.com/itsbennie/bennie/internal/storage"
	"github.com/itsbennie/bennie/internal/tokens"
	"github.com/itsbennie/bennie/internal/worker"
)

// Planner previews and delivers practice emails. Implemented by lesson.Pipeline.
type Planner interface {
	Plan(ctx context.Context, userID string) (lesson.Plan, error)
}

// Reporter analyzes a user's progress without sending. Implemented by
// evaluation.Evaluator.
type Reporter interface {
	Report(userID string) (profile.Profile, evaluation.Report, error)
}

type Deps struct {
	Store    *storage.Store
	Profiles *profile.Manager
	Tokens   *tokens.Signer
	Planner  Planner
	Reporter Reporter

	// DefaultSlots are assigned to every new user.
	DefaultSlots  []schedule.Slot
	AdminToken    string
	WebhookSecret string
	MaxAttempts   int
	BatchSize     int

	Now    func() time.Time
	Logger *slog.Logger
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// NewHandler returns the Bennie HTTP API: public signup, onboarding,
// unsubscribe and inbound-reply endpoints plus bearer-protected admin routes.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/users", handleCreateUser(deps))
		r.Post("/onboard", handleOnboard(deps))
		r.Post("/unsubscribe", handleUnsubscribe(deps))
		r.With(WebhookSecret(deps.WebhookSecret)).Post("/sendgrid-inbound", handleInbound(deps))

		r.Route("/admin", func(r chi.Router) {
			r.Use(BearerAuth(deps.AdminToken))
			r.Get("/users", handleListUsers(deps))
			r.Get("/users/{id}", handleGetUser(deps))
			r.Get("/users/{id}/preview", handlePreview(deps))
			r.Get("/users/{id}/messages", handleMessages(deps))
			r.Get("/users/{id}/report", handleReport(deps))
			r.Post("/users/{id}/send", handleEnqueue(deps, worker.TypePractice))
			r.Post("/users/{id}/evaluate", handleEnqueue(deps, worker.TypeEvaluation))
			r.Post("/send-due", handleSendDue(deps))
			r.Post("/evaluations", handleEvaluations(deps))
			r.Get("/jobs", handleJobCounts(deps))
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
