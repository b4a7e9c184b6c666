package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/itsbennie/bennie/internal/profile"
	"github.com/itsbennie/bennie/internal/schedule"
	"github.com/itsbennie/bennie/internal/storage"
	"github.com/itsbennie/bennie/internal/worker"
)

type PreviewResponse struct {
	UserID string   `json:"user_id"`
	Band   int      `json:"band"`
	Label  string   `json:"band_label"`
	Topic  string   `json:"topic"`
	Novel  bool     `json:"novel"`
	Recent []string `json:"recent"`
	Prompt string   `json:"prompt"`
}

type MessageResponse struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	FromBennie bool      `json:"from_bennie"`
	Evaluation bool      `json:"is_evaluation,omitempty"`
	Topic      string    `json:"topic,omitempty"`
	Novel      bool      `json:"novel,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type ReportResponse struct {
	UserID         string   `json:"user_id"`
	Summary        string   `json:"summary"`
	Replies        int      `json:"replies"`
	AverageLength  float64  `json:"average_reply_length"`
	LengthFeedback string   `json:"length_feedback"`
	EstimatedLevel int      `json:"estimated_level"`
	Semester       int      `json:"semester"`
	LevelComment   string   `json:"level_comment"`
	Vocabulary     []string `json:"vocabulary"`
	Progress       string   `json:"progress"`
}

func handleListUsers(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)
		activeOnly := r.URL.Query().Get("active") == "true"

		users, err := deps.Store.ListUsers(activeOnly, offset, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list users: %v", err)
			return
		}
		out := make([]UserResponse, 0, len(users))
		for _, u := range users {
			out = append(out, userResponse(u, nil, deps.now()))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleGetUser(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		u, err := deps.Store.GetUser(id)
		if err != nil {
			storeError(w, err, "user")
			return
		}
		records, err := deps.Store.Schedules(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load schedule: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, userResponse(u, schedule.FromRecords(records), deps.now()))
	}
}

// handlePreview shows the topic decision and prompt the next practice email
// would use, without generating or sending anything.
func handlePreview(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		plan, err := deps.Planner.Plan(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "failed to plan email: %v", err)
			return
		}
		recent := plan.Decision.Recent
		if recent == nil {
			recent = []string{}
		}
		writeJSON(w, http.StatusOK, PreviewResponse{
			UserID: id,
			Band:   plan.Profile.Band.Index,
			Label:  plan.Profile.Band.Label,
			Topic:  plan.Decision.Topic,
			Novel:  plan.Decision.Novel,
			Recent: recent,
			Prompt: plan.Prompt,
		})
	}
}

func handleMessages(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := deps.Store.GetUser(id); err != nil {
			storeError(w, err, "user")
			return
		}
		limit := parseIntParam(r, "limit", 20, 100)
		msgs, err := deps.Store.History(id, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list messages: %v", err)
			return
		}
		out := make([]MessageResponse, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, MessageResponse{
				ID:         m.ID,
				Content:    m.Content,
				FromBennie: m.FromBennie,
				Evaluation: m.IsEvaluation,
				Topic:      m.Topic,
				Novel:      m.Novel,
				CreatedAt:  m.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// handleReport returns the weekly evaluation figures without sending.
func handleReport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		p, rep, err := deps.Reporter.Report(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to build report: %v", err)
			return
		}
		vocab := rep.Vocabulary
		if vocab == nil {
			vocab = []string{}
		}
		writeJSON(w, http.StatusOK, ReportResponse{
			UserID:         id,
			Summary:        profile.Summary(p),
			Replies:        len(rep.Replies),
			AverageLength:  rep.AverageLength,
			LengthFeedback: rep.LengthFeedback,
			EstimatedLevel: rep.Estimate.Level,
			Semester:       rep.Estimate.Semester,
			LevelComment:   rep.Estimate.Description,
			Vocabulary:     vocab,
			Progress:       rep.Progress,
		})
	}
}

// handleEnqueue queues a job of typ for the user in the URL.
func handleEnqueue(deps Deps, typ string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		u, err := deps.Store.GetUser(id)
		if err != nil {
			storeError(w, err, "user")
			return
		}
		if !u.Active {
			httpError(w, http.StatusConflict, "invalid_request_error", "user %s is unsubscribed", id)
			return
		}
		jobID, err := worker.Enqueue(deps.Store, typ, id, deps.MaxAttempts)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue job: %v", err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID, "status": "queued"})
	}
}

// handleSendDue queues practice emails for every slot due at the current
// minute. It exists for deployments that drive sends from an external cron.
func handleSendDue(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := deps.now()
		n, err := worker.EnqueueDue(deps.Store, now, deps.MaxAttempts)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue due sends: %v", err)
			return
		}
		slot := schedule.At(now)
		writeJSON(w, http.StatusOK, map[string]any{"queued": n, "day": slot.Day, "time": slot.Time})
	}
}

func handleEvaluations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := worker.EnqueueEvaluations(deps.Store, deps.now(), deps.BatchSize, deps.MaxAttempts)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue evaluations: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"queued": n})
	}
}

func handleJobCounts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := deps.Store.JobCounts()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count jobs: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, counts)
	}
}
