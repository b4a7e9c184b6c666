package api

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/itsbennie/bennie/internal/language"
	"github.com/itsbennie/bennie/internal/leveling"
	"github.com/itsbennie/bennie/internal/profile"
	"github.com/itsbennie/bennie/internal/schedule"
	"github.com/itsbennie/bennie/internal/storage"
	"github.com/itsbennie/bennie/internal/tokens"
	"github.com/itsbennie/bennie/internal/worker"
)

type SignupRequest struct {
	Email            string `json:"email"`
	Name             string `json:"name"`
	TargetLanguage   string `json:"target_language"`
	ProficiencyLevel int    `json:"proficiency_level"`
	Interests        string `json:"topics_of_interest"`
	LearningGoal     string `json:"learning_goal"`
}

type OnboardRequest struct {
	Token             string  `json:"token"`
	Nickname          *string `json:"nickname"`
	ProficiencyLevel  *int    `json:"proficiency_level"`
	Interests         *string `json:"topics_of_interest"`
	LearningGoal      *string `json:"learning_goal"`
	TargetProficiency *string `json:"target_proficiency"`
}

type UserResponse struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	TargetLanguage   string     `json:"target_language"`
	ProficiencyLevel int        `json:"proficiency_level"`
	Band             string     `json:"band,omitempty"`
	Interests        string     `json:"topics_of_interest,omitempty"`
	LearningGoal     string     `json:"learning_goal,omitempty"`
	Active           bool       `json:"is_active"`
	Verified         bool       `json:"is_verified"`
	Schedule         string     `json:"schedule,omitempty"`
	NextSend         *time.Time `json:"next_send,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func userResponse(u storage.User, slots []schedule.Slot, now time.Time) UserResponse {
	resp := UserResponse{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.DisplayName(),
		TargetLanguage:   u.TargetLanguage,
		ProficiencyLevel: u.ProficiencyLevel,
		Interests:        u.Interests,
		LearningGoal:     u.LearningGoal,
		Active:           u.Active,
		Verified:         u.Verified,
		CreatedAt:        u.CreatedAt,
	}
	if b, err := leveling.BandFor(u.ProficiencyLevel); err == nil {
		resp.Band = b.Label
	}
	if len(slots) > 0 {
		resp.Schedule = schedule.Describe(slots)
		if u.Active {
			if next, ok := schedule.Next(slots, now); ok {
				resp.NextSend = &next
			}
		}
	}
	return resp
}

// handleCreateUser signs a learner up: it stores the user with the default
// send slots and queues the welcome email carrying the onboarding link.
func handleCreateUser(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SignupRequest
		if !decodeBody(w, r, &req) {
			return
		}

		addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid email address %q", req.Email)
			return
		}
		lang, err := language.Parse(req.TargetLanguage)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if req.ProficiencyLevel == 0 {
			req.ProficiencyLevel = leveling.MinScore
		}
		if _, err := leveling.BandFor(req.ProficiencyLevel); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		u, err := deps.Store.CreateUser(storage.User{
			Email:            strings.ToLower(addr.Address),
			Name:             strings.TrimSpace(req.Name),
			TargetLanguage:   string(lang),
			ProficiencyLevel: req.ProficiencyLevel,
			Interests:        strings.TrimSpace(req.Interests),
			LearningGoal:     strings.TrimSpace(req.LearningGoal),
			Active:           true,
		})
		if err != nil {
			storeError(w, err, "user")
			return
		}
		log := deps.logger().With("user_id", u.ID)

		if _, err := deps.Store.ReplaceSchedules(u.ID, schedule.Records(u.ID, deps.DefaultSlots)); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save schedule: %v", err)
			return
		}
		if _, err := worker.Enqueue(deps.Store, worker.TypeWelcome, u.ID, deps.MaxAttempts); err != nil {
			// The account exists; an operator can resend the welcome email.
			log.Error("failed to queue welcome email", "error", err)
		}
		log.Info("user signed up", "language", u.TargetLanguage)

		writeJSON(w, http.StatusCreated, userResponse(u, deps.DefaultSlots, deps.now()))
	}
}

// handleOnboard completes the onboarding form linked from the welcome email.
func handleOnboard(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OnboardRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Token == "" {
			req.Token = r.URL.Query().Get("token")
		}
		userID, ok := verifyToken(w, deps, req.Token, tokens.Onboard)
		if !ok {
			return
		}

		verified := true
		p, err := deps.Profiles.Apply(userID, profile.Update{
			Nickname:          req.Nickname,
			Level:             req.ProficiencyLevel,
			Interests:         req.Interests,
			LearningGoal:      req.LearningGoal,
			TargetProficiency: req.TargetProficiency,
			Verified:          &verified,
		})
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		if errors.Is(err, leveling.ErrScoreOutOfRange) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save profile: %v", err)
			return
		}
		deps.logger().Info("user onboarded", "user_id", userID)

		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "onboarded",
			"summary": profile.Summary(p),
		})
	}
}

// handleUnsubscribe deactivates the user named by an unsubscribe token and
// queues the goodbye email. Repeated calls are harmless.
func handleUnsubscribe(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			var body struct {
				Token string `json:"token"`
			}
			if !decodeBody(w, r, &body) {
				return
			}
			token = body.Token
		}
		userID, ok := verifyToken(w, deps, token, tokens.Unsubscribe)
		if !ok {
			return
		}

		u, err := deps.Store.GetUser(userID)
		if err != nil {
			storeError(w, err, "user")
			return
		}
		if !u.Active {
			writeJSON(w, http.StatusOK, map[string]string{"status": "already_unsubscribed"})
			return
		}
		if err := deps.Store.SetActive(userID, false); err != nil {
			storeError(w, err, "user")
			return
		}
		deps.Profiles.Invalidate(userID)

		log := deps.logger().With("user_id", userID)
		if _, err := worker.Enqueue(deps.Store, worker.TypeExit, userID, deps.MaxAttempts); err != nil {
			log.Error("failed to queue exit email", "error", err)
		}
		log.Info("user unsubscribed")

		writeJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
	}
}

func verifyToken(w http.ResponseWriter, deps Deps, token string, purpose tokens.Purpose) (string, bool) {
	if token == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "token is required")
		return "", false
	}
	if deps.Tokens == nil {
		httpError(w, http.StatusServiceUnavailable, "api_error", "signed links are not configured")
		return "", false
	}
	userID, err := deps.Tokens.Verify(token, purpose)
	if err != nil {
		httpError(w, http.StatusUnauthorized, "authentication_error", "%v", err)
		return "", false
	}
	return userID, true
}
