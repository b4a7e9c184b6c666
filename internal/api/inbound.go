package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/itsbennie/bennie/internal/mailer"
	"github.com/itsbennie/bennie/internal/storage"
)

// handleInbound stores a learner's emailed reply. SendGrid retries any
// non-2xx response, so mail that cannot be matched to a user is
// acknowledged and dropped rather than rejected.
func handleInbound(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := deps.logger().With("component", "inbound")

		in, err := mailer.ParseInbound(r)
		if errors.Is(err, mailer.ErrNoSender) {
			log.Warn("inbound email ignored", "reason", err)
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		u, err := deps.Store.GetUserByEmail(in.From)
		if errors.Is(err, storage.ErrNotFound) {
			log.Info("inbound email from unknown sender", "from", in.From)
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to look up sender: %v", err)
			return
		}
		log = log.With("user_id", u.ID)

		if strings.TrimSpace(in.Text) == "" {
			log.Info("inbound email has no reply text", "subject", in.Subject)
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}

		msg, err := deps.Store.SaveMessage(storage.Message{
			UserID:          u.ID,
			Content:         in.Text,
			Language:        u.TargetLanguage,
			DifficultyLevel: u.ProficiencyLevel,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save reply: %v", err)
			return
		}
		if err := deps.Store.TouchActivity(u.ID); err != nil {
			log.Warn("failed to record activity", "error", err)
		}
		log.Info("reply stored", "message_id", msg.ID, "chars", len(in.Text))

		writeJSON(w, http.StatusOK, map[string]string{"status": "stored", "message_id": msg.ID})
	}
}
