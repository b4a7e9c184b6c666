package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/itsbennie/bennie/internal/generation"
	"github.com/itsbennie/bennie/internal/mailer"
	"github.com/itsbennie/bennie/internal/profile"
	"github.com/itsbennie/bennie/internal/storage"
)

const emailType = "evaluation"

// Store is the persistence an Evaluator needs. Implemented by storage.Store.
type Store interface {
	LastMessages(userID string, fromBennie bool, limit int) ([]storage.Message, error)
	SaveMessage(m storage.Message) (storage.Message, error)
	LogEmail(l storage.EmailLog) (storage.EmailLog, error)
}

type Profiles interface {
	Get(userID string) (profile.Profile, error)
}

type Generator interface {
	Complete(ctx context.Context, prompt string, opts generation.Options) (generation.Completion, error)
}

type Sender interface {
	Send(ctx context.Context, e mailer.Email) (mailer.Result, error)
}

// Evaluator generates and sends weekly progress emails.
type Evaluator struct {
	Store     Store
	Profiles  Profiles
	Generator Generator
	Sender    Sender
	// Options are the generation settings; evaluations allow a longer
	// completion than practice emails.
	Options generation.Options
	Logger  *slog.Logger
	Now     func() time.Time
}

func (e *Evaluator) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Evaluator) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Report analyzes the user's recent conversation without sending anything.
func (e *Evaluator) Report(userID string) (profile.Profile, Report, error) {
	prof, err := e.Profiles.Get(userID)
	if err != nil {
		return profile.Profile{}, Report{}, err
	}
	emails, err := e.Store.LastMessages(userID, true, Window)
	if err != nil {
		return profile.Profile{}, Report{}, fmt.Errorf("loading bennie emails: %w", err)
	}
	replies, err := e.Store.LastMessages(userID, false, Window)
	if err != nil {
		return profile.Profile{}, Report{}, fmt.Errorf("loading replies: %w", err)
	}
	return prof, Build(prof.Name, prof.Language.Name(), emails, replies, e.now()), nil
}

// Run builds the report, generates the evaluation email, sends it, and
// records it as an evaluation message so it stays out of topic history.
func (e *Evaluator) Run(ctx context.Context, userID string) (Report, error) {
	prof, report, err := e.Report(userID)
	if err != nil {
		return Report{}, err
	}
	if !prof.Active {
		return Report{}, fmt.Errorf("evaluation for %s: %w", userID, profile.ErrInactive)
	}
	log := e.logger().With("user_id", userID, "email_type", emailType)

	completion, err := e.Generator.Complete(ctx, report.Prompt(), e.Options)
	if err != nil {
		e.recordFailure(log, userID, err)
		return Report{}, fmt.Errorf("generating evaluation: %w", err)
	}

	res, err := e.Sender.Send(ctx, mailer.Email{
		To:         mailer.Address{Email: prof.Email, Name: prof.Name},
		Subject:    mailer.EvaluationSubject,
		Text:       completion.Text,
		HTML:       mailer.TextToHTML(completion.Text),
		Categories: []string{emailType},
	})
	if err != nil {
		e.recordFailure(log, userID, err)
		return Report{}, fmt.Errorf("sending evaluation: %w", err)
	}

	if _, err := e.Store.SaveMessage(storage.Message{
		UserID:          userID,
		Content:         completion.Text,
		FromBennie:      true,
		IsEvaluation:    true,
		Language:        "english",
		DifficultyLevel: 1,
	}); err != nil {
		log.Error("failed to record sent evaluation", "error", err)
	}
	if _, err := e.Store.LogEmail(storage.EmailLog{
		UserID:            userID,
		Type:              emailType,
		Subject:           mailer.EvaluationSubject,
		Status:            "sent",
		ProviderMessageID: res.MessageID,
	}); err != nil {
		log.Warn("failed to log sent email", "error", err)
	}

	log.Info("evaluation sent", "estimated_level", report.Estimate.Level, "avg_reply_words", report.AverageLength)
	return report, nil
}

func (e *Evaluator) recordFailure(log *slog.Logger, userID string, cause error) {
	log.Error("evaluation failed", "error", cause)
	if _, err := e.Store.LogEmail(storage.EmailLog{
		UserID:  userID,
		Type:    emailType,
		Subject: mailer.EvaluationSubject,
		Status:  "failed",
		Error:   cause.Error(),
	}); err != nil {
		log.Warn("failed to log email failure", "error", err)
	}
}
