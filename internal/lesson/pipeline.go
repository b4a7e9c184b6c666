// Package lesson turns a user's profile and conversation history into a
// practice email: recent topics are analyzed, the next topic is selected,
// the generation prompt is composed, and the generated text is sent and
// recorded.
package lesson

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/itsbennie/bennie/internal/composer"
	"github.com/itsbennie/bennie/internal/generation"
	"github.com/itsbennie/bennie/internal/mailer"
	"github.com/itsbennie/bennie/internal/profile"
	"github.com/itsbennie/bennie/internal/storage"
	"github.com/itsbennie/bennie/internal/topics"
)

// DefaultHistoryWindow is how many recent messages feed topic analysis.
const DefaultHistoryWindow = 20

// Email types recorded in the email log.
const (
	TypeWelcome    = "welcome"
	TypePractice   = "practice"
	TypeEvaluation = "evaluation"
	TypeExit       = "exit"
)

// ErrInactive is returned when asked to email an unsubscribed user.
var ErrInactive = profile.ErrInactive

// Store is the persistence the pipeline needs. Implemented by storage.Store.
type Store interface {
	History(userID string, limit int) ([]storage.Message, error)
	SaveMessage(m storage.Message) (storage.Message, error)
	LogEmail(l storage.EmailLog) (storage.EmailLog, error)
	Schedules(userID string) ([]storage.Schedule, error)
}

// Profiles resolves learner profiles. Implemented by profile.Manager.
type Profiles interface {
	Get(userID string) (profile.Profile, error)
}

// Generator produces email text from a prompt. Implemented by generation.Client.
type Generator interface {
	Complete(ctx context.Context, prompt string, opts generation.Options) (generation.Completion, error)
}

// Sender delivers email. Implemented by mailer.Client.
type Sender interface {
	Send(ctx context.Context, e mailer.Email) (mailer.Result, error)
}

// LinkFunc returns a signed link for userID.
type LinkFunc func(userID string) (string, error)

// Deps wires a Pipeline.
type Deps struct {
	Store     Store
	Profiles  Profiles
	Table     topics.Table
	Selector  *topics.Selector
	Generator Generator
	Sender    Sender
	// Options are passed to the generator for practice emails.
	Options       generation.Options
	HistoryWindow int
	// OnboardLink and UnsubscribeLink are optional; emails omit the link
	// when nil.
	OnboardLink     LinkFunc
	UnsubscribeLink LinkFunc
	Logger          *slog.Logger
}

// Pipeline plans and delivers emails for one user at a time. It is safe for
// concurrent use when its collaborators are.
type Pipeline struct {
	d Deps
}

// New creates a Pipeline. Table defaults to topics.DefaultTable and Selector
// to the default novelty policy.
func New(d Deps) *Pipeline {
	if d.Table == nil {
		d.Table = topics.DefaultTable()
	}
	if d.Selector == nil {
		d.Selector = topics.NewSelector(nil, topics.DefaultNoveltyProbability)
	}
	if d.HistoryWindow <= 0 {
		d.HistoryWindow = DefaultHistoryWindow
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Pipeline{d: d}
}

// Plan is the content decision for one practice email.
type Plan struct {
	Profile  profile.Profile
	Decision topics.Decision
	Prompt   string
}

// Plan loads the user's profile and history and runs topic analysis,
// selection, and prompt composition. It has no side effects.
func (p *Pipeline) Plan(ctx context.Context, userID string) (Plan, error) {
	if err := ctx.Err(); err != nil {
		return Plan{}, err
	}
	prof, err := p.d.Profiles.Get(userID)
	if err != nil {
		return Plan{}, err
	}
	msgs, err := p.d.Store.History(userID, p.d.HistoryWindow)
	if err != nil {
		return Plan{}, fmt.Errorf("loading history for %s: %w", userID, err)
	}

	recent := p.d.Table.Analyze(string(prof.Language), Entries(msgs))
	decision := p.d.Selector.Select(recent, prof.Interests)

	prompt, err := composer.Compose(composer.Input{
		Language:  string(prof.Language),
		Score:     prof.Score,
		Name:      prof.Name,
		Goal:      prof.Goal,
		Interests: prof.InterestsText,
		Topic:     decision.Topic,
		Novel:     decision.Novel,
		Recent:    decision.Recent,
	})
	if err != nil {
		return Plan{}, err
	}
	return Plan{Profile: prof, Decision: decision, Prompt: prompt}, nil
}

// Delivery is the outcome of a sent practice email.
type Delivery struct {
	Plan
	Text    string
	Message storage.Message
	Log     storage.EmailLog
}

// Deliver plans, generates, sends, and records a practice email. Generation
// and send failures are recorded as failed email logs before returning.
func (p *Pipeline) Deliver(ctx context.Context, userID string) (Delivery, error) {
	plan, err := p.Plan(ctx, userID)
	if err != nil {
		return Delivery{}, err
	}
	if !plan.Profile.Active {
		return Delivery{}, fmt.Errorf("practice email for %s: %w", userID, ErrInactive)
	}
	log := p.d.Logger.With("user_id", userID, "email_type", TypePractice)
	subject := plan.Profile.Language.Subject()

	completion, err := p.d.Generator.Complete(ctx, plan.Prompt, p.d.Options)
	if err != nil {
		p.recordFailure(log, userID, TypePractice, subject, err)
		return Delivery{}, fmt.Errorf("generating practice email: %w", err)
	}

	text := completion.Text
	email := mailer.Email{
		To:         mailer.Address{Email: plan.Profile.Email, Name: plan.Profile.Name},
		Subject:    subject,
		Text:       text,
		HTML:       mailer.TextToHTML(text),
		Categories: []string{TypePractice},
	}
	p.appendUnsubscribe(log, userID, &email)

	res, err := p.d.Sender.Send(ctx, email)
	if err != nil {
		p.recordFailure(log, userID, TypePractice, subject, err)
		return Delivery{}, fmt.Errorf("sending practice email: %w", err)
	}

	msg, err := p.d.Store.SaveMessage(storage.Message{
		UserID:          userID,
		Content:         text,
		FromBennie:      true,
		Language:        string(plan.Profile.Language),
		DifficultyLevel: plan.Profile.Score,
		Topic:           plan.Decision.Topic,
		Novel:           plan.Decision.Novel,
	})
	if err != nil {
		// Already sent: a record failure must not fail the delivery.
		log.Error("failed to record sent email", "error", err)
	}
	entry, err := p.d.Store.LogEmail(storage.EmailLog{
		UserID:            userID,
		Type:              TypePractice,
		Subject:           subject,
		Status:            "sent",
		ProviderMessageID: res.MessageID,
	})
	if err != nil {
		log.Warn("failed to log sent email", "error", err)
	}

	log.Info("practice email sent",
		"topic", plan.Decision.Topic,
		"novel", plan.Decision.Novel,
		"band", plan.Profile.Band.Index,
		"tokens", completion.Usage.TotalTokens,
	)
	return Delivery{Plan: plan, Text: text, Message: msg, Log: entry}, nil
}

func (p *Pipeline) appendUnsubscribe(log *slog.Logger, userID string, e *mailer.Email) {
	if p.d.UnsubscribeLink == nil {
		return
	}
	link, err := p.d.UnsubscribeLink(userID)
	if err != nil {
		log.Warn("could not build unsubscribe link", "error", err)
		return
	}
	e.Text += "\n\n--\nUnsubscribe: " + link
	e.HTML = strings.TrimSuffix(e.HTML, "</body></html>") +
		`<p style="font-size: 12px; color: #6b6b6b;"><a href="` + html.EscapeString(link) + `">Unsubscribe</a></p></body></html>`
}

func (p *Pipeline) recordFailure(log *slog.Logger, userID, typ, subject string, cause error) {
	log.Error("email failed", "error", cause)
	if _, err := p.d.Store.LogEmail(storage.EmailLog{
		UserID:  userID,
		Type:    typ,
		Subject: subject,
		Status:  "failed",
		Error:   cause.Error(),
	}); err != nil {
		log.Warn("failed to log email failure", "error", err)
	}
}

// Entries converts stored messages to analyzer history entries, keeping
// their newest-first order.
func Entries(msgs []storage.Message) []topics.Entry {
	entries := make([]topics.Entry, len(msgs))
	for i, m := range msgs {
		entries[i] = topics.Entry{Text: m.Content, FromSystem: m.FromBennie, At: m.CreatedAt}
	}
	return entries
}
