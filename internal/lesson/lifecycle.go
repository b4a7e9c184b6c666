package lesson

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/itsbennie/bennie/internal/mailer"
	"github.com/itsbennie/bennie/internal/schedule"
	"github.com/itsbennie/bennie/internal/storage"
)

// SendWelcome emails a new user the welcome message with their onboarding
// link and send days.
func (p *Pipeline) SendWelcome(ctx context.Context, userID string) error {
	prof, err := p.d.Profiles.Get(userID)
	if err != nil {
		return err
	}
	log := p.d.Logger.With("user_id", userID, "email_type", TypeWelcome)

	var link string
	if p.d.OnboardLink != nil {
		if link, err = p.d.OnboardLink(userID); err != nil {
			return fmt.Errorf("building onboarding link: %w", err)
		}
	}
	records, err := p.d.Store.Schedules(userID)
	if err != nil {
		return fmt.Errorf("loading schedules for %s: %w", userID, err)
	}

	content, err := mailer.Welcome(prof.Name, prof.Language, link, schedule.Describe(schedule.FromRecords(records)))
	if err != nil {
		return err
	}
	return p.sendLifecycle(ctx, log, userID, TypeWelcome, content, mailer.Address{Email: prof.Email, Name: prof.Name})
}

// SendExit emails the goodbye message. It is sent after the user has been
// deactivated, so inactive profiles are expected.
func (p *Pipeline) SendExit(ctx context.Context, userID string) error {
	prof, err := p.d.Profiles.Get(userID)
	if err != nil {
		return err
	}
	log := p.d.Logger.With("user_id", userID, "email_type", TypeExit)

	content, err := mailer.Exit(prof.Name, prof.Language)
	if err != nil {
		return err
	}
	return p.sendLifecycle(ctx, log, userID, TypeExit, content, mailer.Address{Email: prof.Email, Name: prof.Name})
}

func (p *Pipeline) sendLifecycle(ctx context.Context, log *slog.Logger, userID, typ string, content mailer.Content, to mailer.Address) error {
	res, err := p.d.Sender.Send(ctx, content.Email(to, typ))
	if err != nil {
		p.recordFailure(log, userID, typ, content.Subject, err)
		return fmt.Errorf("sending %s email: %w", typ, err)
	}
	if _, err := p.d.Store.LogEmail(storage.EmailLog{
		UserID:            userID,
		Type:              typ,
		Subject:           content.Subject,
		Status:            "sent",
		ProviderMessageID: res.MessageID,
	}); err != nil {
		log.Warn("failed to log sent email", "error", err)
	}
	log.Info("email sent")
	return nil
}
