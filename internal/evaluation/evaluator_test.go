package evaluation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/itsbennie/bennie/internal/generation"
	"github.com/itsbennie/bennie/internal/mailer"
	"github.com/itsbennie/bennie/internal/profile"
	"github.com/itsbennie/bennie/internal/storage"
)

type mockGenerator struct {
	opts   generation.Options
	prompt string
	err    error
}

func (g *mockGenerator) Complete(_ context.Context, prompt string, opts generation.Options) (generation.Completion, error) {
	g.prompt, g.opts = prompt, opts
	if g.err != nil {
		return generation.Completion{}, g.err
	}
	return generation.Completion{Text: "Hi Ana!\nGreat week."}, nil
}

type mockSender struct {
	sent []mailer.Email
}

func (s *mockSender) Send(_ context.Context, e mailer.Email) (mailer.Result, error) {
	s.sent = append(s.sent, e)
	return mailer.Result{StatusCode: 202, MessageID: "sg-eval"}, nil
}

func setup(t *testing.T) (*storage.Store, storage.User, time.Time) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	u, err := store.CreateUser(storage.User{Email: "ana@example.com", Name: "Ana", TargetLanguage: "spanish", ProficiencyLevel: 20, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	now := time.Date(2025, 1, 12, 18, 0, 0, 0, time.UTC)
	for i, m := range []storage.Message{
		{Content: "Hola\nVocabulary:\n- gato: cat", FromBennie: true, CreatedAt: now.Add(-72 * time.Hour)},
		{Content: "Tengo un gato negro", CreatedAt: now.Add(-70 * time.Hour)},
		{Content: "Hola otra vez\nVocabulary:\n- perro: dog", FromBennie: true, CreatedAt: now.Add(-24 * time.Hour)},
		{Content: "Mi perro es grande", CreatedAt: now.Add(-20 * time.Hour)},
	} {
		m.UserID = u.ID
		if _, err := store.SaveMessage(m); err != nil {
			t.Fatalf("SaveMessage %d: %v", i, err)
		}
	}
	return store, u, now
}

func TestRun(t *testing.T) {
	store, u, now := setup(t)
	gen := &mockGenerator{}
	sender := &mockSender{}
	ev := &Evaluator{
		Store:     store,
		Profiles:  profile.NewManager(store),
		Generator: gen,
		Sender:    sender,
		Options:   generation.Options{Model: "gpt-4o", MaxTokens: 700, Temperature: 0.7},
		Now:       func() time.Time { return now },
	}

	report, err := ev.Run(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gen.opts.MaxTokens != 700 {
		t.Errorf("MaxTokens = %d, want 700", gen.opts.MaxTokens)
	}
	if !strings.Contains(gen.prompt, "(that's 2 out of 2). Current response streak: 2 days!") {
		t.Errorf("prompt progress line wrong:\n%s", gen.prompt)
	}
	if len(report.Vocabulary) != 2 || report.Vocabulary[0] != "- perro: dog" {
		t.Errorf("Vocabulary = %q, want newest email first", report.Vocabulary)
	}

	if len(sender.sent) != 1 || sender.sent[0].Subject != mailer.EvaluationSubject {
		t.Fatalf("sent = %+v", sender.sent)
	}

	// The evaluation is stored but stays out of the conversation history.
	hist, _ := store.History(u.ID, 10)
	if len(hist) != 4 {
		t.Errorf("history has %d messages, want 4 (evaluation excluded)", len(hist))
	}
	logs, _ := store.EmailLogs(u.ID, 10)
	if len(logs) != 1 || logs[0].Type != "evaluation" || logs[0].ProviderMessageID != "sg-eval" {
		t.Errorf("email logs = %+v", logs)
	}
}

func TestRun_GenerationFailure(t *testing.T) {
	store, u, now := setup(t)
	sender := &mockSender{}
	ev := &Evaluator{
		Store:     store,
		Profiles:  profile.NewManager(store),
		Generator: &mockGenerator{err: errors.New("quota")},
		Sender:    sender,
		Now:       func() time.Time { return now },
	}

	if _, err := ev.Run(context.Background(), u.ID); err == nil {
		t.Fatal("expected error")
	}
	if len(sender.sent) != 0 {
		t.Error("sent an email after generation failed")
	}
	logs, _ := store.EmailLogs(u.ID, 10)
	if len(logs) != 1 || logs[0].Status != "failed" {
		t.Errorf("email logs = %+v", logs)
	}
}

func TestReport_NoConversation(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	u, _ := store.CreateUser(storage.User{Email: "new@example.com", Name: "New", TargetLanguage: "french", ProficiencyLevel: 1, Active: true})

	ev := &Evaluator{Store: store, Profiles: profile.NewManager(store)}
	_, r, err := ev.Report(u.ID)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if r.Estimate.Description != "Just starting out!" || r.LengthFeedback != NoRepliesFeedback {
		t.Errorf("report = %+v", r)
	}
	if r.Language != "French" {
		t.Errorf("Language = %q, want display name", r.Language)
	}
}

func TestRun_InactiveUser(t *testing.T) {
	store, u, now := setup(t)
	if err := store.SetActive(u.ID, false); err != nil {
		t.Fatal(err)
	}
	gen := &mockGenerator{}
	sender := &mockSender{}
	ev := &Evaluator{
		Store:     store,
		Profiles:  profile.NewManager(store),
		Generator: gen,
		Sender:    sender,
		Now:       func() time.Time { return now },
	}

	if _, err := ev.Run(context.Background(), u.ID); !errors.Is(err, profile.ErrInactive) {
		t.Fatalf("error = %v, want ErrInactive", err)
	}
	if len(sender.sent) != 0 || gen.prompt != "" {
		t.Error("evaluation generated or sent for an unsubscribed user")
	}
}

type failingSaveStore struct {
	*storage.Store
}

func (failingSaveStore) SaveMessage(storage.Message) (storage.Message, error) {
	return storage.Message{}, errors.New("disk full")
}

func TestRun_RecordFailureAfterSend(t *testing.T) {
	store, u, now := setup(t)
	sender := &mockSender{}
	ev := &Evaluator{
		Store:     failingSaveStore{store},
		Profiles:  profile.NewManager(store),
		Generator: &mockGenerator{},
		Sender:    sender,
		Now:       func() time.Time { return now },
	}

	if _, err := ev.Run(context.Background(), u.ID); err != nil {
		t.Fatalf("Run after successful send: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Errorf("sent %d emails, want 1", len(sender.sent))
	}
	logs, _ := store.EmailLogs(u.ID, 10)
	if len(logs) != 1 || logs[0].Status != "sent" {
		t.Errorf("email logs = %+v", logs)
	}
}
