package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/itsbennie/bennie/internal/config"
	"github.com/itsbennie/bennie/internal/evaluation"
	"github.com/itsbennie/bennie/internal/generation"
	"github.com/itsbennie/bennie/internal/language"
	"github.com/itsbennie/bennie/internal/lesson"
	"github.com/itsbennie/bennie/internal/mailer"
	"github.com/itsbennie/bennie/internal/profile"
	"github.com/itsbennie/bennie/internal/schedule"
	"github.com/itsbennie/bennie/internal/storage"
	"github.com/itsbennie/bennie/internal/tokens"
	"github.com/itsbennie/bennie/internal/topics"
)

// app holds the components built from one Config. Commands that only read
// or plan (preview, users) build it without delivery; everything that sends
// mail needs the generation and SendGrid secrets.
type app struct {
	cfg       config.Config
	store     *storage.Store
	profiles  *profile.Manager
	table     topics.Table
	signer    *tokens.Signer
	pipeline  *lesson.Pipeline
	evaluator *evaluation.Evaluator
	slots     []schedule.Slot
	logger    *slog.Logger
}

func setupLogging(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}

func newApp(cfg config.Config, delivery bool) (*app, error) {
	if delivery {
		if err := cfg.RequireDelivery(); err != nil {
			return nil, err
		}
	}
	logger := slog.Default()

	slots, err := schedule.Defaults(cfg.Schedule.DefaultDays, cfg.Schedule.DefaultTime)
	if err != nil {
		return nil, fmt.Errorf("default schedule: %w", err)
	}

	table := topics.DefaultTable()
	if cfg.Selection.KeywordsFile != "" {
		if table, err = topics.LoadTableFile(cfg.Selection.KeywordsFile); err != nil {
			return nil, fmt.Errorf("loading keyword table: %w", err)
		}
	}
	if err := checkTable(table); err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	a := &app{
		cfg:      cfg,
		store:    store,
		profiles: profile.NewManager(store),
		table:    table,
		slots:    slots,
		logger:   logger,
	}

	if cfg.Auth.TokenSecret != "" {
		ttl := time.Duration(cfg.Auth.TokenTTLHours) * time.Hour
		if a.signer, err = tokens.NewSigner(cfg.Auth.TokenSecret, ttl); err != nil {
			store.Close()
			return nil, err
		}
	}

	deps := lesson.Deps{
		Store:         store,
		Profiles:      a.profiles,
		Table:         table,
		Selector:      topics.NewSelector(nil, cfg.Selection.NoveltyProbability),
		HistoryWindow: cfg.Selection.HistoryWindow,
		Options: generation.Options{
			Model:       cfg.Generation.Model,
			MaxTokens:   cfg.Generation.MaxTokens,
			Temperature: cfg.Generation.Temperature,
		},
		Logger: logger.With("component", "lesson"),
	}
	if a.signer != nil {
		deps.OnboardLink = a.link("/onboard", tokens.Onboard)
		deps.UnsubscribeLink = a.link("/unsubscribe", tokens.Unsubscribe)
	}

	a.evaluator = &evaluation.Evaluator{
		Store:    store,
		Profiles: a.profiles,
		Options: generation.Options{
			Model:       cfg.Generation.Model,
			MaxTokens:   cfg.Generation.EvalMaxTokens,
			Temperature: cfg.Generation.Temperature,
		},
		Logger: logger.With("component", "evaluation"),
	}

	if delivery {
		gen := generation.NewClientWithBaseURL(cfg.Generation.APIKey, cfg.Generation.BaseURL)
		sender, err := mailer.New(mailer.Config{
			APIKey:    cfg.SendGrid.APIKey,
			BaseURL:   cfg.SendGrid.BaseURL,
			FromEmail: cfg.SendGrid.FromEmail,
			FromName:  cfg.SendGrid.FromName,
		}, logger.With("component", "sendgrid"))
		if err != nil {
			store.Close()
			return nil, err
		}
		deps.Generator, deps.Sender = gen, sender
		a.evaluator.Generator, a.evaluator.Sender = gen, sender
	}

	a.pipeline = lesson.New(deps)
	return a, nil
}

func (a *app) link(path string, purpose tokens.Purpose) lesson.LinkFunc {
	return func(userID string) (string, error) {
		return a.signer.Link(a.cfg.Server.PublicURL, path, userID, purpose)
	}
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
	}
}

// loadApp loads configuration, installs logging, and builds the app.
func loadApp(delivery bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Log.Level)
	return newApp(cfg, delivery)
}

func parseDuration(value string, fallback time.Duration, name string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		slog.Warn("invalid duration, using default", "setting", name, "value", value, "default", fallback)
		return fallback
	}
	return d
}

// checkTable makes sure every supported language can be analyzed.
func checkTable(t topics.Table) error {
	var want []string
	for _, l := range language.All() {
		want = append(want, string(l))
	}
	if missing := t.Missing(want); len(missing) > 0 {
		return fmt.Errorf("keyword table has no keywords for %s", strings.Join(missing, ", "))
	}
	return nil
}
