package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key      string
	typ      keyType
	env      string
	secret   bool
	required bool
	apply    func(cfg *Config, v any)
	extract  func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "BENNIE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.public_url", typ: kString, env: "BENNIE_SERVER_PUBLIC_URL",
		apply:   func(cfg *Config, v any) { cfg.Server.PublicURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.PublicURL },
	},
	{
		key: "storage.data_dir", typ: kString, env: "BENNIE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "generation.api_key", typ: kString, env: "BENNIE_OPENAI_API_KEY",
		secret: true, required: true,
		apply:   func(cfg *Config, v any) { cfg.Generation.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.APIKey },
	},
	{
		key: "generation.base_url", typ: kString, env: "BENNIE_GENERATION_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Generation.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.BaseURL },
	},
	{
		key: "generation.model", typ: kString, env: "BENNIE_GENERATION_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Generation.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.Model },
	},
	{
		key: "generation.max_tokens", typ: kInt, env: "BENNIE_GENERATION_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Generation.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Generation.MaxTokens },
	},
	{
		key: "generation.eval_max_tokens", typ: kInt, env: "BENNIE_GENERATION_EVAL_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Generation.EvalMaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Generation.EvalMaxTokens },
	},
	{
		key: "generation.temperature", typ: kFloat, env: "BENNIE_GENERATION_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Generation.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Generation.Temperature },
	},
	{
		key: "sendgrid.api_key", typ: kString, env: "BENNIE_SENDGRID_API_KEY",
		secret: true, required: true,
		apply:   func(cfg *Config, v any) { cfg.SendGrid.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.SendGrid.APIKey },
	},
	{
		key: "sendgrid.webhook_secret", typ: kString, env: "BENNIE_SENDGRID_WEBHOOK_SECRET",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.SendGrid.WebhookSecret = v.(string) },
		extract: func(cfg Config) any { return cfg.SendGrid.WebhookSecret },
	},
	{
		key: "sendgrid.base_url", typ: kString, env: "BENNIE_SENDGRID_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.SendGrid.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.SendGrid.BaseURL },
	},
	{
		key: "sendgrid.from_email", typ: kString, env: "BENNIE_SENDGRID_FROM_EMAIL",
		apply:   func(cfg *Config, v any) { cfg.SendGrid.FromEmail = v.(string) },
		extract: func(cfg Config) any { return cfg.SendGrid.FromEmail },
	},
	{
		key: "sendgrid.from_name", typ: kString, env: "BENNIE_SENDGRID_FROM_NAME",
		apply:   func(cfg *Config, v any) { cfg.SendGrid.FromName = v.(string) },
		extract: func(cfg Config) any { return cfg.SendGrid.FromName },
	},
	{
		key: "auth.token_secret", typ: kString, env: "BENNIE_TOKEN_SECRET",
		secret: true, required: true,
		apply:   func(cfg *Config, v any) { cfg.Auth.TokenSecret = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.TokenSecret },
	},
	{
		key: "auth.admin_token", typ: kString, env: "BENNIE_ADMIN_TOKEN",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Auth.AdminToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.AdminToken },
	},
	{
		key: "auth.token_ttl_hours", typ: kInt, env: "BENNIE_AUTH_TOKEN_TTL_HOURS",
		apply:   func(cfg *Config, v any) { cfg.Auth.TokenTTLHours = v.(int) },
		extract: func(cfg Config) any { return cfg.Auth.TokenTTLHours },
	},
	{
		key: "schedule.default_days", typ: kString, env: "BENNIE_SCHEDULE_DEFAULT_DAYS",
		apply:   func(cfg *Config, v any) { cfg.Schedule.DefaultDays = v.(string) },
		extract: func(cfg Config) any { return cfg.Schedule.DefaultDays },
	},
	{
		key: "schedule.default_time", typ: kString, env: "BENNIE_SCHEDULE_DEFAULT_TIME",
		apply:   func(cfg *Config, v any) { cfg.Schedule.DefaultTime = v.(string) },
		extract: func(cfg Config) any { return cfg.Schedule.DefaultTime },
	},
	{
		key: "schedule.batch_size", typ: kInt, env: "BENNIE_SCHEDULE_BATCH_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Schedule.BatchSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Schedule.BatchSize },
	},
	{
		key: "schedule.concurrency", typ: kInt, env: "BENNIE_SCHEDULE_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Schedule.Concurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Schedule.Concurrency },
	},
	{
		key: "schedule.tick_interval", typ: kString, env: "BENNIE_SCHEDULE_TICK_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Schedule.TickInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Schedule.TickInterval },
	},
	{
		key: "selection.history_window", typ: kInt, env: "BENNIE_SELECTION_HISTORY_WINDOW",
		apply:   func(cfg *Config, v any) { cfg.Selection.HistoryWindow = v.(int) },
		extract: func(cfg Config) any { return cfg.Selection.HistoryWindow },
	},
	{
		key: "selection.novelty_probability", typ: kFloat, env: "BENNIE_SELECTION_NOVELTY_PROBABILITY",
		apply:   func(cfg *Config, v any) { cfg.Selection.NoveltyProbability = v.(float64) },
		extract: func(cfg Config) any { return cfg.Selection.NoveltyProbability },
	},
	{
		key: "selection.keywords_file", typ: kString, env: "BENNIE_SELECTION_KEYWORDS_FILE",
		apply:   func(cfg *Config, v any) { cfg.Selection.KeywordsFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Selection.KeywordsFile },
	},
	{
		key: "worker.poll_interval", typ: kString, env: "BENNIE_WORKER_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Worker.PollInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Worker.PollInterval },
	},
	{
		key: "worker.max_attempts", typ: kInt, env: "BENNIE_WORKER_MAX_ATTEMPTS",
		apply:   func(cfg *Config, v any) { cfg.Worker.MaxAttempts = v.(int) },
		extract: func(cfg Config) any { return cfg.Worker.MaxAttempts },
	},
	{
		key: "log.level", typ: kString, env: "BENNIE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
