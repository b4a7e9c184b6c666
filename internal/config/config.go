package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Generation GenerationConfig
	SendGrid   SendGridConfig
	Auth       AuthConfig
	Schedule   ScheduleConfig
	Selection  SelectionConfig
	Worker     WorkerConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port int
	// PublicURL is the externally reachable base used in onboarding and
	// unsubscribe links.
	PublicURL string
}

type StorageConfig struct {
	DataDir string
}

// GenerationConfig configures the OpenAI-compatible chat completion endpoint.
type GenerationConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	MaxTokens     int
	EvalMaxTokens int
	Temperature   float64
}

type SendGridConfig struct {
	APIKey        string
	BaseURL       string
	FromEmail     string
	FromName      string
	WebhookSecret string
}

type AuthConfig struct {
	TokenSecret   string
	AdminToken    string
	TokenTTLHours int
}

// ScheduleConfig holds the default weekly send slots given to new users and
// the batch sizing used when fanning out sends.
type ScheduleConfig struct {
	DefaultDays  string
	DefaultTime  string
	BatchSize    int
	Concurrency  int
	TickInterval string
}

type SelectionConfig struct {
	HistoryWindow      int
	NoveltyProbability float64
	KeywordsFile       string
}

type WorkerConfig struct {
	PollInterval string
	MaxAttempts  int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:      8080,
			PublicURL: "https://itsbennie.com",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Generation: GenerationConfig{
			BaseURL:       "https://api.openai.com/v1",
			Model:         "gpt-4o",
			MaxTokens:     500,
			EvalMaxTokens: 700,
			Temperature:   0.7,
		},
		SendGrid: SendGridConfig{
			BaseURL:   "https://api.sendgrid.com",
			FromEmail: "Bennie@itsbennie.com",
			FromName:  "Bennie",
		},
		Auth: AuthConfig{
			TokenTTLHours: 72,
		},
		Schedule: ScheduleConfig{
			DefaultDays:  "0,2,4",
			DefaultTime:  "08:00",
			BatchSize:    100,
			Concurrency:  4,
			TickInterval: "1m",
		},
		Selection: SelectionConfig{
			HistoryWindow:      20,
			NoveltyProbability: 0.7,
		},
		Worker: WorkerConfig{
			PollInterval: "2s",
			MaxAttempts:  3,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON config file, environment variables,
// and the secrets file.
//
// The config file lives at $XDG_CONFIG_HOME/bennie/config.json. Secrets are
// never read from it: they come from BENNIE_* environment variables or, when
// unset, from $XDG_DATA_HOME/bennie/secrets.json.
//
// Environment variables (BENNIE_*) override file values.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()), secretsFile{path: secretsFilePath()})
}

// secretStore abstracts secret lookup for testing.
type secretStore interface {
	Get(key string) (string, error)
}

func loadWith(b ConfigBackend, secrets secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	for _, s := range specs {
		if !s.secret || s.extract(cfg).(string) != "" {
			continue
		}
		if v, err := secrets.Get(s.key); err == nil && v != "" {
			s.apply(&cfg, v)
		}
	}

	return cfg, nil
}

// RequireDelivery reports which secrets needed to generate and send email
// are missing. The preview and config commands work without them.
func (c Config) RequireDelivery() error {
	var missing []string
	for _, s := range specs {
		if !s.secret || !s.required {
			continue
		}
		if s.extract(c).(string) == "" {
			missing = append(missing, s.env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: set %s", strings.Join(missing, ", "))
	}
	return nil
}
