package Config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	DefaultVersion = "v1.0.0"
)

type Config struct {
	Env     string
	Port    string
	Version string

	Slack     SlackConfig
	LLM       LLMConfig
	Summary   SummaryConfig
	Remote    RemoteContentConfig
	OTel      OTelConfig
	RedisURL  string
	KeepAlive KeepAliveConfig
}

type SlackConfig struct {
	BotToken      string
	AppToken      string
	SigningSecret string
	Debug         bool
}

type LLMConfig struct {
	Provider     string // "openai" or "gemini"
	APIKey       string
	BaseURL      string
	Organization string
	Project      string
	Model        string
	Temperature  float64
	MaxRetries   int
}

type SummaryConfig struct {
	Language          string
	DefaultLimit      int
	TriggerLiteral    string
	LookupConcurrency int
}

type RemoteContentConfig struct {
	MaxBytes       int
	TimeoutSeconds int
	// per summary request
	MaxFetches    int
	BudgetSeconds int
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

type KeepAliveConfig struct {
	URL      string
	Schedule string
}

// Load reads the configuration from the environment. Outside production the usual
// dotenv files are loaded first; variables already set in the environment win.
func Load() (Config, error) {
	if getEnv("APP_ENV", "development") != "production" {
		for _, envFile := range []string{".env.local", ".env", ".env.development.local", ".env.development"} {
			_ = godotenv.Load(envFile)
		}
	}

	provider := strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI))

	cfg := Config{
		Env:     getEnv("APP_ENV", "development"),
		Port:    getEnv("PORT", "3000"),
		Version: VersionFromEnv(),
		Slack: SlackConfig{
			BotToken:      getEnv("SLACK_BOT_TOKEN", ""),
			AppToken:      getEnv("SLACK_APP_TOKEN", ""),
			SigningSecret: getEnv("SLACK_SIGNING_SECRET", ""),
			Debug:         getEnvBool("SLACK_DEBUG", false),
		},
		LLM: LLMConfig{
			Provider:     provider,
			APIKey:       llmAPIKey(provider),
			BaseURL:      getEnv("LLM_BASE_URL", ""),
			Organization: getEnv("OPENAI_ORGANIZATION_ID", ""),
			Project:      getEnv("OPENAI_PROJECT_ID", ""),
			Model:        getEnv("LLM_MODEL", defaultModel(provider)),
			Temperature:  getEnvFloat("LLM_TEMPERATURE", 0.5),
			MaxRetries:   getEnvInt("LLM_MAX_RETRIES", 2),
		},
		Summary: SummaryConfig{
			Language:          getEnv("SUMMARY_LANGUAGE", "Korean"),
			DefaultLimit:      getEnvInt("DEFAULT_LIMIT", 10),
			TriggerLiteral:    getEnv("TRIGGER_LITERAL", "!summarize"),
			LookupConcurrency: getEnvInt("USER_LOOKUP_CONCURRENCY", 1),
		},
		Remote: RemoteContentConfig{
			MaxBytes:       getEnvInt("REMOTE_CONTENT_MAX_BYTES", 20000),
			TimeoutSeconds: getEnvInt("REMOTE_CONTENT_TIMEOUT_SECONDS", 10),
			MaxFetches:     getEnvInt("REMOTE_CONTENT_MAX_FETCHES", 5),
			BudgetSeconds:  getEnvInt("REMOTE_CONTENT_BUDGET_SECONDS", 30),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "slack-thread-summarizer"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		RedisURL: getEnv("REDIS_URL", ""),
		KeepAlive: KeepAliveConfig{
			URL:      getEnv("DEPLOYMENT_BASE_URI", ""),
			Schedule: getEnv("KEEPALIVE_SCHEDULE", "@every 5m"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Slack.BotToken == "" {
		return fmt.Errorf("SLACK_BOT_TOKEN is required")
	}
	if !c.Slack.SocketMode() && c.Slack.SigningSecret == "" {
		return fmt.Errorf("SLACK_APP_TOKEN or SLACK_SIGNING_SECRET is required")
	}
	switch c.LLM.Provider {
	case ProviderOpenAI:
		if c.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for provider %q", c.LLM.Provider)
		}
	case ProviderGemini:
		if c.LLM.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for provider %q", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.Provider)
	}
	if c.Summary.DefaultLimit <= 0 {
		return fmt.Errorf("DEFAULT_LIMIT must be positive, got %d", c.Summary.DefaultLimit)
	}
	if strings.TrimSpace(c.Summary.TriggerLiteral) == "" {
		return fmt.Errorf("TRIGGER_LITERAL must not be blank")
	}
	return nil
}

// VersionFromEnv is the version string reported by --version.
func VersionFromEnv() string {
	return getEnv("BOT_VERSION", DefaultVersion)
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// SocketMode reports whether events arrive over a Socket Mode websocket instead of
// the HTTP Events API.
func (c SlackConfig) SocketMode() bool {
	return c.AppToken != ""
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c KeepAliveConfig) Enabled() bool {
	return c.URL != ""
}

func llmAPIKey(provider string) string {
	if provider == ProviderGemini {
		return getEnv("GEMINI_API_KEY", "")
	}
	return getEnv("OPENAI_API_KEY", "")
}

func defaultModel(provider string) string {
	if provider == ProviderGemini {
		return "gemini-2.5-flash"
	}
	return "gpt-4o"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
