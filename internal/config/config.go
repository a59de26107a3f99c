// Package config loads process configuration from the environment.
// Everything is env-driven; there is no config file. Optional integrations
// (database, payments, manse API) degrade instead of failing startup so the
// service stays useful in development with nothing but an LLM key.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration.
type Config struct {
	Port        string
	DatabaseURL string

	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIEmbedModel string
	OpenAIBaseURL    string
	LLMTimeout       time.Duration

	TelegramBotToken      string
	TelegramWebhookSecret string
	KakaoSkillSecret      string
	CronSecret            string
	APIAuthToken          string
	PaymentWebhookSecret  string

	ManseAPIURL string

	AllowedOrigins []string
	LogLevel       string
	EnableCron     bool

	PushHourKST   int
	PushMinuteKST int
}

// Load reads the environment into a Config. Every integration key is
// optional; a missing key disables the dependent feature and the caller
// logs what is off.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIEmbedModel: getEnvOrDefault("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
		OpenAIBaseURL:    getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		LLMTimeout:       getDurationOrDefault("LLM_TIMEOUT", 25*time.Second),

		TelegramBotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookSecret: os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
		KakaoSkillSecret:      os.Getenv("KAKAO_SKILL_SECRET"),
		CronSecret:            os.Getenv("CRON_SECRET"),
		APIAuthToken:          os.Getenv("API_AUTH_TOKEN"),
		PaymentWebhookSecret:  os.Getenv("PAYMENT_WEBHOOK_SECRET"),

		ManseAPIURL: os.Getenv("MANSE_API_URL"),

		AllowedOrigins: splitList(getEnvOrDefault("ALLOWED_ORIGINS", "*")),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		EnableCron:     getBoolOrDefault("ENABLE_CRON", true),

		PushHourKST:   getIntOrDefault("PUSH_HOUR_KST", 8),
		PushMinuteKST: getIntOrDefault("PUSH_MINUTE_KST", 0),
	}

	if cfg.PushHourKST < 0 || cfg.PushHourKST > 23 {
		return nil, fmt.Errorf("PUSH_HOUR_KST out of range: %d", cfg.PushHourKST)
	}
	return cfg, nil
}

// HasDatabase reports whether persistence is configured.
func (c *Config) HasDatabase() bool { return c.DatabaseURL != "" }

// HasTelegram reports whether the Telegram sender can operate.
func (c *Config) HasTelegram() bool { return c.TelegramBotToken != "" }

// HasLLM reports whether chat completions are configured.
func (c *Config) HasLLM() bool { return c.OpenAIAPIKey != "" }

// HasManse reports whether the external pillar service is configured.
func (c *Config) HasManse() bool { return c.ManseAPIURL != "" }

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
