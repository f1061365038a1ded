// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel string `mapstructure:"LOG_LEVEL"`
	DBURL    string `mapstructure:"DB_URL"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`

	// Absence of the secret disables signature verification. That is the
	// legacy insecure-by-default fallback; a warning is logged at startup.
	WebhookSecret string `mapstructure:"WEBHOOK_SECRET"`

	// Optional token for the manual repository sync path.
	GithubToken string `mapstructure:"GITHUB_TOKEN"`

	OllamaBaseURL string        `mapstructure:"OLLAMA_BASE_URL"`
	CodeModel     string        `mapstructure:"CODE_MODEL"`
	CommitModel   string        `mapstructure:"COMMIT_MODEL"`
	AgentTimeout  time.Duration `mapstructure:"AGENT_TIMEOUT"`

	PollInterval   time.Duration `mapstructure:"POLL_INTERVAL"`
	HealthInterval time.Duration `mapstructure:"HEALTH_INTERVAL"`
	AnalysisWindow time.Duration `mapstructure:"ANALYSIS_WINDOW"`

	// A commit stops being retried for a backend after this many failed
	// interactions for that backend.
	MaxAnalysisAttempts int `mapstructure:"MAX_ANALYSIS_ATTEMPTS"`

	EnableAgents            bool `mapstructure:"ENABLE_AGENTS"`
	EnableWebhookProcessing bool `mapstructure:"ENABLE_WEBHOOK_PROCESSING"`
}

// LoadConfig reads configuration from a .env file and/or environment variables.
func LoadConfig() (*Config, error) {
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_ADDR", ":8090")
	viper.SetDefault("OLLAMA_BASE_URL", "http://localhost:11434")
	viper.SetDefault("CODE_MODEL", "codellama:7b")
	viper.SetDefault("COMMIT_MODEL", "llama2:7b")
	viper.SetDefault("AGENT_TIMEOUT", "60s")
	viper.SetDefault("POLL_INTERVAL", "30s")
	viper.SetDefault("HEALTH_INTERVAL", "1h")
	viper.SetDefault("ANALYSIS_WINDOW", "24h")
	viper.SetDefault("MAX_ANALYSIS_ATTEMPTS", 5)
	viper.SetDefault("ENABLE_AGENTS", true)
	viper.SetDefault("ENABLE_WEBHOOK_PROCESSING", true)

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL is a required configuration field")
	}
	if cfg.PollInterval <= 0 {
		return nil, errors.New("POLL_INTERVAL must be a positive duration")
	}
	if cfg.MaxAnalysisAttempts < 1 {
		return nil, errors.New("MAX_ANALYSIS_ATTEMPTS must be at least 1")
	}

	return &cfg, nil
}
