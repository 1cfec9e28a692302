package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every backend setting.
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	AI         AIConfig
	Storage    StorageConfig
	Transcribe TranscribeConfig
	Recommend  RecommendConfig
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports missing settings required by the selected drivers.
func (c *Config) Validate() error {
	var problems []string

	if _, err := c.Server.ListenAddr(); err != nil {
		problems = append(problems, err.Error())
	}

	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.URL == "" {
			problems = append(problems, "DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown STORE_DRIVER %q", c.Database.Driver))
	}

	switch c.Auth.Mode {
	case "dev":
	case "supabase":
		if c.Auth.SupabaseURL == "" || c.Auth.SupabaseAnonKey == "" {
			problems = append(problems, "SUPABASE_URL and SUPABASE_ANON_KEY are required when AUTH_MODE=supabase")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown AUTH_MODE %q", c.Auth.Mode))
	}

	switch c.Storage.Driver {
	case "fs":
		if c.Storage.Dir == "" {
			problems = append(problems, "BLOB_DIR is required when BLOB_DRIVER=fs")
		}
	case "s3":
		if c.Storage.Endpoint == "" || c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			problems = append(problems, "S3_ENDPOINT, S3_ACCESS_KEY and S3_SECRET_KEY are required when BLOB_DRIVER=s3")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown BLOB_DRIVER %q", c.Storage.Driver))
	}

	if c.Transcribe.Workers < 1 {
		problems = append(problems, "TRANSCRIBE_WORKERS must be at least 1")
	}
	if c.Transcribe.QueueSize < 1 {
		problems = append(problems, "TRANSCRIBE_QUEUE_SIZE must be at least 1")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port        string   `env:"PORT" envDefault:"8000"`
	CORSOrigins []string `env:"BACKEND_CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	Version     string   `env:"APP_VERSION" envDefault:"1.0.0"`
}

// ListenAddr accepts "8000", ":8000" or "127.0.0.1:8000".
func (c ServerConfig) ListenAddr() (string, error) {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8000"
	}
	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	if strings.Contains(port, ":") {
		return port, nil
	}
	return ":" + port, nil
}

// LogConfig selects zap level and encoding.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// DatabaseConfig selects the repository backend.
type DatabaseConfig struct {
	Driver string `env:"STORE_DRIVER" envDefault:"memory"`
	URL    string `env:"DATABASE_URL"`
}

// AuthConfig selects how bearer tokens are verified.
type AuthConfig struct {
	Mode            string `env:"AUTH_MODE" envDefault:"supabase"`
	SupabaseURL     string `env:"SUPABASE_URL"`
	SupabaseAnonKey string `env:"SUPABASE_ANON_KEY"`
	ServiceKey      string `env:"BACKEND_SERVICE_KEY"`
	DevUserID       string `env:"DEV_USER_ID" envDefault:"00000000-0000-0000-0000-000000000001"`
	DevUserEmail    string `env:"DEV_USER_EMAIL" envDefault:"dev@pulse.local"`
}

// AIConfig describes the chat model.
type AIConfig struct {
	APIKey              string        `env:"ARK_API_KEY"`
	AccessKey           string        `env:"ARK_ACCESS_KEY"`
	SecretKey           string        `env:"ARK_SECRET_KEY"`
	Model               string        `env:"ARK_MODEL"`
	BaseURL             string        `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region              string        `env:"ARK_REGION" envDefault:"cn-beijing"`
	Temperature         float64       `env:"ARK_TEMPERATURE" envDefault:"0.7"`
	TopP                float64       `env:"ARK_TOP_P" envDefault:"0.9"`
	MaxTokens           int           `env:"ARK_MAX_TOKENS" envDefault:"512"`
	Timeout             time.Duration `env:"AI_TIMEOUT" envDefault:"30s"`
	HistoryLimit        int           `env:"AI_HISTORY_LIMIT" envDefault:"6"`
	EmotionLLMEnabled   bool          `env:"AI_EMOTION_LLM_ENABLED" envDefault:"false"`
	EmotionHistoryLimit int           `env:"AI_EMOTION_HISTORY_LIMIT" envDefault:"6"`
}

// Enabled reports whether credentials and a model name are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds an Ark chat model from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, errors.New("ark credentials or model missing: set ARK_MODEL plus ARK_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY")
	}

	temperature := float32(c.Temperature)
	topP := float32(c.TopP)

	var maxTokens *int
	if c.MaxTokens > 0 {
		val := c.MaxTokens
		maxTokens = &val
	}

	timeout := c.Timeout
	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		Timeout:     &timeout,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
		TopP:        &topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

// StorageConfig selects where uploaded media lands.
type StorageConfig struct {
	Driver    string `env:"BLOB_DRIVER" envDefault:"fs"`
	Dir       string `env:"BLOB_DIR" envDefault:"data/uploads"`
	Endpoint  string `env:"S3_ENDPOINT"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`
	Bucket    string `env:"S3_BUCKET" envDefault:"pulse-dev"`
	UseSSL    bool   `env:"S3_USE_SSL" envDefault:"true"`
}

// TranscribeConfig controls the audio transcription workers.
type TranscribeConfig struct {
	OpenAIAPIKey  string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string        `env:"OPENAI_BASE_URL"`
	Workers       int           `env:"TRANSCRIBE_WORKERS" envDefault:"2"`
	QueueSize     int           `env:"TRANSCRIBE_QUEUE_SIZE" envDefault:"64"`
	SweepSchedule string        `env:"TRANSCRIBE_SWEEP_SCHEDULE" envDefault:"@every 5m"`
	SweepAge      time.Duration `env:"TRANSCRIBE_SWEEP_AGE" envDefault:"2m"`
}

// Enabled reports whether a Whisper key is present.
func (c TranscribeConfig) Enabled() bool {
	return c.OpenAIAPIKey != ""
}

// RecommendConfig holds the media provider credentials.
type RecommendConfig struct {
	SpotifyClientID     string        `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string        `env:"SPOTIFY_CLIENT_SECRET"`
	SpotifyMarket       string        `env:"SPOTIFY_MARKET" envDefault:"IN"`
	TMDBAPIKey          string        `env:"TMDB_API_KEY"`
	TMDBRegion          string        `env:"TMDB_REGION" envDefault:"IN"`
	Limit               int           `env:"RECOMMEND_LIMIT" envDefault:"5"`
	Timeout             time.Duration `env:"RECOMMEND_TIMEOUT" envDefault:"8s"`
}
