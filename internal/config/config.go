package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the guidance gateway service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	ChannelSecret      string
	ChannelAccessToken string
	ChannelAPIURL      string

	LLMMode    string
	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string

	MemoryDriver string
	DatabaseURL  string
	HistoryLimit int

	IndexDir     string
	RetrieveTopK int

	GenerationTimeout time.Duration
	RetrievalTimeout  time.Duration

	MenuAfterReply bool
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:           envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "guides"),
		ChannelSecret:      stringsTrimSpace("CHANNEL_SECRET"),
		ChannelAccessToken: stringsTrimSpace("CHANNEL_ACCESS_TOKEN"),
		ChannelAPIURL:      envOrDefault("CHANNEL_API_URL", "https://api.line.me/v2/bot"),
		LLMMode:            envOrDefault("LLM_MODE", "auto"),
		LLMAPIKey:          stringsTrimSpace("LLM_API_KEY"),
		// Groq speaks the OpenAI protocol; any compatible endpoint works here.
		LLMBaseURL:        envOrDefault("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
		LLMModel:          envOrDefault("LLM_MODEL", "llama-3.3-70b-versatile"),
		MemoryDriver:      envOrDefault("MEMORY_DRIVER", "auto"),
		DatabaseURL:       stringsTrimSpace("DATABASE_URL"),
		HistoryLimit:      8,
		IndexDir:          envOrDefault("INDEX_DIR", "indexes"),
		RetrieveTopK:      3,
		GenerationTimeout: 30 * time.Second,
		RetrievalTimeout:  5 * time.Second,
		ShutdownTimeout:   15 * time.Second,
		MenuAfterReply:    false,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerationTimeout, err = durationFromEnv("APP_GENERATION_TIMEOUT", cfg.GenerationTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.RetrievalTimeout, err = durationFromEnv("APP_RETRIEVAL_TIMEOUT", cfg.RetrievalTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryLimit, err = intFromEnv("APP_HISTORY_LIMIT", cfg.HistoryLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.RetrieveTopK, err = intFromEnv("APP_RETRIEVE_TOP_K", cfg.RetrieveTopK)
	if err != nil {
		return Config{}, err
	}
	cfg.MenuAfterReply, err = boolFromEnv("APP_MENU_AFTER_REPLY", cfg.MenuAfterReply)
	if err != nil {
		return Config{}, err
	}

	if cfg.ChannelSecret == "" {
		return Config{}, fmt.Errorf("CHANNEL_SECRET is required")
	}
	if cfg.ChannelAccessToken == "" {
		return Config{}, fmt.Errorf("CHANNEL_ACCESS_TOKEN is required")
	}
	if cfg.HistoryLimit <= 0 {
		return Config{}, fmt.Errorf("APP_HISTORY_LIMIT must be positive")
	}
	if cfg.RetrieveTopK <= 0 {
		return Config{}, fmt.Errorf("APP_RETRIEVE_TOP_K must be positive")
	}
	if cfg.GenerationTimeout < time.Second {
		return Config{}, fmt.Errorf("APP_GENERATION_TIMEOUT must be at least 1s")
	}
	if cfg.RetrievalTimeout < 100*time.Millisecond {
		return Config{}, fmt.Errorf("APP_RETRIEVAL_TIMEOUT must be at least 100ms")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return trimSpace(os.Getenv(key))
}

func trimSpace(v string) string {
	for len(v) > 0 && (v[0] == ' ' || v[0] == '\n' || v[0] == '\t' || v[0] == '\r') {
		v = v[1:]
	}
	for len(v) > 0 {
		c := v[len(v)-1]
		if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			v = v[:len(v)-1]
			continue
		}
		break
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
