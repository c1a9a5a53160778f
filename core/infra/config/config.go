package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr   = ":8000"
	defaultWorkDir      = "work"
	defaultArtifactsDir = "artifacts"
	defaultOpenAIModel  = "gpt-4o-mini"
	defaultOllamaURL    = "http://localhost:11434"
	defaultOllamaModel  = "llama3"
	defaultEventPoll    = 500 * time.Millisecond
	defaultLimitsPath   = "config/limits.yaml"

	envListenAddr   = "LISTEN_ADDR"
	envWorkDir      = "WORK_DIR"
	envArtifactsDir = "ARTIFACTS_DIR"
	envOpenAIKey    = "OPENAI_API_KEY"
	envOpenAIModel  = "OPENAI_MODEL"
	envOllamaURL    = "OLLAMA_URL"
	envOllamaModel  = "OLLAMA_MODEL"
	envRedisURL     = "REDIS_URL"
	envNATSURL      = "NATS_URL"
	envEventPollMs  = "EVENT_POLL_MS"
	envLimitsPath   = "LIMITS_CONFIG_PATH"
	envOrigins      = "ALLOWED_ORIGINS"
)

// Config holds runtime configuration for the backend.
type Config struct {
	ListenAddr   string
	WorkDir      string
	ArtifactsDir string

	// Generator providers. An OpenAI key present at startup promotes the
	// generation stage to required for jobs that do not carry their own key.
	OpenAIKey   string
	OpenAIModel string
	OllamaURL   string
	OllamaModel string

	// Optional infrastructure. Empty means disabled.
	RedisURL string
	NATSURL  string

	// AllowedOrigins for CORS. "*" admits any origin.
	AllowedOrigins []string

	EventPollInterval time.Duration
	Limits            Limits
}

// Load returns configuration from environment variables with sane
// defaults, plus scan/bundle limits from the YAML limits file when one
// exists.
func Load() *Config {
	cfg := &Config{
		ListenAddr:        envOr(envListenAddr, defaultListenAddr),
		WorkDir:           envOr(envWorkDir, defaultWorkDir),
		ArtifactsDir:      envOr(envArtifactsDir, defaultArtifactsDir),
		OpenAIKey:         os.Getenv(envOpenAIKey),
		OpenAIModel:       envOr(envOpenAIModel, defaultOpenAIModel),
		OllamaURL:         envOr(envOllamaURL, defaultOllamaURL),
		OllamaModel:       envOr(envOllamaModel, defaultOllamaModel),
		RedisURL:          os.Getenv(envRedisURL),
		NATSURL:           os.Getenv(envNATSURL),
		EventPollInterval: defaultEventPoll,
		Limits:            DefaultLimits(),
	}
	for _, origin := range strings.Split(envOr(envOrigins, "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}
	if v := os.Getenv(envEventPollMs); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.EventPollInterval = time.Duration(ms) * time.Millisecond
		}
	}
	path := envOr(envLimitsPath, defaultLimitsPath)
	if limits, err := LoadLimits(path); err == nil && limits != nil {
		cfg.Limits = *limits
	}
	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
