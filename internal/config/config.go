package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the interview voice service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string
	AllowedOrigin            string

	SpeechProvider string
	SpeechLanguage string
	BrainProvider  string

	OpenAIAPIKey          string
	OpenAIBaseURL         string
	OpenAIChatModel       string
	OpenAITranscribeModel string
	OpenAITTSModel        string
	OpenAITTSVoice        string

	AudioDelivery string
	AudioTTL      time.Duration

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "intervoice"),
		AllowedOrigin:            envOrDefault("APP_ALLOWED_ORIGIN", "*"),
		SpeechProvider:           envOrDefault("SPEECH_PROVIDER", "auto"),
		SpeechLanguage:           envOrDefault("SPEECH_LANGUAGE", "en-US"),
		BrainProvider:            envOrDefault("BRAIN_PROVIDER", "auto"),
		OpenAIAPIKey:             envTrimmed("OPENAI_API_KEY"),
		OpenAIBaseURL:            envOrDefault("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAIChatModel:          envOrDefault("OPENAI_CHAT_MODEL", "gpt-4"),
		OpenAITranscribeModel:    envOrDefault("OPENAI_TRANSCRIBE_MODEL", "whisper-1"),
		OpenAITTSModel:           envOrDefault("OPENAI_TTS_MODEL", "tts-1"),
		OpenAITTSVoice:           envOrDefault("OPENAI_TTS_VOICE", "alloy"),
		AudioDelivery:            envOrDefault("AUDIO_DELIVERY", "inline"),
		AudioTTL:                 15 * time.Minute,
		DatabaseURL:              envTrimmed("DATABASE_URL"),
		RedisAddr:                envTrimmed("REDIS_ADDR"),
		RedisPassword:            envTrimmed("REDIS_PASSWORD"),
		RedisDB:                  0,
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 10 * time.Minute,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AudioTTL, err = durationFromEnv("AUDIO_TTL", cfg.AudioTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.RedisDB, err = intFromEnv("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.AudioTTL <= 0 {
		return Config{}, fmt.Errorf("AUDIO_TTL must be positive")
	}
	if cfg.RedisDB < 0 {
		return Config{}, fmt.Errorf("REDIS_DB must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.AudioDelivery)) {
	case "inline", "stored":
	default:
		return Config{}, fmt.Errorf("AUDIO_DELIVERY must be inline or stored, got %q", cfg.AudioDelivery)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
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
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}
