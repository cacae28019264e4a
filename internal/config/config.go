package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the ordering voice service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	Timezone      string
	PublicBaseURL string

	RedisURL        string
	OverridesTTLMin int

	MenuPath     string
	DeliveryPath string
	PromptsPath  string
	CustomerCSV  string

	AdminUser   string
	AdminPass   string
	RecordCalls bool

	OpenAIAPIKey string
	TTSModel     string
	TTSVoice     string

	FallbackPhone   string
	CallerID        string
	TwilioAuthToken string

	OrdersLogPath string
	StatusLogPath string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "sara"),
		Timezone:         envOrDefault("TZ", "Europe/Amsterdam"),
		PublicBaseURL:    envTrimmed("PUBLIC_BASE_URL"),
		RedisURL:         envTrimmed("REDIS_URL"),
		OverridesTTLMin:  180,
		MenuPath:         envOrDefault("MENU_PATH", "config/menu.json"),
		DeliveryPath:     envOrDefault("CONFIG_DELIVERY", "config/delivery.json"),
		PromptsPath:      envOrDefault("PROMPTS_PATH", "config/prompts_order_nl.json"),
		CustomerCSV:      envOrDefault("CUSTOMER_CSV", "config/customers.csv"),
		AdminUser:        envOrDefault("ADMIN_USER", "admin"),
		AdminPass:        envOrDefault("ADMIN_PASS", "admin"),
		OpenAIAPIKey:     envTrimmed("OPENAI_API_KEY"),
		TTSModel:         envOrDefault("TTS_MODEL", "gpt-4o-mini-tts"),
		TTSVoice:         envOrDefault("TTS_VOICE", "marin"),
		FallbackPhone:    envTrimmed("FALLBACK_PHONE"),
		CallerID:         envTrimmed("CALLER_ID"),
		TwilioAuthToken:  envTrimmed("TWILIO_AUTH_TOKEN"),
		OrdersLogPath:    envOrDefault("ORDERS_LOG_PATH", "data/orders.jsonl"),
		StatusLogPath:    envOrDefault("STATUS_LOG_PATH", "data/call_status.jsonl"),
		ShutdownTimeout:  15 * time.Second,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.OverridesTTLMin, err = intFromEnv("OVERRIDES_TTL_MIN", cfg.OverridesTTLMin)
	if err != nil {
		return Config{}, err
	}
	cfg.RecordCalls, err = boolFromEnv("RECORD_CALLS", false)
	if err != nil {
		return Config{}, err
	}

	if cfg.PublicBaseURL != "" && !strings.HasPrefix(cfg.PublicBaseURL, "http") {
		cfg.PublicBaseURL = "https://" + cfg.PublicBaseURL
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	if cfg.OverridesTTLMin < 1 || cfg.OverridesTTLMin > 720 {
		return Config{}, fmt.Errorf("OVERRIDES_TTL_MIN must be between 1 and 720")
	}
	if cfg.ShutdownTimeout < time.Second {
		return Config{}, fmt.Errorf("APP_SHUTDOWN_TIMEOUT must be at least 1s")
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

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
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
