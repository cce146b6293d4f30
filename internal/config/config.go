package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port         int
	NatsURL      string
	NatsToken    string
	DatabasePath string
	LogLevel     string

	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	DriverURL string

	SystemPrompt string
	Manifest     string
	Greeting     string

	// Tuned for the OCR noise profile of the game client, exposed so
	// operators can adjust them without a rebuild.
	FuzzyThreshold  float64
	DedupWindowSize int
	DedupTTL        time.Duration
	HysteresisRuns  int

	RecentLimit         int
	SummaryTriggerLimit int

	ScanIntervalIdle   time.Duration
	ScanIntervalActive time.Duration
	ActionCooldown     time.Duration
}

func Load() Config {
	return Config{
		Port:         envInt("CHATPILOT_PORT", 8760),
		NatsURL:      envStr("NATS_URL", ""),
		NatsToken:    envStr("NATS_TOKEN", ""),
		DatabasePath: envStr("CHATPILOT_DB", "chatpilot.db"),
		LogLevel:     envStr("LOG_LEVEL", "info"),

		LLMBaseURL: envStr("LLM_BASE_URL", "http://localhost:11434/v1"),
		LLMAPIKey:  envStr("LLM_API_KEY", "ollama"),
		LLMModel:   envStr("LLM_MODEL", "llama3.1"),

		DriverURL: envStr("CHATPILOT_DRIVER_URL", "http://localhost:8761"),

		SystemPrompt: envStr("CHATPILOT_SYSTEM_PROMPT", ""),
		Manifest:     envStr("CHATPILOT_MANIFEST", ""),
		Greeting:     envStr("CHATPILOT_GREETING", ""),

		FuzzyThreshold:  envFloat("CHATPILOT_FUZZY_THRESHOLD", 0.7),
		DedupWindowSize: envInt("CHATPILOT_DEDUP_WINDOW", 5),
		DedupTTL:        envDuration("CHATPILOT_DEDUP_TTL", 120*time.Second),
		HysteresisRuns:  envInt("CHATPILOT_LANG_HYSTERESIS", 2),

		RecentLimit:         envInt("CHATPILOT_RECENT_LIMIT", 12),
		SummaryTriggerLimit: envInt("CHATPILOT_SUMMARY_TRIGGER", 20),

		ScanIntervalIdle:   envDuration("CHATPILOT_SCAN_IDLE", 1500*time.Millisecond),
		ScanIntervalActive: envDuration("CHATPILOT_SCAN_ACTIVE", 2*time.Second),
		ActionCooldown:     envDuration("CHATPILOT_ACTION_COOLDOWN", 3*time.Second),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
