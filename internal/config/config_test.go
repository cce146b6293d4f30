package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"CHATPILOT_PORT", "NATS_URL", "NATS_TOKEN", "CHATPILOT_DB", "LOG_LEVEL",
		"LLM_BASE_URL", "LLM_API_KEY", "LLM_MODEL",
		"CHATPILOT_FUZZY_THRESHOLD", "CHATPILOT_DEDUP_WINDOW", "CHATPILOT_DEDUP_TTL",
		"CHATPILOT_LANG_HYSTERESIS", "CHATPILOT_RECENT_LIMIT", "CHATPILOT_SUMMARY_TRIGGER",
		"CHATPILOT_SCAN_IDLE", "CHATPILOT_SCAN_ACTIVE", "CHATPILOT_ACTION_COOLDOWN",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != 8760 {
		t.Errorf("expected default port 8760, got %d", cfg.Port)
	}
	if cfg.DatabasePath != "chatpilot.db" {
		t.Errorf("expected default db path, got %s", cfg.DatabasePath)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.FuzzyThreshold != 0.7 {
		t.Errorf("expected default fuzzy threshold 0.7, got %f", cfg.FuzzyThreshold)
	}
	if cfg.DedupWindowSize != 5 {
		t.Errorf("expected default dedup window 5, got %d", cfg.DedupWindowSize)
	}
	if cfg.DedupTTL != 120*time.Second {
		t.Errorf("expected default dedup ttl 120s, got %s", cfg.DedupTTL)
	}
	if cfg.HysteresisRuns != 2 {
		t.Errorf("expected default hysteresis 2, got %d", cfg.HysteresisRuns)
	}
	if cfg.RecentLimit != 12 || cfg.SummaryTriggerLimit != 20 {
		t.Errorf("expected memory limits 12/20, got %d/%d", cfg.RecentLimit, cfg.SummaryTriggerLimit)
	}
	if cfg.ActionCooldown != 3*time.Second {
		t.Errorf("expected default action cooldown 3s, got %s", cfg.ActionCooldown)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("CHATPILOT_PORT", "9999")
	t.Setenv("NATS_URL", "nats://custom:4222")
	t.Setenv("CHATPILOT_DB", "/var/lib/chatpilot/state.db")
	t.Setenv("LLM_BASE_URL", "http://gpu-box:11434/v1")
	t.Setenv("LLM_MODEL", "mistral")
	t.Setenv("CHATPILOT_FUZZY_THRESHOLD", "0.8")
	t.Setenv("CHATPILOT_DEDUP_TTL", "90s")

	cfg := Load()

	if cfg.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Port)
	}
	if cfg.NatsURL != "nats://custom:4222" {
		t.Errorf("expected custom nats url, got %s", cfg.NatsURL)
	}
	if cfg.DatabasePath != "/var/lib/chatpilot/state.db" {
		t.Errorf("expected custom db path, got %s", cfg.DatabasePath)
	}
	if cfg.LLMBaseURL != "http://gpu-box:11434/v1" {
		t.Errorf("expected custom llm base url, got %s", cfg.LLMBaseURL)
	}
	if cfg.LLMModel != "mistral" {
		t.Errorf("expected custom llm model, got %s", cfg.LLMModel)
	}
	if cfg.FuzzyThreshold != 0.8 {
		t.Errorf("expected fuzzy threshold 0.8, got %f", cfg.FuzzyThreshold)
	}
	if cfg.DedupTTL != 90*time.Second {
		t.Errorf("expected dedup ttl 90s, got %s", cfg.DedupTTL)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("CHATPILOT_PORT", "notanumber")
	t.Setenv("CHATPILOT_FUZZY_THRESHOLD", "high")
	t.Setenv("CHATPILOT_DEDUP_TTL", "forever")

	cfg := Load()

	if cfg.Port != 8760 {
		t.Errorf("expected default port on invalid value, got %d", cfg.Port)
	}
	if cfg.FuzzyThreshold != 0.7 {
		t.Errorf("expected default threshold on invalid value, got %f", cfg.FuzzyThreshold)
	}
	if cfg.DedupTTL != 120*time.Second {
		t.Errorf("expected default ttl on invalid value, got %s", cfg.DedupTTL)
	}
}
