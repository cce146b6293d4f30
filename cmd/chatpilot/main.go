package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/chatpilot/chatpilot/internal/api"
	"github.com/chatpilot/chatpilot/internal/bridge"
	"github.com/chatpilot/chatpilot/internal/config"
	"github.com/chatpilot/chatpilot/internal/driver"
	"github.com/chatpilot/chatpilot/internal/ingest"
	"github.com/chatpilot/chatpilot/internal/lang"
	"github.com/chatpilot/chatpilot/internal/llm"
	"github.com/chatpilot/chatpilot/internal/memory"
	"github.com/chatpilot/chatpilot/internal/nick"
	"github.com/chatpilot/chatpilot/internal/orchestrator"
	"github.com/chatpilot/chatpilot/internal/session"
	"github.com/chatpilot/chatpilot/internal/store"
	"github.com/chatpilot/chatpilot/internal/translate"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	setupLogging(cfg.LogLevel)
	logger := slog.Default()

	slog.Info("chatpilot starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Settings store
	db, err := store.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to open settings store", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("settings store ready", "path", cfg.DatabasePath)

	// Persisted operator state
	ignoreNicks, err := db.Nicks("ignore")
	if err != nil {
		slog.Error("failed to load ignore nicks", "error", err)
		os.Exit(1)
	}
	targetNicks, err := db.Nicks("target")
	if err != nil {
		slog.Error("failed to load target nicks", "error", err)
		os.Exit(1)
	}
	activeLang, err := db.ActiveLanguage()
	if err != nil {
		slog.Error("failed to load active language", "error", err)
		os.Exit(1)
	}
	paymentParams, err := db.PaymentParams()
	if err != nil {
		slog.Error("failed to load payment params", "error", err)
		os.Exit(1)
	}

	var regions orchestrator.Regions
	if _, err := db.GetJSON("regions", &regions); err != nil {
		slog.Error("failed to load capture regions", "error", err)
		os.Exit(1)
	}

	// LLM client (OpenAI-compatible, works against a local Ollama)
	replies := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, logger)
	slog.Info("llm client ready", "model", cfg.LLMModel, "base_url", cfg.LLMBaseURL)

	// Screen driver agent
	drv := driver.NewClient(cfg.DriverURL)
	slog.Info("driver client ready", "url", cfg.DriverURL)

	// Core components
	resolver := nick.NewResolver(ignoreNicks, targetNicks, cfg.FuzzyThreshold, logger)
	pipeline := ingest.New(resolver, cfg.DedupWindowSize, cfg.DedupTTL, logger)
	mem := memory.New(cfg.RecentLimit, cfg.SummaryTriggerLimit, logger)
	classifier := lang.NewClassifier(lang.NewLinguaDetector())
	switcher := lang.NewSwitcher(activeLang, cfg.HysteresisRuns, logger)
	partnership := session.NewPartnership(cfg.ActionCooldown, logger)
	payment := session.NewPayment(paymentParams, logger)

	// Command/event bridge, optionally mirrored over NATS
	br := bridge.New(logger)
	defer br.Close()
	if cfg.NatsURL != "" {
		if err := br.ConnectNATS(cfg.NatsURL, cfg.NatsToken); err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("NATS not configured, remote control disabled")
	}

	bot := orchestrator.New(
		orchestrator.Config{
			ScanIntervalIdle:   cfg.ScanIntervalIdle,
			ScanIntervalActive: cfg.ScanIntervalActive,
			SystemPrompt:       cfg.SystemPrompt,
			Manifest:           cfg.Manifest,
			Greeting:           cfg.Greeting,
		},
		regions,
		orchestrator.Deps{
			Capture:     drv,
			Locator:     drv,
			Dispatch:    drv,
			LLM:         replies,
			Translator:  translate.New(logger),
			Settings:    db,
			Pipeline:    pipeline,
			Nicks:       resolver,
			Memory:      mem,
			Classifier:  classifier,
			Switcher:    switcher,
			Partnership: partnership,
			Payment:     payment,
			Bridge:      br,
		},
		logger,
	)

	// Control API. The handler reads only the snapshot the tick
	// goroutine publishes, never live orchestrator state.
	srv := api.NewServer(cfg.Port, br, func() api.Status {
		snap := bot.Status()
		return api.Status{
			Running:        snap.Running,
			Paused:         snap.Paused,
			Partnership:    snap.Partnership,
			PaymentPhase:   snap.PaymentPhase,
			ActiveLanguage: snap.ActiveLanguage,
			Memory:         snap.Memory,
		}
	}, db)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	go bot.Run(ctx)

	slog.Info("chatpilot ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	br.Send(bridge.Command{Kind: bridge.CommandStop})
	cancel()
	slog.Info("chatpilot stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
