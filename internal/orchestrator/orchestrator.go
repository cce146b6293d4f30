// Package orchestrator runs the bot's cooperative tick loop. All
// mutable state is owned by the single Run goroutine; the outside
// world reaches it through the bridge and through injected
// collaborators.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync/atomic"
	"time"

	"github.com/chatpilot/chatpilot/internal/bridge"
	"github.com/chatpilot/chatpilot/internal/ingest"
	"github.com/chatpilot/chatpilot/internal/lang"
	"github.com/chatpilot/chatpilot/internal/memory"
	"github.com/chatpilot/chatpilot/internal/nick"
	"github.com/chatpilot/chatpilot/internal/session"
)

const (
	configBackoff  = 5 * time.Second
	restartDelay   = 5 * time.Second
	fillerInterval = 4 * time.Second

	locateConfidenceHigh = 0.9
	locateConfidenceLow  = 0.7
)

// Config is the static tick-loop configuration.
type Config struct {
	ScanIntervalIdle   time.Duration
	ScanIntervalActive time.Duration

	SystemPrompt string
	Manifest     string
	Greeting     string
}

// Deps wires the bot's sub-components and collaborators.
type Deps struct {
	Capture    Capture
	Locator    Locator
	Dispatch   Dispatcher
	LLM        ReplyGenerator
	Translator Translator
	Retriever  Retriever
	Settings   Settings

	Pipeline    *ingest.Pipeline
	Nicks       *nick.Resolver
	Memory      *memory.Memory
	Classifier  *lang.Classifier
	Switcher    *lang.Switcher
	Partnership *session.Partnership
	Payment     *session.Payment
	Bridge      *bridge.Bridge
}

// Snapshot is a point-in-time copy of the bot state, published by the
// tick goroutine for other goroutines to read. The status endpoint
// serves this instead of touching live state.
type Snapshot struct {
	Running        bool
	Paused         bool
	Partnership    bool
	PaymentPhase   string
	ActiveLanguage string
	Memory         memory.Status
}

// Bot is the orchestrator. Not safe for concurrent use; drive it from
// one goroutine and talk to it through the bridge. Snapshot is the one
// exception: it only reads the published copy.
type Bot struct {
	cfg     Config
	regions Regions
	deps    Deps

	running        bool
	paused         bool
	scanning       bool
	discardCurrent bool
	sendInFlight   bool
	pauseStart     time.Time

	ocrLanguage   string
	translationOn bool

	suggested map[string]struct{}

	snapshot atomic.Pointer[Snapshot]

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration)
	logger *slog.Logger
}

func New(cfg Config, regions Regions, deps Deps, logger *slog.Logger) *Bot {
	b := &Bot{
		cfg:         cfg,
		regions:     regions,
		deps:        deps,
		ocrLanguage: lang.CaptureLanguage(deps.Switcher.Current()),
		suggested:   make(map[string]struct{}),
		now:         time.Now,
		sleep:       sleepCtx,
		logger:      logger,
	}
	b.publishSnapshot()
	return b
}

// publishSnapshot copies the current state for other goroutines. Only
// the tick goroutine (and New) may call it.
func (b *Bot) publishSnapshot() {
	s := Snapshot{
		Running:        b.running,
		Paused:         b.paused,
		Partnership:    b.deps.Partnership.Active(),
		PaymentPhase:   b.deps.Payment.Phase().String(),
		ActiveLanguage: b.deps.Switcher.Current(),
		Memory:         b.deps.Memory.Status(),
	}
	b.snapshot.Store(&s)
}

// Status returns the last published snapshot. Safe to call from any
// goroutine.
func (b *Bot) Status() Snapshot {
	return *b.snapshot.Load()
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Run drives the tick loop until a stop command or context
// cancellation. A panicking tick is logged and the loop restarts
// after a short delay; the loop itself never exits on error.
func (b *Bot) Run(ctx context.Context) {
	b.running = true
	b.scanning = true
	b.publishSnapshot()
	b.emit("bot started", true)

	for b.running && ctx.Err() == nil {
		b.runGuarded(ctx)
	}

	b.publishSnapshot()
	b.emit("bot stopped", true)
}

func (b *Bot) runGuarded(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("tick crashed, restarting",
				"panic", r,
				"stack", string(debug.Stack()))
			b.emit(fmt.Sprintf("loop error: %v, restarting in %s", r, restartDelay), true)
			b.sleep(ctx, restartDelay)
		}
	}()

	for b.running && ctx.Err() == nil {
		b.tick(ctx)
		b.publishSnapshot()
	}
}

// tick is one pass of the cooperative loop.
func (b *Bot) tick(ctx context.Context) {
	b.drainCommands()
	if !b.running || ctx.Err() != nil {
		return
	}

	if !b.paused {
		if closed := b.refreshPresence(ctx); closed {
			return
		}
	}

	if !b.deps.Partnership.Active() && !b.paused {
		b.discoverPartnership(ctx)
		b.sleep(ctx, b.cfg.ScanIntervalIdle)
		return
	}

	if !b.scanning || b.paused {
		b.sleep(ctx, b.cfg.ScanIntervalIdle)
		return
	}

	if b.regions.Chat == nil || b.regions.Input == nil {
		b.logger.Error("chat or input regions not configured")
		b.sleep(ctx, configBackoff)
		return
	}

	if b.sendInFlight {
		b.sleep(ctx, b.cfg.ScanIntervalIdle)
		return
	}

	messages := b.scanChat(ctx)

	switch b.advancePayment(ctx) {
	case session.OutcomeClosed:
		return
	case session.OutcomeWaiting:
		b.sleep(ctx, b.cfg.ScanIntervalActive)
		return
	}

	b.processSummarization(ctx)

	if len(messages) == 0 {
		b.scanDiscovery(ctx)
		b.sleep(ctx, b.cfg.ScanIntervalIdle)
		return
	}

	b.handleMessage(ctx, messages[0])
	b.scanDiscovery(ctx)
	b.sleep(ctx, b.cfg.ScanIntervalActive)
}

func (b *Bot) drainCommands() {
	for {
		cmd, ok := b.deps.Bridge.Poll()
		if !ok {
			return
		}
		b.apply(cmd)
	}
}

func (b *Bot) apply(cmd bridge.Command) {
	switch cmd.Kind {
	case bridge.CommandStart:
		b.scanning = true
		b.paused = false
	case bridge.CommandPause:
		if !b.paused {
			b.paused = true
			b.scanning = false
			b.discardCurrent = true
			b.pauseStart = b.now()
			b.emit("scanning paused", false)
		}
	case bridge.CommandResume:
		if b.paused {
			b.paused = false
			b.scanning = true
			if !b.pauseStart.IsZero() {
				b.deps.Partnership.ShiftLastMessage(b.now().Sub(b.pauseStart))
				b.pauseStart = time.Time{}
			}
			b.emit("scanning resumed", false)
		}
	case bridge.CommandStop:
		b.running = false
	case bridge.CommandClearMemory:
		b.deps.Memory.Clear()
		b.emit("conversation memory cleared", false)
	case bridge.CommandSetLanguage:
		b.setLanguage(cmd.Arg)
	case bridge.CommandReloadNicks:
		b.reloadNicks()
	default:
		b.logger.Warn("unknown command", "kind", cmd.Kind)
	}
}

// reloadNicks re-reads the persisted nick lists into the live
// resolver, making API edits take effect without a restart.
func (b *Bot) reloadNicks() {
	if b.deps.Settings == nil {
		return
	}
	ignore, err := b.deps.Settings.Nicks("ignore")
	if err != nil {
		b.logger.Warn("reload ignore nicks failed", "error", err)
		return
	}
	target, err := b.deps.Settings.Nicks("target")
	if err != nil {
		b.logger.Warn("reload target nicks failed", "error", err)
		return
	}
	b.deps.Nicks.UpdateSets(ignore, target)
	b.emit("nick lists reloaded", false)
}

func (b *Bot) setLanguage(code string) {
	if code == "" {
		return
	}
	b.deps.Switcher.Reset(code)
	b.applyLanguage(code)
	b.emit("language set to "+code, false)
}

// applyLanguage propagates a language change to OCR, the translation
// flag, and persisted settings.
func (b *Bot) applyLanguage(code string) {
	b.ocrLanguage = lang.CaptureLanguage(code)
	b.translationOn = code != "en"

	if b.deps.Settings != nil {
		if err := b.deps.Settings.SetActiveLanguage(code); err != nil {
			b.logger.Warn("persist language failed", "error", err)
		}
		if err := b.deps.Settings.SetTranslationEnabled(b.translationOn); err != nil {
			b.logger.Warn("persist translation flag failed", "error", err)
		}
	}
}

// refreshPresence checks the partnership presence signal. Returns
// true when the tick already handled a partnership loss.
func (b *Bot) refreshPresence(ctx context.Context) bool {
	if b.regions.CloseButton == nil {
		return false
	}

	_, found, err := b.deps.Locator.Locate(ctx, TemplateCloseButton, b.regions.CloseButton, locateConfidenceHigh)
	if err != nil {
		// Locate failure reads as button absent.
		found = false
	}

	active := b.deps.Partnership.Active()
	switch {
	case found && !active:
		b.emit("partnership found", true)
		b.deps.Partnership.Activate()
		b.deps.Payment.Begin()
	case !found && active:
		b.emit("partnership closed", true)
		b.teardown(ctx)
		return true
	}
	return false
}

func (b *Bot) teardown(ctx context.Context) {
	b.deps.Payment.Reset()
	b.deps.Partnership.Teardown(session.TeardownSteps{
		StopAction: func() error {
			return b.clickTemplate(ctx, TemplateStopAction, nil, locateConfidenceLow)
		},
		Close: func() error {
			return b.clickTemplate(ctx, TemplateCloseButton, b.regions.CloseButton, locateConfidenceHigh)
		},
		Cleanup: func() error {
			return b.clickTemplate(ctx, TemplateCleanup, nil, locateConfidenceLow)
		},
		ResetOutfit: func() error {
			return b.clickTemplate(ctx, TemplateOutfitReset, nil, locateConfidenceLow)
		},
		ClearHistory: func() {
			b.deps.Memory.Clear()
		},
		ResetLanguage: func() {
			if b.deps.Switcher.Current() != "en" {
				b.deps.Switcher.Reset("en")
				b.applyLanguage("en")
			}
		},
		PruneNick: func(n string) {
			b.deps.Nicks.RemoveTarget(n)
			if b.deps.Settings != nil {
				if err := b.deps.Settings.RemoveNick(n, "target"); err != nil {
					b.logger.Warn("prune nick failed", "nick", n, "error", err)
				}
			}
		},
	})
}

// clickTemplate locates a template and clicks it. A miss is not an
// error; the caller's step is simply skipped.
func (b *Bot) clickTemplate(ctx context.Context, template string, region *Region, confidence float64) error {
	p, found, err := b.deps.Locator.Locate(ctx, template, region, confidence)
	if err != nil {
		return fmt.Errorf("locate %s: %w", template, err)
	}
	if !found {
		return nil
	}
	if err := b.deps.Dispatch.Click(ctx, p); err != nil {
		return fmt.Errorf("click %s: %w", template, err)
	}
	return nil
}

// discoverPartnership looks for an accept tile and opens a new
// partnership, then sends the greeting.
func (b *Bot) discoverPartnership(ctx context.Context) {
	if !b.deps.Partnership.ActionReady(session.ActionPartnership) {
		return
	}

	p, found, err := b.deps.Locator.Locate(ctx, TemplateAcceptTile, nil, locateConfidenceHigh)
	if err != nil || !found {
		return
	}

	b.deps.Partnership.MarkAction(session.ActionPartnership)
	if err := b.deps.Dispatch.Click(ctx, p); err != nil {
		b.logger.Warn("accept click failed", "error", err)
		return
	}

	b.emit("partnership accepted", true)
	b.deps.Partnership.Activate()
	b.deps.Payment.Begin()
	b.scanning = true

	b.sendGreeting(ctx)
}

func (b *Bot) sendGreeting(ctx context.Context) {
	greeting := b.cfg.Greeting
	if greeting == "" {
		reply, err := b.deps.LLM.GenerateReply(ctx,
			"You just started a new partnership. Greet the user in your character and start the conversation.",
			b.cfg.SystemPrompt, b.cfg.Manifest)
		if err != nil {
			b.logger.Warn("greeting generation failed", "error", err)
			return
		}
		greeting = reply
	}
	if greeting == "" {
		return
	}

	b.dispatchReply(ctx, greeting)
	b.deps.Memory.Add("assistant", greeting)
	b.deps.Partnership.MarkGreeted()
	b.emit("greeting sent", true)
}

// scanChat captures the chat region and runs it through the ingest
// pipeline, promoting fresh nicks while a partnership is active.
func (b *Bot) scanChat(ctx context.Context) []ingest.Message {
	raw, err := b.deps.Capture.CaptureText(ctx, *b.regions.Chat, b.ocrLanguage)
	if err != nil {
		b.logger.Warn("chat capture failed", "error", err)
		return nil
	}

	messages, potential := b.deps.Pipeline.Extract(raw)

	for n := range potential {
		b.suggested[n] = struct{}{}
	}

	if b.discardCurrent {
		b.discardCurrent = false
		return nil
	}

	if b.deps.Partnership.Active() && len(potential) > 0 {
		nicks := make([]string, 0, len(potential))
		for n := range potential {
			nicks = append(nicks, n)
		}
		sort.Strings(nicks)
		for _, cand := range nicks {
			n := nick.Normalize(cand)
			if n == "" || b.deps.Nicks.IsIgnored(n) || b.deps.Nicks.IsTarget(n) {
				continue
			}
			b.deps.Nicks.AddTarget(n)
			b.deps.Partnership.RecordAutoAdded(n)
			b.deps.Partnership.SetPartnerNick(n)
			if b.deps.Settings != nil {
				if err := b.deps.Settings.AddNick(n, "target"); err != nil {
					b.logger.Warn("persist nick failed", "nick", n, "error", err)
				}
			}
			b.emit("partner auto-added: "+n, true)
		}
	}

	return messages
}

func (b *Bot) advancePayment(ctx context.Context) session.Outcome {
	return b.deps.Payment.Tick(b.deps.Partnership.Active(), session.PaymentDeps{
		CaptureAmount: func() (int, error) {
			if b.regions.Amount == nil {
				return 0, session.ErrRegionUnconfigured
			}
			return b.deps.Capture.CaptureAmount(ctx, *b.regions.Amount)
		},
		SendWarning: func(text string) {
			b.dispatchReply(ctx, text)
		},
		NotifySuccess: func(text string) {
			reply, err := b.deps.LLM.GenerateReply(ctx, text, b.cfg.SystemPrompt, b.cfg.Manifest)
			if err != nil {
				b.logger.Warn("payment confirmation generation failed", "error", err)
				return
			}
			b.dispatchReply(ctx, reply)
		},
		ForceClose: func() {
			b.teardown(ctx)
		},
	})
}

// processSummarization resolves an outstanding memory summarization
// request, if any.
func (b *Bot) processSummarization(ctx context.Context) {
	pending := b.deps.Memory.Pending()
	if pending == nil {
		return
	}

	result, err := b.deps.LLM.Summarize(ctx, pending.Prompt)
	if err != nil {
		b.logger.Warn("summarization failed", "id", pending.ID, "error", err)
		return
	}
	b.deps.Memory.ApplySummary(result)
}

// handleMessage runs the reply path for the newest inbound message.
func (b *Bot) handleMessage(ctx context.Context, msg ingest.Message) {
	if msg.Author != "" {
		b.deps.Partnership.SetPartnerNick(msg.Author)
	}

	b.deps.Memory.Add("user", msg.Text)
	b.observeLanguage(msg.Text)

	var reply string
	if !b.deps.Partnership.Greeted() {
		reply = b.cfg.Greeting
		if reply == "" {
			reply = "Hello!"
		}
		b.deps.Partnership.MarkGreeted()
		b.emit("sending initial greeting", true)
	} else {
		reply = b.generateReply(ctx, msg)
		if reply == "" {
			b.emit("no reply from llm", true)
			return
		}
	}

	b.deps.Memory.Add("assistant", reply)
	b.dispatchReply(ctx, reply)
	b.deps.Partnership.TouchMessage()
}

func (b *Bot) observeLanguage(text string) {
	detected, confident := b.deps.Classifier.Detect(text, b.deps.Switcher.Current())
	if b.deps.Switcher.Observe(detected, confident) {
		b.applyLanguage(b.deps.Switcher.Current())
		b.emit("language switched to "+b.deps.Switcher.Current(), true)
	}
}

// generateReply runs the full LLM round trip with the idle filler
// alive for the duration of the call.
func (b *Bot) generateReply(ctx context.Context, msg ingest.Message) string {
	stopFiller := b.startFiller(ctx)

	current := b.deps.Switcher.Current()
	input := msg.Text
	if b.translationOn {
		input = b.deps.Translator.ToEnglish(ctx, input, current)
	}

	prompt := input
	if b.deps.Retriever != nil {
		if extra, err := b.deps.Retriever.Context(ctx, input); err == nil && extra != "" {
			prompt = extra + "\n\n" + prompt
		}
	}
	if memCtx := b.deps.Memory.Context(); memCtx != "" {
		prompt = memCtx + "\n\n" + prompt
	}

	reply, err := b.deps.LLM.GenerateReply(ctx, prompt, b.cfg.SystemPrompt, b.cfg.Manifest)

	// The filler must be fully stopped before anything touches the
	// input field.
	stopFiller()
	if eraseErr := b.deps.Dispatch.EraseInput(ctx); eraseErr != nil {
		b.logger.Warn("erase input failed", "error", eraseErr)
	}

	if err != nil {
		b.logger.Warn("reply generation failed", "error", err)
		return ""
	}

	if b.translationOn {
		reply = b.deps.Translator.FromEnglish(ctx, reply, current)
	}
	return reply
}

// startFiller types a dot into the input field on an interval so the
// game does not time the session out during a slow LLM call. The
// returned stop function cancels the goroutine and waits for it.
func (b *Bot) startFiller(ctx context.Context) (stop func()) {
	fctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(fillerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-fctx.Done():
				return
			case <-ticker.C:
				if err := b.deps.Dispatch.Type(fctx, "."); err != nil {
					return
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// dispatchReply splits a reply into chat-sized parts and sends them
// under the send-in-flight guard.
func (b *Bot) dispatchReply(ctx context.Context, reply string) {
	parts := ingest.SplitOutgoing(reply)
	if len(parts) == 0 {
		return
	}

	b.sendInFlight = true
	defer func() { b.sendInFlight = false }()

	for _, part := range parts {
		if err := b.deps.Dispatch.TypeAndSend(ctx, part); err != nil {
			b.logger.Warn("send failed", "error", err)
			return
		}
	}
}

// scanDiscovery handles secondary in-partnership discovery actions:
// clothes-control requests and gift offers. Each is rate-limited on
// its own cooldown timestamp.
func (b *Bot) scanDiscovery(ctx context.Context) {
	if !b.deps.Partnership.Active() || b.paused {
		return
	}
	b.discoveryAction(ctx, session.ActionClothes, TemplateClothesAsk, "clothes control request accepted")
	b.discoveryAction(ctx, session.ActionGift, TemplateGiftTile, "gift accepted")
}

func (b *Bot) discoveryAction(ctx context.Context, action, template, event string) {
	if !b.deps.Partnership.ActionReady(action) {
		return
	}

	p, found, err := b.deps.Locator.Locate(ctx, template, nil, locateConfidenceLow)
	if err != nil || !found {
		return
	}

	b.deps.Partnership.MarkAction(action)
	if err := b.deps.Dispatch.Click(ctx, p); err != nil {
		b.logger.Warn("discovery click failed", "template", template, "error", err)
		return
	}
	b.emit(event, true)
}

// Suggested returns the accumulated potential-new-nick set.
func (b *Bot) Suggested() []string {
	out := make([]string, 0, len(b.suggested))
	for n := range b.suggested {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (b *Bot) emit(message string, internal bool) {
	b.deps.Bridge.Emit(message, internal)
	if internal {
		b.logger.Debug(message)
	} else {
		b.logger.Info(message)
	}
}
