// Package session holds the partnership lifecycle and the nested
// payment state machine. Both are single-writer, owned by the
// orchestrator goroutine, and act on the world only through injected
// collaborator functions.
package session

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Cooldown keys. Each discovery action is rate-limited on its own
// timestamp; accepting a partnership never delays a clothes or gift
// accept and vice versa.
const (
	ActionPartnership = "partnership"
	ActionClothes     = "clothes"
	ActionGift        = "gift"
)

// Partnership tracks whether a partnership is currently active and the
// bookkeeping tied to its lifetime.
type Partnership struct {
	active           bool
	id               uuid.UUID
	partnerNick      string
	firstMessageSent bool
	autoAdded        map[string]struct{}

	lastActionAt  map[string]time.Time
	lastMessageAt time.Time
	cooldown      time.Duration

	now    func() time.Time
	logger *slog.Logger
}

func NewPartnership(cooldown time.Duration, logger *slog.Logger) *Partnership {
	return &Partnership{
		autoAdded:    make(map[string]struct{}),
		lastActionAt: make(map[string]time.Time),
		cooldown:     cooldown,
		now:          time.Now,
		logger:       logger,
	}
}

func (p *Partnership) Active() bool { return p.active }

// ActionReady reports whether enough time has passed since the last
// state-changing action of this kind. Repeated polling sees the same
// transient UI state several times; the cooldown absorbs the
// duplicates.
func (p *Partnership) ActionReady(action string) bool {
	return p.now().Sub(p.lastActionAt[action]) >= p.cooldown
}

// MarkAction stamps the cooldown timer for one action kind.
func (p *Partnership) MarkAction(action string) {
	p.lastActionAt[action] = p.now()
}

// Activate transitions to the active state after a successful accept
// action. Each activation gets a fresh session ID.
func (p *Partnership) Activate() {
	p.active = true
	p.id = uuid.New()
	p.lastMessageAt = p.now()
	p.lastActionAt[ActionPartnership] = p.now()
	if p.logger != nil {
		p.logger.Info("partnership activated", "session", p.id)
	}
}

// SessionID identifies the current partnership. Zero when inactive.
func (p *Partnership) SessionID() uuid.UUID { return p.id }

func (p *Partnership) SetPartnerNick(nick string) { p.partnerNick = nick }
func (p *Partnership) PartnerNick() string        { return p.partnerNick }

func (p *Partnership) MarkGreeted()             { p.firstMessageSent = true }
func (p *Partnership) Greeted() bool            { return p.firstMessageSent }
func (p *Partnership) TouchMessage()            { p.lastMessageAt = p.now() }
func (p *Partnership) LastMessageAt() time.Time { return p.lastMessageAt }

// ShiftLastMessage moves the activity timestamp forward after a
// pause, so paused time does not count as chat inactivity.
func (p *Partnership) ShiftLastMessage(d time.Duration) {
	p.lastMessageAt = p.lastMessageAt.Add(d)
}

// RecordAutoAdded remembers a nick that was promoted into the target
// set during this partnership, so teardown can prune it again.
func (p *Partnership) RecordAutoAdded(nick string) {
	p.autoAdded[nick] = struct{}{}
}

func (p *Partnership) AutoAdded() []string {
	out := make([]string, 0, len(p.autoAdded))
	for nick := range p.autoAdded {
		out = append(out, nick)
	}
	return out
}

// TeardownSteps are the collaborator actions run when a partnership
// ends. Every field is optional; a nil step is skipped.
type TeardownSteps struct {
	StopAction    func() error
	Close         func() error
	Cleanup       func() error
	ResetOutfit   func() error
	ClearHistory  func()
	ResetLanguage func()
	PruneNick     func(nick string)
}

// Teardown runs the close sequence and resets all per-partnership
// state. Individual step failures are logged and never interrupt the
// rest of the sequence.
func (p *Partnership) Teardown(steps TeardownSteps) {
	p.runStep("stop ongoing action", steps.StopAction)
	p.runStep("close partnership", steps.Close)
	p.runStep("cleanup", steps.Cleanup)
	p.runStep("reset outfit", steps.ResetOutfit)

	if steps.ClearHistory != nil {
		steps.ClearHistory()
	}
	if steps.ResetLanguage != nil {
		steps.ResetLanguage()
	}
	if steps.PruneNick != nil {
		for nick := range p.autoAdded {
			steps.PruneNick(nick)
		}
	}

	p.active = false
	p.id = uuid.UUID{}
	p.partnerNick = ""
	p.firstMessageSent = false
	p.autoAdded = make(map[string]struct{})
	p.lastMessageAt = p.now()
	p.lastActionAt[ActionPartnership] = p.now()

	if p.logger != nil {
		p.logger.Info("partnership torn down")
	}
}

func (p *Partnership) runStep(name string, step func() error) {
	if step == nil {
		return
	}
	if err := step(); err != nil {
		if p.logger != nil {
			p.logger.Warn("teardown step failed", "step", name, "error", err)
		}
	}
}

// SetClock overrides the time source. Test hook.
func (p *Partnership) SetClock(now func() time.Time) {
	p.now = now
}
