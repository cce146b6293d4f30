package session

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Phase is the payment window state.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseFree
	PhaseWaiting
	PhasePaid
)

func (p Phase) String() string {
	switch p {
	case PhaseFree:
		return "free"
	case PhaseWaiting:
		return "waiting_payment"
	case PhasePaid:
		return "paid"
	default:
		return "none"
	}
}

// ErrRegionUnconfigured is returned by an amount capture when its
// screen region has never been configured. It is terminal for the
// payment window, unlike a transient capture failure.
var ErrRegionUnconfigured = errors.New("amount region not configured")

// PaymentParams are the operator-configured payment window settings.
type PaymentParams struct {
	Enabled        bool
	FreeMinutes    float64
	PaidMinutes    float64
	CoinsPerPaid   float64
	WaitTimeout    time.Duration
	WarningMessage string
	SuccessMessage string
}

// PaymentDeps are the collaborators a single Tick may call.
type PaymentDeps struct {
	// CaptureAmount reads the current coin amount via numeric OCR.
	CaptureAmount func() (int, error)
	// SendWarning dispatches the payment warning to the chat.
	SendWarning func(text string)
	// NotifySuccess hands the configured success message to the LLM
	// path for an in-character confirmation.
	NotifySuccess func(text string)
	// ForceClose tears the partnership down.
	ForceClose func()
}

// Outcome tells the orchestrator how to pace after a Tick.
type Outcome int

const (
	// OutcomeIdle means nothing payment-related needs attention.
	OutcomeIdle Outcome = iota
	// OutcomeWaiting means the window is open and unpaid; poll slower.
	OutcomeWaiting
	// OutcomeClosed means the tick force-closed the partnership.
	OutcomeClosed
)

// Payment is the timed free/paid window nested inside an active
// partnership.
type Payment struct {
	params PaymentParams

	phase     Phase
	timerEnd  time.Time
	baseline  int
	waitStart time.Time

	now    func() time.Time
	logger *slog.Logger
}

func NewPayment(params PaymentParams, logger *slog.Logger) *Payment {
	return &Payment{
		params: params,
		now:    time.Now,
		logger: logger,
	}
}

func (p *Payment) Phase() Phase        { return p.phase }
func (p *Payment) TimerEnd() time.Time { return p.timerEnd }

// Begin starts the free window on partnership activation.
func (p *Payment) Begin() {
	if !p.params.Enabled {
		p.phase = PhaseNone
		return
	}
	p.phase = PhaseFree
	p.timerEnd = p.now().Add(minutes(p.params.FreeMinutes))
	if p.logger != nil {
		p.logger.Info("free time started", "minutes", p.params.FreeMinutes)
	}
}

// Reset drops the window back to NONE, used whenever the partnership
// goes inactive or the feature is disabled.
func (p *Payment) Reset() {
	p.phase = PhaseNone
	p.timerEnd = time.Time{}
	p.baseline = 0
	p.waitStart = time.Time{}
}

// Tick advances the state machine once. Re-entering while already
// WAITING_PAYMENT never resends the warning; the FREE/PAID expiry
// branch is the only path into that state.
func (p *Payment) Tick(partnershipActive bool, d PaymentDeps) Outcome {
	if !p.params.Enabled || !partnershipActive || p.phase == PhaseNone {
		return OutcomeIdle
	}

	now := p.now()

	if p.phase == PhaseFree || p.phase == PhasePaid {
		if now.Before(p.timerEnd) {
			return OutcomeIdle
		}
		if p.logger != nil {
			p.logger.Info("payment window expired, asking for payment")
		}
		if p.params.WarningMessage != "" && d.SendWarning != nil {
			d.SendWarning(p.params.WarningMessage)
		}
		p.phase = PhaseWaiting
		p.waitStart = now

		amount, err := d.CaptureAmount()
		if err != nil {
			if p.logger != nil {
				p.logger.Error("cannot capture baseline amount, closing partnership", "error", err)
			}
			return p.forceClose(d)
		}
		p.baseline = amount
		if p.logger != nil {
			p.logger.Info("baseline amount captured", "amount", amount)
		}
	}

	if p.phase == PhaseWaiting {
		if now.Sub(p.waitStart) > p.params.WaitTimeout {
			if p.logger != nil {
				p.logger.Info("payment timeout, closing partnership")
			}
			return p.forceClose(d)
		}

		amount, err := d.CaptureAmount()
		if err != nil {
			if errors.Is(err, ErrRegionUnconfigured) {
				if p.logger != nil {
					p.logger.Error("amount region lost while waiting, closing partnership")
				}
				return p.forceClose(d)
			}
			if p.logger != nil {
				p.logger.Warn("amount capture failed, retrying next tick", "error", err)
			}
			return OutcomeWaiting
		}

		if amount <= p.baseline {
			return OutcomeWaiting
		}

		paid := amount - p.baseline
		extra := p.extraMinutes(float64(paid))
		p.phase = PhasePaid
		p.timerEnd = now.Add(minutes(extra))
		if p.logger != nil {
			p.logger.Info("payment detected",
				"paid", paid,
				"extra_minutes", fmt.Sprintf("%.1f", extra))
		}
		if p.params.SuccessMessage != "" && d.NotifySuccess != nil {
			d.NotifySuccess(p.params.SuccessMessage)
		}
	}

	return OutcomeIdle
}

func (p *Payment) forceClose(d PaymentDeps) Outcome {
	p.Reset()
	if d.ForceClose != nil {
		d.ForceClose()
	}
	return OutcomeClosed
}

// extraMinutes converts a paid coin amount into minutes of paid time.
// With CoinsPerPaid unset the configured paid block is granted as-is.
func (p *Payment) extraMinutes(paid float64) float64 {
	if p.params.CoinsPerPaid > 0 {
		return paid / p.params.CoinsPerPaid * p.params.PaidMinutes
	}
	return p.params.PaidMinutes
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

// SetClock overrides the time source. Test hook.
func (p *Payment) SetClock(now func() time.Time) {
	p.now = now
}
