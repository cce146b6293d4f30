package lang

import "log/slog"

// Switcher wraps the classifier output with anti-flicker hysteresis:
// confident detections switch immediately, tentative ones must agree
// across consecutive observations before the active language changes.
type Switcher struct {
	current string
	pending string
	count   int
	need    int
	logger  *slog.Logger
}

func NewSwitcher(initial string, need int, logger *slog.Logger) *Switcher {
	if need < 1 {
		need = 1
	}
	return &Switcher{current: initial, need: need, logger: logger}
}

func (s *Switcher) Current() string {
	return s.current
}

// Observe feeds one detection into the switcher and reports whether
// the active language changed.
func (s *Switcher) Observe(detected string, confident bool) bool {
	if detected == s.current {
		s.pending = ""
		s.count = 0
		return false
	}

	if confident {
		s.switchTo(detected)
		return true
	}

	if detected == s.pending {
		s.count++
	} else {
		s.pending = detected
		s.count = 1
	}
	if s.count >= s.need {
		s.switchTo(detected)
		return true
	}
	if s.logger != nil {
		s.logger.Debug("tentative language change", "detected", detected, "streak", s.count, "need", s.need)
	}
	return false
}

func (s *Switcher) switchTo(lang string) {
	if s.logger != nil {
		s.logger.Info("language switched", "from", s.current, "to", lang)
	}
	s.current = lang
	s.pending = ""
	s.count = 0
}

// Reset forces the active language, clearing any pending change. Used
// when a partnership is torn down and the default language restored.
func (s *Switcher) Reset(lang string) {
	s.current = lang
	s.pending = ""
	s.count = 0
}
