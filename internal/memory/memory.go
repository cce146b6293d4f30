// Package memory keeps a bounded conversation history and compresses
// overflow into a rolling summary via LLM summarization requests.
package memory

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	summaryMaxLen = 1000

	summarizationTemplate = `Summarize the key points of this conversation so far, keeping names and important facts.
Be extremely concise (max 2-3 sentences). Focus on:

1. Main topics discussed
2. Important decisions or agreements
3. Key information exchanged
4. Current state of the conversation

Conversation:
%s

Summary:`
)

// Message is one entry of the conversation history.
type Message struct {
	Role           string
	Content        string
	Timestamp      time.Time
	SummaryTrigger bool
}

// Pending is a summarization request waiting for an LLM result. At
// most one exists at a time.
type Pending struct {
	ID       uuid.UUID
	Prompt   string
	OldCount int
}

// Status is a snapshot of memory counters for the control surface.
type Status struct {
	HistoryLen       int       `json:"history_len"`
	SummaryLen       int       `json:"summary_len"`
	TotalMessages    int       `json:"total_messages"`
	SummariesCreated int       `json:"summaries_created"`
	LastSummaryAt    time.Time `json:"last_summary_at,omitempty"`
	PendingSummary   bool      `json:"pending_summary"`
}

// Memory is single-writer, owned by the orchestrator goroutine.
type Memory struct {
	recentLimit  int
	triggerLimit int

	history []Message
	summary string
	pending *Pending

	totalMessages    int
	summariesCreated int
	lastSummaryAt    time.Time

	now    func() time.Time
	logger *slog.Logger
}

func New(recentLimit, triggerLimit int, logger *slog.Logger) *Memory {
	return &Memory{
		recentLimit:  recentLimit,
		triggerLimit: triggerLimit,
		now:          time.Now,
		logger:       logger,
	}
}

// Add appends a message and, once the history reaches the trigger
// limit, splits the oldest overflow into a summarization request.
// History drops below the limit immediately after a trigger, so a
// second request cannot be created while one is outstanding.
func (m *Memory) Add(role, content string) {
	m.history = append(m.history, Message{
		Role:      role,
		Content:   content,
		Timestamp: m.now(),
	})
	m.totalMessages++

	if len(m.history) >= m.triggerLimit {
		m.trigger()
	}
}

func (m *Memory) trigger() {
	toSummarize := len(m.history) - m.recentLimit
	if toSummarize <= 0 {
		return
	}

	old := m.history[:toSummarize]
	remaining := append([]Message(nil), m.history[toSummarize:]...)
	remaining[0].SummaryTrigger = true

	var lines []string
	for _, msg := range old {
		lines = append(lines, msg.Role+": "+msg.Content)
	}

	m.pending = &Pending{
		ID:       uuid.New(),
		Prompt:   fmt.Sprintf(summarizationTemplate, strings.Join(lines, "\n")),
		OldCount: len(old),
	}
	m.history = remaining
	m.summariesCreated++
	m.lastSummaryAt = m.now()

	if m.logger != nil {
		m.logger.Info("summarization triggered", "id", m.pending.ID, "messages", len(old))
	}
}

// Pending returns the outstanding summarization request, if any.
func (m *Memory) Pending() *Pending {
	return m.pending
}

// ApplySummary consumes the LLM's summarization result: strips a
// leading "Summary:" token, caps the text, and folds it into the
// cumulative summary.
func (m *Memory) ApplySummary(text string) {
	if m.pending == nil {
		if m.logger != nil {
			m.logger.Warn("no pending summarization to apply")
		}
		return
	}

	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, "Summary:"))
	if runes := []rune(cleaned); len(runes) > summaryMaxLen {
		cleaned = string(runes[:summaryMaxLen-3]) + "..."
	}

	if m.summary != "" {
		m.summary = m.summary + "\n\n" + cleaned
	} else {
		m.summary = cleaned
	}
	m.pending = nil

	if m.logger != nil {
		m.logger.Info("summarization applied", "summary_len", len(m.summary))
	}
}

// Context formats the summary plus recent messages for inclusion in
// an LLM prompt. Empty string when there is nothing to say.
func (m *Memory) Context() string {
	var parts []string

	if m.summary != "" {
		parts = append(parts, "Previous summary: "+m.summary)
	}

	recent := m.history
	if len(recent) > m.recentLimit {
		recent = recent[len(recent)-m.recentLimit:]
	}
	if len(recent) > 0 {
		var lines []string
		for _, msg := range recent {
			lines = append(lines, msg.Role+": "+msg.Content)
		}
		parts = append(parts, "Recent conversation:\n"+strings.Join(lines, "\n"))
	}

	return strings.Join(parts, "\n\n")
}

// Clear resets history, summary, counters, and any pending request.
func (m *Memory) Clear() {
	m.history = nil
	m.summary = ""
	m.pending = nil
	m.totalMessages = 0
	m.summariesCreated = 0
	m.lastSummaryAt = time.Time{}

	if m.logger != nil {
		m.logger.Info("conversation memory cleared")
	}
}

func (m *Memory) Status() Status {
	return Status{
		HistoryLen:       len(m.history),
		SummaryLen:       len(m.summary),
		TotalMessages:    m.totalMessages,
		SummariesCreated: m.summariesCreated,
		LastSummaryAt:    m.lastSummaryAt,
		PendingSummary:   m.pending != nil,
	}
}

// History returns the working history. Callers must not mutate it.
func (m *Memory) History() []Message {
	return m.history
}

// SetClock overrides the time source. Test hook.
func (m *Memory) SetClock(now func() time.Time) {
	m.now = now
}
