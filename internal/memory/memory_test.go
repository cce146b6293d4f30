package memory

import (
	"fmt"
	"strings"
	"testing"
)

func TestAddBelowTrigger(t *testing.T) {
	m := New(12, 20, nil)

	for i := 0; i < 19; i++ {
		m.Add("user", fmt.Sprintf("message %d", i))
	}

	if got := len(m.History()); got != 19 {
		t.Fatalf("history length = %d, want 19", got)
	}
	if m.Pending() != nil {
		t.Fatal("unexpected pending summarization before trigger")
	}
}

func TestSummarizationTrigger(t *testing.T) {
	m := New(12, 20, nil)

	for i := 0; i < 20; i++ {
		m.Add("user", fmt.Sprintf("message %d", i))
	}

	pending := m.Pending()
	if pending == nil {
		t.Fatal("expected pending summarization after 20th message")
	}
	if pending.OldCount != 8 {
		t.Errorf("OldCount = %d, want 8", pending.OldCount)
	}
	if got := len(m.History()); got != 12 {
		t.Errorf("history length = %d, want 12", got)
	}
	if !m.History()[0].SummaryTrigger {
		t.Error("first remaining message should be marked as trigger point")
	}
	if !strings.Contains(pending.Prompt, "user: message 0") {
		t.Error("prompt should contain the oldest message")
	}
	if !strings.Contains(pending.Prompt, "user: message 7") {
		t.Error("prompt should contain the last summarized message")
	}
	if strings.Contains(pending.Prompt, "user: message 8") {
		t.Error("prompt should not contain retained messages")
	}
}

func TestNoSecondPendingWhileOutstanding(t *testing.T) {
	m := New(12, 20, nil)

	for i := 0; i < 20; i++ {
		m.Add("user", fmt.Sprintf("message %d", i))
	}
	first := m.Pending()
	if first == nil {
		t.Fatal("expected pending summarization")
	}

	for i := 20; i < 27; i++ {
		m.Add("user", fmt.Sprintf("message %d", i))
	}

	if got := m.Pending(); got != first {
		t.Error("pending request should be unchanged while outstanding")
	}
	if got := len(m.History()); got != 19 {
		t.Errorf("history length = %d, want 19", got)
	}
}

func TestApplySummary(t *testing.T) {
	m := New(12, 20, nil)
	for i := 0; i < 20; i++ {
		m.Add("user", fmt.Sprintf("message %d", i))
	}

	m.ApplySummary("Summary: they talked about the weather.")

	if m.Pending() != nil {
		t.Error("pending should be cleared after applying")
	}
	ctx := m.Context()
	if !strings.Contains(ctx, "Previous summary: they talked about the weather.") {
		t.Errorf("context missing summary: %q", ctx)
	}
	if !strings.Contains(ctx, "Recent conversation:") {
		t.Errorf("context missing recent section: %q", ctx)
	}
}

func TestApplySummaryCapped(t *testing.T) {
	m := New(12, 20, nil)
	for i := 0; i < 20; i++ {
		m.Add("user", fmt.Sprintf("message %d", i))
	}

	m.ApplySummary(strings.Repeat("x", 2000))

	st := m.Status()
	if st.SummaryLen != 1000 {
		t.Errorf("summary length = %d, want 1000", st.SummaryLen)
	}
	if !strings.HasSuffix(m.summary, "...") {
		t.Errorf("truncated summary should end with ellipsis marker, got %q", m.summary[990:])
	}
}

func TestApplySummaryAppends(t *testing.T) {
	m := New(2, 4, nil)

	for i := 0; i < 4; i++ {
		m.Add("user", fmt.Sprintf("a%d", i))
	}
	m.ApplySummary("first part")

	for i := 0; i < 2; i++ {
		m.Add("user", fmt.Sprintf("b%d", i))
	}
	m.ApplySummary("second part")

	want := "first part\n\nsecond part"
	if m.summary != want {
		t.Errorf("summary = %q, want %q", m.summary, want)
	}
}

func TestApplySummaryWithoutPending(t *testing.T) {
	m := New(12, 20, nil)
	m.ApplySummary("stray result")

	if m.summary != "" {
		t.Errorf("summary should stay empty, got %q", m.summary)
	}
}

func TestContextEmpty(t *testing.T) {
	m := New(12, 20, nil)
	if got := m.Context(); got != "" {
		t.Errorf("Context() = %q, want empty", got)
	}
}

func TestClear(t *testing.T) {
	m := New(12, 20, nil)
	for i := 0; i < 20; i++ {
		m.Add("user", fmt.Sprintf("message %d", i))
	}
	m.ApplySummary("some summary")

	m.Clear()

	st := m.Status()
	if st.HistoryLen != 0 || st.SummaryLen != 0 || st.TotalMessages != 0 ||
		st.SummariesCreated != 0 || st.PendingSummary {
		t.Errorf("status after clear = %+v", st)
	}
	if got := m.Context(); got != "" {
		t.Errorf("Context() after clear = %q, want empty", got)
	}
}

func TestStatusCounters(t *testing.T) {
	m := New(12, 20, nil)
	for i := 0; i < 20; i++ {
		m.Add("user", fmt.Sprintf("message %d", i))
	}

	st := m.Status()
	if st.TotalMessages != 20 {
		t.Errorf("TotalMessages = %d, want 20", st.TotalMessages)
	}
	if st.SummariesCreated != 1 {
		t.Errorf("SummariesCreated = %d, want 1", st.SummariesCreated)
	}
	if !st.PendingSummary {
		t.Error("PendingSummary should be true")
	}
	if st.LastSummaryAt.IsZero() {
		t.Error("LastSummaryAt should be set")
	}
}
