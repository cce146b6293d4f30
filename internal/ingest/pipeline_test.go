package ingest

import (
	"reflect"
	"testing"
	"time"

	"github.com/chatpilot/chatpilot/internal/nick"
)

func newTestPipeline(t *testing.T, ignore, target []string) *Pipeline {
	t.Helper()
	r := nick.NewResolver(ignore, target, 0.7, nil)
	return New(r, 5, 120*time.Second, nil)
}

func TestExtract_EndToEnd(t *testing.T) {
	p := newTestPipeline(t, nil, []string{"alice", "bob"})

	msgs, potential := p.Extract("Alice: hello\nnoise\nBob: hi there")

	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d: %+v", len(msgs), msgs)
	}
	// Newest-first contract: Bob's line was captured last, so it is
	// index 0 after the reversal.
	if msgs[0].Author != "bob" || msgs[0].Text != "hi there" {
		t.Errorf("msgs[0] = %+v, want bob / hi there", msgs[0])
	}
	// "noise" has no separator and follows Alice's line, so it merges
	// into her message as a continuation.
	if msgs[1].Author != "alice" || msgs[1].Text != "hello noise" {
		t.Errorf("msgs[1] = %+v, want alice / hello noise", msgs[1])
	}
	if len(potential) != 0 {
		t.Errorf("expected no potential nicks, got %v", potential)
	}
}

func TestExtract_DedupIdempotence(t *testing.T) {
	p := newTestPipeline(t, nil, []string{"alice"})

	first, _ := p.Extract("Alice: hello")
	if len(first) != 1 {
		t.Fatalf("expected 1 message on first capture, got %d", len(first))
	}

	second, _ := p.Extract("Alice: hello")
	if len(second) != 0 {
		t.Errorf("expected duplicate within TTL to be suppressed, got %d", len(second))
	}
}

func TestExtract_TTLExpiry(t *testing.T) {
	p := newTestPipeline(t, nil, []string{"alice"})

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.SetClock(func() time.Time { return now })

	if msgs, _ := p.Extract("Alice: hello"); len(msgs) != 1 {
		t.Fatalf("expected first capture accepted")
	}

	now = now.Add(121 * time.Second)
	msgs, _ := p.Extract("Alice: hello")
	if len(msgs) != 1 {
		t.Errorf("expected duplicate past TTL to be accepted as new, got %d", len(msgs))
	}
}

func TestExtract_WindowEviction(t *testing.T) {
	p := newTestPipeline(t, nil, []string{"alice"})

	lines := []string{"one here", "two here", "three here", "four here", "five here", "six here"}
	for _, l := range lines {
		if msgs, _ := p.Extract("Alice: " + l); len(msgs) != 1 {
			t.Fatalf("expected %q accepted", l)
		}
	}

	// Window caps at 5 entries, so the oldest hash has been evicted
	// and the first line is treated as new again.
	if msgs, _ := p.Extract("Alice: one here"); len(msgs) != 1 {
		t.Errorf("expected evicted hash to be accepted again, got %d", len(msgs))
	}
	// The most recent line is still in the window.
	if msgs, _ := p.Extract("Alice: six here"); len(msgs) != 0 {
		t.Errorf("expected recent hash still suppressed, got %d", len(msgs))
	}
}

func TestExtract_IgnoredAuthorSuppressed(t *testing.T) {
	p := newTestPipeline(t, []string{"sysbot"}, []string{"alice"})

	msgs, potential := p.Extract("sysbot: server notice\nAlice: hello")
	if len(msgs) != 1 || msgs[0].Author != "alice" {
		t.Fatalf("expected only alice's message, got %+v", msgs)
	}
	if len(potential) != 0 {
		t.Errorf("ignored author must not land in potential nicks: %v", potential)
	}

	// The ignored line's hash was recorded: repeats stay silent.
	msgs, _ = p.Extract("sysbot: server notice")
	if len(msgs) != 0 {
		t.Errorf("expected repeated ignored line to stay suppressed, got %+v", msgs)
	}
}

func TestExtract_UnresolvedNick(t *testing.T) {
	p := newTestPipeline(t, nil, []string{"alice"})

	msgs, potential := p.Extract("Stranger: who are you\ntrailing fragment text")
	if len(msgs) != 0 {
		t.Fatalf("expected no messages from unknown author, got %+v", msgs)
	}
	if _, ok := potential["stranger"]; !ok {
		t.Errorf("expected stranger in potential nicks, got %v", potential)
	}
	// An unresolved line breaks the continuation anchor, so the
	// trailing fragment is dropped rather than merged anywhere.
}

func TestExtract_NickCleaning(t *testing.T) {
	p := newTestPipeline(t, nil, []string{"zeuto"})

	tests := []struct {
		name string
		line string
	}{
		{"bracketed id", "Zeuto[22]: hello there"},
		{"parenthesized tag", "Zeuto(afk): hello there two"},
		{"forbidden symbol", "Ze$uto: hello there three"},
		{"internal space", "Ze uto: hello there four"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, _ := p.Extract(tt.line)
			if len(msgs) != 1 || msgs[0].Author != "zeuto" {
				t.Errorf("Extract(%q) = %+v, want one message from zeuto", tt.line, msgs)
			}
		})
	}
}

func TestExtract_Rejections(t *testing.T) {
	p := newTestPipeline(t, nil, []string{"alice"})

	tests := []struct {
		name string
		raw  string
	}{
		{"short line", "a: b"},
		{"separator too far", "this is a long stretch of narration text: with a late colon"},
		{"nick too short after cleaning", "ab: some message"},
		{"nick too long after cleaning", "abcdefghijklmnopqrstu: some message"},
		{"empty body", "Alice:    "},
		{"empty input", "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, _ := p.Extract(tt.raw)
			if len(msgs) != 0 {
				t.Errorf("Extract(%q) = %+v, want nothing", tt.raw, msgs)
			}
		})
	}
}

func TestExtract_SemicolonSeparator(t *testing.T) {
	p := newTestPipeline(t, nil, []string{"alice"})

	msgs, _ := p.Extract("Alice; hello there")
	if len(msgs) != 1 || msgs[0].Text != "hello there" {
		t.Errorf("expected semicolon fallback to parse, got %+v", msgs)
	}
}

func TestSplitOutgoing(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []string
	}{
		{
			"plain text",
			"Hello there!",
			[]string{"Hello there!"},
		},
		{
			"action in the middle",
			"Hello *waves happily* nice to meet you",
			[]string{"Hello", "/me waves happily", "nice to meet you"},
		},
		{
			"leading action",
			"*smiles* hi",
			[]string{"/me smiles", "hi"},
		},
		{
			"quotes stripped",
			`"Hello" she said`,
			[]string{"Hello she said"},
		},
		{
			"empty action dropped",
			"before ** after",
			[]string{"before", "after"},
		},
		{
			"empty reply",
			"   ",
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitOutgoing(tt.reply)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitOutgoing(%q) = %v, want %v", tt.reply, got, tt.want)
			}
		})
	}
}
