// Package ingest turns raw OCR captures of the chat pane into clean,
// attributed, deduplicated message records.
package ingest

import (
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/chatpilot/chatpilot/internal/nick"
)

// Message is one attributed chat line extracted from a capture.
// Immutable once returned by Extract.
type Message struct {
	Author string
	Text   string
	SeenAt time.Time
}

type dedupEntry struct {
	hash       string
	insertedAt time.Time
}

const (
	// Server rules: nicks are 3-20 chars. Lines shorter than nick
	// minimum + separator + one text char cannot be messages.
	minLineLen = 5
	minNickLen = 3
	maxNickLen = 20
	// Separator further than max nick length + OCR slack is body text.
	maxSeparatorOffset = 25
)

var (
	bracketRe   = regexp.MustCompile(`\[.*?\]|\(.*?\)`)
	nickCharsRe = regexp.MustCompile(`[^A-Za-z0-9_-]`)
	hashCleanRe = regexp.MustCompile(`[^A-Za-zА-Яа-яЁё0-9\s.,!?-]`)
	actionRe    = regexp.MustCompile(`(\*.*?\*)`)
)

// Pipeline owns the dedup window and drives per-tick extraction.
// Single-writer; owned by the orchestrator goroutine.
type Pipeline struct {
	nicks      *nick.Resolver
	window     []dedupEntry
	windowSize int
	ttl        time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

func New(nicks *nick.Resolver, windowSize int, ttl time.Duration, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		nicks:      nicks,
		windowSize: windowSize,
		ttl:        ttl,
		now:        time.Now,
		logger:     logger,
	}
}

// normalizeLine strips common OCR artifacts without touching
// language-specific characters.
func normalizeLine(line string) string {
	line = strings.ReplaceAll(line, "`", "")
	line = strings.ReplaceAll(line, "’", "")
	return strings.TrimSpace(line)
}

// Extract parses one raw OCR capture into new messages and the set of
// normalized tokens that looked like nicks but resolved to nothing.
//
// The returned slice is newest-first: lines are parsed top-to-bottom
// and the result reversed, so callers reacting to a single message
// take index 0 as the most recent one.
func (p *Pipeline) Extract(raw string) ([]Message, map[string]struct{}) {
	potential := make(map[string]struct{})
	if strings.TrimSpace(raw) == "" {
		return nil, potential
	}

	var found []Message
	var last *Message

	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		if len(line) < minLineLen {
			continue
		}
		normalized := normalizeLine(line)

		idx := strings.Index(normalized, ":")
		if idx == -1 {
			idx = strings.Index(normalized, ";")
		}
		if idx == -1 {
			// No separator: continuation of the previous message in
			// this capture, or noise.
			if last != nil {
				last.Text += " " + normalized
			}
			continue
		}
		if idx > maxSeparatorOffset {
			continue
		}

		rawNick := normalized[:idx]
		body := strings.TrimSpace(normalized[idx+1:])
		if body == "" {
			continue
		}

		cleaned := cleanNick(rawNick)
		if len(cleaned) < minNickLen || len(cleaned) > maxNickLen {
			continue
		}

		normNick := nick.Normalize(cleaned)
		author, ok := p.nicks.Resolve(normNick)
		if !ok {
			potential[normNick] = struct{}{}
			last = nil
			continue
		}

		hash := messageHash(author, body)
		if p.isRecentDuplicate(hash) {
			last = nil
			continue
		}

		if p.nicks.IsIgnored(author) {
			// Record the hash so repeats of the ignored line stay
			// suppressed, but emit nothing.
			p.record(hash)
			last = nil
			continue
		}

		if p.nicks.IsTarget(author) {
			p.record(hash)
			if p.logger != nil {
				p.logger.Debug("message accepted", "author", author, "text", body)
			}
			found = append(found, Message{Author: author, Text: body, SeenAt: p.now()})
			last = &found[len(found)-1]
		}
	}

	reverse(found)
	return found, potential
}

// cleanNick strips bracketed annotations, internal spaces, and every
// character the server forbids in a nick.
func cleanNick(raw string) string {
	s := bracketRe.ReplaceAllString(raw, "")
	s = strings.ReplaceAll(s, " ", "")
	return nickCharsRe.ReplaceAllString(s, "")
}

func messageHash(author, body string) string {
	authorClean := strings.ToLower(strings.TrimSpace(author))
	bodyClean := strings.ToLower(strings.TrimSpace(hashCleanRe.ReplaceAllString(body, "")))
	sum := md5.Sum([]byte(authorClean + ":" + bodyClean))
	return hex.EncodeToString(sum[:])
}

// isRecentDuplicate prunes entries past TTL, then checks membership.
func (p *Pipeline) isRecentDuplicate(hash string) bool {
	now := p.now()
	kept := p.window[:0]
	for _, e := range p.window {
		if now.Sub(e.insertedAt) < p.ttl {
			kept = append(kept, e)
		}
	}
	p.window = kept

	for _, e := range p.window {
		if e.hash == hash {
			return true
		}
	}
	return false
}

func (p *Pipeline) record(hash string) {
	p.window = append(p.window, dedupEntry{hash: hash, insertedAt: p.now()})
	if len(p.window) > p.windowSize {
		p.window = p.window[len(p.window)-p.windowSize:]
	}
}

// SplitOutgoing breaks a generated reply into send fragments. Spans
// wrapped in asterisks become emote commands; everything else is sent
// as plain text with quote characters stripped.
func SplitOutgoing(reply string) []string {
	reply = strings.TrimSpace(strings.ReplaceAll(reply, `"`, ""))
	if reply == "" {
		return nil
	}

	var parts []string
	for _, part := range splitKeepingActions(reply) {
		if strings.HasPrefix(part, "*") && strings.HasSuffix(part, "*") && len(part) >= 2 {
			action := strings.TrimSpace(part[1 : len(part)-1])
			if action != "" {
				parts = append(parts, "/me "+action)
			}
			continue
		}
		if clean := strings.TrimSpace(part); clean != "" {
			parts = append(parts, clean)
		}
	}
	return parts
}

// splitKeepingActions splits on *...* spans, keeping the spans
// themselves as separate elements in original order.
func splitKeepingActions(s string) []string {
	var out []string
	prev := 0
	for _, loc := range actionRe.FindAllStringIndex(s, -1) {
		if loc[0] > prev {
			out = append(out, s[prev:loc[0]])
		}
		out = append(out, s[loc[0]:loc[1]])
		prev = loc[1]
	}
	if prev < len(s) {
		out = append(out, s[prev:])
	}
	return out
}

func reverse(msgs []Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

// SetClock overrides the time source. Test hook.
func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
}
