// Package nick normalizes OCR-mangled author tokens and resolves them
// against the known nick lists.
package nick

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// charMap corrects common OCR confusions: visually similar Cyrillic
// letters and digits mapped to their Latin look-alikes. Nicknames are
// always Latin script per server rules, so this is safe to apply.
var charMap = map[rune]rune{
	'А': 'A', 'В': 'B', 'С': 'C', 'Е': 'E', 'Н': 'H', 'К': 'K',
	'М': 'M', 'О': 'O', 'Р': 'P', 'Т': 'T', 'Х': 'X', 'У': 'Y', 'І': 'I',
	'а': 'a', 'с': 'c', 'е': 'e', 'к': 'k', 'о': 'o', 'р': 'p',
	'х': 'x', 'у': 'y', 'і': 'i',
	'0': 'O', '1': 'I', '2': 'Z', '3': 'E', '4': 'A', '5': 'S',
	'6': 'G', '7': 'T', '8': 'B',
}

// Resolver holds the ignore/target nick sets and performs exact and
// fuzzy lookups. It is owned by a single goroutine; no locking.
type Resolver struct {
	ignore    map[string]struct{}
	target    map[string]struct{}
	threshold float64
	logger    *slog.Logger
}

func NewResolver(ignore, target []string, threshold float64, logger *slog.Logger) *Resolver {
	r := &Resolver{threshold: threshold, logger: logger}
	r.UpdateSets(ignore, target)
	return r
}

// Normalize applies the OCR substitution table and lowercases.
func Normalize(nick string) string {
	var b strings.Builder
	b.Grow(len(nick))
	for _, c := range nick {
		if repl, ok := charMap[c]; ok {
			c = repl
		}
		b.WriteRune(c)
	}
	return strings.ToLower(b.String())
}

// UpdateSets replaces both nick lists, re-normalizing every entry and
// dropping entries that normalize to the empty string.
func (r *Resolver) UpdateSets(ignore, target []string) {
	r.ignore = normalizeSet(ignore)
	r.target = normalizeSet(target)
	if r.logger != nil {
		r.logger.Debug("nick sets updated", "ignore", len(r.ignore), "target", len(r.target))
	}
}

func normalizeSet(nicks []string) map[string]struct{} {
	set := make(map[string]struct{}, len(nicks))
	for _, n := range nicks {
		norm := Normalize(strings.TrimSpace(n))
		if norm == "" {
			continue
		}
		set[norm] = struct{}{}
	}
	return set
}

// Resolve maps a normalized token to a canonical known nick. Exact
// membership wins; otherwise the best-scoring fuzzy candidate is
// accepted when its similarity ratio exceeds the threshold.
func (r *Resolver) Resolve(token string) (string, bool) {
	lower := strings.ToLower(token)
	if r.isKnown(lower) {
		return lower, true
	}

	best := ""
	bestRatio := r.threshold
	for _, known := range r.allKnown() {
		ratio := similarity(lower, known)
		if ratio > bestRatio {
			bestRatio = ratio
			best = known
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// similarity is an edit-distance ratio in [0,1]: identical strings
// score 1, disjoint strings score 0.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

func (r *Resolver) isKnown(nick string) bool {
	if _, ok := r.ignore[nick]; ok {
		return true
	}
	_, ok := r.target[nick]
	return ok
}

func (r *Resolver) IsIgnored(nick string) bool {
	_, ok := r.ignore[nick]
	return ok
}

func (r *Resolver) IsTarget(nick string) bool {
	_, ok := r.target[nick]
	return ok
}

// AddTarget inserts an already-normalized nick into the target set.
// Returns false if the nick is empty or already known.
func (r *Resolver) AddTarget(nick string) bool {
	if nick == "" || r.isKnown(nick) {
		return false
	}
	r.target[nick] = struct{}{}
	return true
}

func (r *Resolver) RemoveTarget(nick string) {
	delete(r.target, nick)
}

func (r *Resolver) ClearTargets() {
	r.target = make(map[string]struct{})
}

func (r *Resolver) TargetNicks() []string {
	return sortedKeys(r.target)
}

func (r *Resolver) IgnoreNicks() []string {
	return sortedKeys(r.ignore)
}

func (r *Resolver) allKnown() []string {
	all := make([]string, 0, len(r.ignore)+len(r.target))
	for n := range r.ignore {
		all = append(all, n)
	}
	for n := range r.target {
		all = append(all, n)
	}
	sort.Strings(all)
	return all
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
