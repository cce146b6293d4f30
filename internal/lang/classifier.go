// Package lang classifies the language of short, noisy chat messages
// and smooths the result so the active language does not flap.
package lang

import (
	"regexp"
	"strings"
)

// Candidate is one guess from the fallback probabilistic detector,
// ordered most-probable first.
type Candidate struct {
	Lang string
	Prob float64
}

// FallbackDetector is the general-purpose detector consulted only when
// every heuristic step fails on a long-enough text.
type FallbackDetector interface {
	Candidates(text string) []Candidate
}

// supported is the closed set of languages the bot will ever switch
// to, in tie-break order.
var supported = []string{"fr", "es", "en", "it", "de"}

var markers = map[string]map[string]struct{}{
	// Apostrophes are stripped before tokenizing, so contractions
	// arrive as separate tokens ("c'est" scores via "est").
	"fr": wordSet("est", "et", "le", "la", "les", "des", "un", "une", "je", "vous", "nous", "pour", "avec", "mais", "pas", "ça"),
	"es": wordSet("el", "la", "los", "las", "un", "una", "y", "es", "que", "en", "por", "para", "con", "del", "lo", "mi", "su"),
	"en": wordSet("the", "and", "is", "it", "to", "for", "with", "you", "are", "this", "that", "not", "have"),
	"it": wordSet("il", "la", "i", "le", "un", "una", "e", "è", "di", "a", "in", "che", "non", "per", "con", "su", "mi", "ti", "si"),
	"de": wordSet("der", "die", "das", "den", "dem", "des", "ein", "eine", "einer", "einem", "einen", "und", "ist", "mit", "für", "von", "zu", "dass", "nicht"),
}

// Characters that appear in exactly one of the supported languages.
// Order matters: es is checked before it, so the shared é resolves to es.
var uniqueChars = []struct {
	lang  string
	chars string
}{
	{"es", "ñ¿¡áéíóú"},
	{"fr", "çœ"},
	{"it", "àèéìòù"},
	{"de", "äöüß"},
}

var (
	letterFilterRe = regexp.MustCompile(`[^a-zA-Zа-яА-ЯёЁñáéíóúüçàâêèéëîïôûùœæ¿¡]`)
	cyrillicRe     = regexp.MustCompile(`[а-яА-ЯёЁ]`)
)

// Classifier runs the detection cascade. Stateless apart from the
// optional fallback detector.
type Classifier struct {
	fallback FallbackDetector
}

func NewClassifier(fallback FallbackDetector) *Classifier {
	return &Classifier{fallback: fallback}
}

// Detect returns the detected language and whether the single
// classification is trusted enough to switch immediately.
//
// Cascade, first matching step wins: Cyrillic dominance, unique
// diacritics, stop-word scoring, probabilistic fallback, then en.
func (c *Classifier) Detect(text, current string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	trimLen := len([]rune(trimmed))
	if trimLen < 2 {
		return current, false
	}

	clean := letterFilterRe.ReplaceAllString(strings.ToLower(text), " ")
	words := strings.Fields(clean)

	cyrillic := len(cyrillicRe.FindAllString(clean, -1))
	letters := len([]rune(strings.ReplaceAll(clean, " ", "")))

	if letters > 0 && float64(cyrillic)/float64(letters) > 0.15 {
		return "ru", trimLen > 5 || cyrillic > 2
	}

	for _, uc := range uniqueChars {
		if strings.ContainsAny(text, uc.chars) {
			return uc.lang, trimLen > 10
		}
	}

	scores := make(map[string]int, len(supported))
	for _, w := range words {
		for _, l := range supported {
			if _, ok := markers[l][w]; ok {
				scores[l]++
				break
			}
		}
	}
	best, bestScore := "", 0
	for _, l := range supported {
		if scores[l] > bestScore {
			best, bestScore = l, scores[l]
		}
	}
	if bestScore > 0 {
		return best, bestScore >= 2 || (bestScore == 1 && trimLen > 20)
	}

	if trimLen > 15 && c.fallback != nil {
		for _, cand := range c.fallback.Candidates(text) {
			if !isSupported(cand.Lang) {
				continue
			}
			if cand.Prob > 0.9 {
				return cand.Lang, true
			}
			if cand.Prob > 0.7 {
				return cand.Lang, false
			}
		}
	}

	return "en", false
}

func isSupported(lang string) bool {
	for _, l := range supported {
		if l == lang {
			return true
		}
	}
	return false
}

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// CaptureLanguage maps an active language to the OCR engine language
// pack passed to the capture collaborator.
func CaptureLanguage(lang string) string {
	switch lang {
	case "ru":
		return "eng+rus"
	case "fr":
		return "eng+fra"
	case "es":
		return "eng+spa"
	case "it":
		return "eng+ita"
	case "de":
		return "eng+deu"
	default:
		return "eng"
	}
}
