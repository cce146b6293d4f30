package lang

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// LinguaDetector backs the cascade's fallback step with a statistical
// model. Built once at startup; model loading is not cheap.
type LinguaDetector struct {
	detector lingua.LanguageDetector
}

func NewLinguaDetector() *LinguaDetector {
	languages := []lingua.Language{
		lingua.French,
		lingua.Spanish,
		lingua.English,
		lingua.Italian,
		lingua.German,
		lingua.Russian,
	}
	return &LinguaDetector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(languages...).
			Build(),
	}
}

func (d *LinguaDetector) Candidates(text string) []Candidate {
	values := d.detector.ComputeLanguageConfidenceValues(text)
	out := make([]Candidate, 0, len(values))
	for _, v := range values {
		out = append(out, Candidate{
			Lang: strings.ToLower(v.Language().IsoCode639_1().String()),
			Prob: v.Value(),
		})
	}
	return out
}
