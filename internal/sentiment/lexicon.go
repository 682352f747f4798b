// Package sentiment provides the default in-process polarity scorer. The
// Scorer port in the domain package keeps heavier external scorers
// pluggable; this implementation trades accuracy for determinism and zero
// dependencies at runtime.
package sentiment

import (
	"context"
	"strings"
)

// wordScores is a small signed polarity lexicon over lower-cased words.
var wordScores = map[string]float64{
	"amazing":    0.8,
	"awesome":    0.9,
	"awful":      -0.9,
	"bad":        -0.6,
	"best":       0.9,
	"better":     0.4,
	"broken":     -0.5,
	"crisis":     -0.7,
	"danger":     -0.6,
	"dangerous":  -0.6,
	"dead":       -0.8,
	"death":      -0.8,
	"deaths":     -0.8,
	"disaster":   -0.8,
	"dying":      -0.8,
	"excellent":  0.9,
	"fading":     0.3,
	"fail":       -0.6,
	"failure":    -0.6,
	"fear":       -0.6,
	"good":       0.6,
	"great":      0.8,
	"happy":      0.7,
	"hate":       -0.8,
	"healthy":    0.6,
	"hope":       0.5,
	"hopeful":    0.6,
	"improving":  0.5,
	"love":       0.8,
	"nice":       0.5,
	"panic":      -0.7,
	"perfect":    0.9,
	"poor":       -0.5,
	"positive":   0.4,
	"recover":    0.5,
	"recovered":  0.6,
	"recovering": 0.5,
	"recovery":   0.5,
	"sad":        -0.6,
	"safe":       0.5,
	"scared":     -0.6,
	"sick":       -0.5,
	"terrible":   -0.9,
	"thanks":     0.5,
	"tragedy":    -0.8,
	"win":        0.6,
	"wonderful":  0.9,
	"worse":      -0.6,
	"worst":      -0.9,
	"wrong":      -0.4,
}

// Scorer scores normalized text against the word lexicon.
type Scorer struct{}

// New returns the lexicon scorer.
func New() *Scorer {
	return &Scorer{}
}

// Score returns the mean lexicon score of the matched words as polarity and
// the matched fraction of all words as subjectivity. Text with no matched
// words scores neutral. It never fails.
func (s *Scorer) Score(_ context.Context, text string) (float64, float64, error) {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0, 0, nil
	}

	var sum float64
	var matched int
	for _, w := range words {
		if v, ok := wordScores[w]; ok {
			sum += v
			matched++
		}
	}
	if matched == 0 {
		return 0, 0, nil
	}
	return sum / float64(matched), float64(matched) / float64(len(words)), nil
}
