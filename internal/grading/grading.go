// Package grading scores submitted answers. Every function is pure and
// deterministic; nothing here performs I/O.
package grading

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SpokenPassMark is the overall score at which a spoken answer counts as correct.
const SpokenPassMark = 60.0

// AxisScores are the four speaking analysis axes, each in [0, 100].
type AxisScores struct {
	Pronunciation float64 `json:"pronunciation"`
	Grammar       float64 `json:"grammar"`
	Vocabulary    float64 `json:"vocabulary"`
	Fluency       float64 `json:"fluency"`
}

// Weights of each axis in the overall speaking score. They sum to 1.
var Weights = AxisScores{
	Pronunciation: 0.30,
	Grammar:       0.25,
	Vocabulary:    0.20,
	Fluency:       0.25,
}

// GradeChoice reports whether a multiple-choice selection is correct.
// A nil selection is unanswered and therefore incorrect.
func GradeChoice(submitted *int, correctIndex int) bool {
	return submitted != nil && *submitted == correctIndex
}

// Normalize prepares free text for comparison: Unicode lowercase, collapse
// whitespace runs to one space, trim, then drop trailing periods.
// Other punctuation is kept.
func Normalize(s string) string {
	// Casers carry state, so one per call.
	s = cases.Lower(language.Und).String(s)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRight(s, ".")
	return strings.TrimSpace(s)
}

// GradeFreeText compares a translation against its canonical answer. An
// empty canonical answer never matches.
func GradeFreeText(submitted, canonical string) bool {
	c := Normalize(canonical)
	return c != "" && Normalize(submitted) == c
}

// WordCount is the whitespace-split word count used for the minimum-length
// guard on translation answers.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

var hundred = decimal.NewFromInt(100)

// Score is round-half-up(100 * correct / total), or 0 when total is 0.
func Score(correct, total int) int {
	if total <= 0 {
		return 0
	}
	correct = min(max(correct, 0), total)
	pct := decimal.NewFromInt(int64(correct)).Mul(hundred).Div(decimal.NewFromInt(int64(total)))
	return int(pct.Round(0).IntPart())
}

// Overall is the weighted speaking score rounded half-up to two decimals.
// Axes are clamped to [0, 100] first.
func Overall(a AxisScores) float64 {
	a = a.Clamp()
	sum := weighted(a.Pronunciation, Weights.Pronunciation).
		Add(weighted(a.Grammar, Weights.Grammar)).
		Add(weighted(a.Vocabulary, Weights.Vocabulary)).
		Add(weighted(a.Fluency, Weights.Fluency))
	return sum.Round(2).InexactFloat64()
}

func weighted(v, w float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Mul(decimal.NewFromFloat(w))
}

// Clamp bounds every axis to [0, 100].
func (a AxisScores) Clamp() AxisScores {
	return AxisScores{
		Pronunciation: clamp(a.Pronunciation),
		Grammar:       clamp(a.Grammar),
		Vocabulary:    clamp(a.Vocabulary),
		Fluency:       clamp(a.Fluency),
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return min(max(v, 0), 100)
}

// averageAxes returns the per-axis mean, each rounded to two decimals.
func averageAxes(all []AxisScores) AxisScores {
	if len(all) == 0 {
		return AxisScores{}
	}
	var p, g, v, f decimal.Decimal
	for _, a := range all {
		a = a.Clamp()
		p = p.Add(decimal.NewFromFloat(a.Pronunciation))
		g = g.Add(decimal.NewFromFloat(a.Grammar))
		v = v.Add(decimal.NewFromFloat(a.Vocabulary))
		f = f.Add(decimal.NewFromFloat(a.Fluency))
	}
	n := decimal.NewFromInt(int64(len(all)))
	mean := func(d decimal.Decimal) float64 { return d.Div(n).Round(2).InexactFloat64() }
	return AxisScores{Pronunciation: mean(p), Grammar: mean(g), Vocabulary: mean(v), Fluency: mean(f)}
}
