package task

import (
	"strings"
	"unicode"
)

// Metric names accepted in task configs.
const (
	MetricAccuracy   = "accuracy"
	MetricExactMatch = "exact_match"
	MetricF1         = "f1"
)

// metricFunc scores one prediction against its reference answers and
// returns a value in [0, 1]. Multi-reference metrics take the best match.
type metricFunc func(pred string, targets []string) float64

var metricFuncs = map[string]metricFunc{
	MetricAccuracy:   exactMatch,
	MetricExactMatch: exactMatch,
	MetricF1:         tokenF1,
}

func exactMatch(pred string, targets []string) float64 {
	p := normalizeAnswer(pred)
	for _, tgt := range targets {
		if p == normalizeAnswer(tgt) {
			return 1
		}
	}
	return 0
}

// tokenF1 is the usual QA token-overlap F1, best over references.
func tokenF1(pred string, targets []string) float64 {
	predTokens := strings.Fields(normalizeAnswer(pred))
	best := 0.0
	for _, tgt := range targets {
		tgtTokens := strings.Fields(normalizeAnswer(tgt))
		best = max(best, f1Score(predTokens, tgtTokens))
	}
	return best
}

func f1Score(pred, target []string) float64 {
	if len(pred) == 0 || len(target) == 0 {
		if len(pred) == 0 && len(target) == 0 {
			return 1
		}
		return 0
	}
	counts := make(map[string]int, len(target))
	for _, tok := range target {
		counts[tok]++
	}
	common := 0
	for _, tok := range pred {
		if counts[tok] > 0 {
			counts[tok]--
			common++
		}
	}
	if common == 0 {
		return 0
	}
	precision := float64(common) / float64(len(pred))
	recall := float64(common) / float64(len(target))
	return 2 * precision * recall / (precision + recall)
}

// normalizeAnswer lowercases, strips punctuation and articles, and
// collapses whitespace before comparison.
func normalizeAnswer(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsPunct(r) {
			continue
		}
		b.WriteRune(r)
	}
	words := strings.Fields(b.String())
	kept := words[:0]
	for _, w := range words {
		if w == "a" || w == "an" || w == "the" {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}
