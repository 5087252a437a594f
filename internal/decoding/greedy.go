package decoding

import (
	"math"
	"math/rand"
	"slices"
	"time"
)

// Greedy is the single-beam sampling policy: at each step the next token is
// drawn from the temperature-scaled, top-k-filtered distribution (argmax
// when temperature is zero or k is one). Decoding stops when an end token
// is produced or the step loop hits the length bound.
type Greedy struct {
	temperature float64
	topK        int
	endTokens   []int
	rng         *rand.Rand

	topIdx []int
	topVal []float64
}

// NewGreedy returns a greedy/top-k strategy. Zero temperature means pure
// argmax; with a positive temperature, TopK <= 0 samples the whole
// vocabulary and TopK == 1 degenerates to argmax.
func NewGreedy(cfg Config) *Greedy {
	seed := cfg.Seed
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	return &Greedy{
		temperature: cfg.Temperature,
		topK:        cfg.TopK,
		endTokens:   slices.Clone(cfg.EndTokens),
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func (g *Greedy) BatchSize() int { return 1 }

func (g *Greedy) Reset(contextLength int) {}

func (g *Greedy) Advance(beams []Beam, logits [][]float32) ([]Beam, bool) {
	done := true
	next := make([]Beam, len(beams))
	for i, b := range beams {
		if b.Finished {
			next[i] = b
			continue
		}
		lp := logSoftmax64(logits[i])
		tok := g.sample(lp)
		nb := Beam{
			Tokens: append(slices.Clone(b.Tokens), tok),
			Score:  b.Score + lp[tok],
		}
		if slices.Contains(g.endTokens, tok) {
			nb.Finished = true
		} else {
			done = false
		}
		next[i] = nb
	}
	return next, done
}

func (g *Greedy) Finalize(beams []Beam) []Beam {
	out := slices.Clone(beams)
	slices.SortStableFunc(out, func(a, b Beam) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return out
}

// sample draws a token index from the log-probability row. Greedy argmax
// applies when temperature <= 0 or k == 1; otherwise the row is scaled by
// the inverse temperature, the top k entries are shortlisted, and a token
// is drawn from their renormalised distribution.
func (g *Greedy) sample(logProbs []float64) int {
	if g.temperature <= 0 || g.topK == 1 {
		best := 0
		for i := 1; i < len(logProbs); i++ {
			if logProbs[i] > logProbs[best] {
				best = i
			}
		}
		return best
	}

	invTemp := 1.0 / g.temperature
	k := g.topK
	if k <= 0 || k > len(logProbs) {
		k = len(logProbs)
	}
	topIdx, topVal := g.shortlist(logProbs, k, invTemp)

	maxv := topVal[0]
	var sum float64
	probs := make([]float64, len(topVal))
	for i, v := range topVal {
		e := math.Exp(v - maxv)
		probs[i] = e
		sum += e
	}
	if sum == 0 {
		return topIdx[0]
	}

	r := g.rng.Float64() * sum
	var c float64
	for i, p := range probs {
		c += p
		if r <= c {
			return topIdx[i]
		}
	}
	return topIdx[len(topIdx)-1]
}

// shortlist keeps the k largest scaled values ordered descending, using an
// insertion scan sized for small k.
func (g *Greedy) shortlist(logProbs []float64, k int, invTemp float64) ([]int, []float64) {
	if cap(g.topIdx) < k+1 {
		g.topIdx = make([]int, 0, k+1)
		g.topVal = make([]float64, 0, k+1)
	}
	topIdx := g.topIdx[:0]
	topVal := g.topVal[:0]

	for i, l := range logProbs {
		v := l * invTemp

		pos := len(topVal)
		for pos > 0 && topVal[pos-1] < v {
			pos--
		}
		if pos >= k {
			continue
		}

		topIdx = append(topIdx, 0)
		topVal = append(topVal, 0)
		copy(topIdx[pos+1:], topIdx[pos:])
		copy(topVal[pos+1:], topVal[pos:])
		topIdx[pos] = i
		topVal[pos] = v

		if len(topVal) > k {
			topIdx = topIdx[:k]
			topVal = topVal[:k]
		}
	}
	g.topIdx = topIdx
	g.topVal = topVal
	return topIdx, topVal
}
