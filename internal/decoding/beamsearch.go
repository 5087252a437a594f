package decoding

import (
	"math"
	"slices"
	"sort"
)

// BeamSearch maintains a fixed-width set of candidate continuations. Each
// step expands every unfinished beam by its top candidates, re-ranks the
// expansions by cumulative log-probability, and prunes back to the beam
// width. A beam that emits an end token after the minimum target length is
// frozen and retained for final length-penalised ranking.
type BeamSearch struct {
	numBeams          int
	lengthPenalty     float64
	minTargetLength   int
	noRepeatNgramSize int
	endTokens         []int

	contextLength int
	steps         int
	finished      []Beam
}

// NewBeamSearch returns a beam-search strategy over cfg. NumBeams is
// clamped to at least one.
func NewBeamSearch(cfg Config) *BeamSearch {
	numBeams := cfg.NumBeams
	if numBeams < 1 {
		numBeams = 1
	}
	return &BeamSearch{
		numBeams:          numBeams,
		lengthPenalty:     cfg.LengthPenalty,
		minTargetLength:   cfg.MinTargetLength,
		noRepeatNgramSize: cfg.NoRepeatNgramSize,
		endTokens:         slices.Clone(cfg.EndTokens),
	}
}

func (s *BeamSearch) BatchSize() int { return s.numBeams }

func (s *BeamSearch) Reset(contextLength int) {
	s.contextLength = contextLength
	s.steps = 0
	s.finished = s.finished[:0]
}

type expansion struct {
	beam  int
	token int
	score float64
}

func (s *BeamSearch) Advance(beams []Beam, logits [][]float32) ([]Beam, bool) {
	// On the first step every beam holds the identical context, so only the
	// first is expanded; duplicates would otherwise crowd out diversity.
	expandable := beams
	if s.steps == 0 && len(beams) > 1 {
		expandable = beams[:1]
	}

	var candidates []expansion
	for i := range expandable {
		b := &expandable[i]
		if b.Finished {
			continue
		}
		lp := logSoftmax64(logits[i])

		if s.steps < s.minTargetLength {
			for _, end := range s.endTokens {
				if end >= 0 && end < len(lp) {
					lp[end] = math.Inf(-1)
				}
			}
		}
		if s.noRepeatNgramSize > 0 {
			gen := b.Tokens[min(s.contextLength, len(b.Tokens)):]
			for _, tok := range bannedNgramTokens(gen, s.noRepeatNgramSize) {
				if tok >= 0 && tok < len(lp) {
					lp[tok] = math.Inf(-1)
				}
			}
		}

		// Top 2*numBeams per beam is enough: at most numBeams survivors plus
		// candidates that finish.
		idx, val := topIndices(lp, 2*s.numBeams)
		for k := range idx {
			if math.IsInf(val[k], -1) {
				continue
			}
			candidates = append(candidates, expansion{beam: i, token: idx[k], score: b.Score + val[k]})
		}
	}

	slices.SortStableFunc(candidates, func(a, b expansion) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	next := make([]Beam, 0, s.numBeams)
	for _, c := range candidates {
		grown := Beam{
			Tokens: append(slices.Clone(expandable[c.beam].Tokens), c.token),
			Score:  c.score,
		}
		if slices.Contains(s.endTokens, c.token) {
			grown.Finished = true
			s.finished = append(s.finished, grown)
			continue
		}
		next = append(next, grown)
		if len(next) == s.numBeams {
			break
		}
	}

	s.steps++
	done := len(next) == 0
	if !done && len(s.finished) >= s.numBeams {
		// A full finished set alone is not enough to stop: a surviving beam
		// may still outrank the worst of the numBeams best finished
		// candidates.
		ranks := make([]float64, len(s.finished))
		for i, f := range s.finished {
			ranks[i] = s.rank(f)
		}
		sort.Float64s(ranks)
		worst := ranks[len(ranks)-s.numBeams]
		best := math.Inf(-1)
		for _, b := range next {
			if r := s.rank(b); r > best {
				best = r
			}
		}
		done = worst >= best
	}
	return next, done
}

// Finalize ranks finished beams by descending length-penalised score,
// breaking ties by insertion order. When nothing finished the surviving
// beams are ranked instead.
func (s *BeamSearch) Finalize(beams []Beam) []Beam {
	pool := slices.Clone(s.finished)
	if len(pool) == 0 {
		pool = slices.Clone(beams)
	}
	slices.SortStableFunc(pool, func(a, b Beam) int {
		ra, rb := s.rank(a), s.rank(b)
		switch {
		case ra > rb:
			return -1
		case ra < rb:
			return 1
		}
		return 0
	})
	return pool
}

// rank applies the length penalty: score / length^penalty over the
// generated span.
func (s *BeamSearch) rank(b Beam) float64 {
	if s.lengthPenalty == 0 {
		return b.Score
	}
	length := len(b.Tokens) - s.contextLength
	if length < 1 {
		length = 1
	}
	return b.Score / math.Pow(float64(length), s.lengthPenalty)
}

// topIndices returns up to k indices of the largest values, descending,
// ties resolved toward lower indices.
func topIndices(row []float64, k int) ([]int, []float64) {
	if k > len(row) {
		k = len(row)
	}
	idx := make([]int, 0, k+1)
	val := make([]float64, 0, k+1)
	for i, v := range row {
		pos := len(val)
		for pos > 0 && val[pos-1] < v {
			pos--
		}
		if pos >= k {
			continue
		}
		idx = append(idx, 0)
		val = append(val, 0)
		copy(idx[pos+1:], idx[pos:])
		copy(val[pos+1:], val[pos:])
		idx[pos] = i
		val[pos] = v
		if len(val) > k {
			idx = idx[:k]
			val = val[:k]
		}
	}
	return idx, val
}
