// Package decoding implements the pluggable token-generation policies
// (greedy/top-k sampling and beam search) and the step loop that drives a
// model forward pass through them.
package decoding

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnknownStrategy marks an unrecognised strategy name. It is fatal at
// startup, before any forward call.
var ErrUnknownStrategy = errors.New("unknown sampling strategy")

// Strategy names accepted by New.
const (
	StrategyGreedy     = "greedy"
	StrategyBeamSearch = "beam-search"
)

// Beam is one candidate sequence with its cumulative log-probability.
// Scores only decrease as the sequence extends. A finished beam is frozen:
// it is excluded from expansion but retained for final ranking.
type Beam struct {
	Tokens   []int
	Score    float64
	Finished bool
}

// Strategy is the common decoding contract: consume the next-step logits
// for every beam and produce the next beam set.
type Strategy interface {
	// BatchSize is the number of parallel beams the model is run with.
	BatchSize() int
	// Reset clears per-request state before a new fill round.
	// contextLength is the number of tokens preceding the generated span.
	Reset(contextLength int)
	// Advance consumes one logits row per beam (rows for finished beams are
	// ignored) and returns the surviving beams plus whether decoding is
	// complete.
	Advance(beams []Beam, logits [][]float32) ([]Beam, bool)
	// Finalize ranks the finished output best first.
	Finalize(beams []Beam) []Beam
}

// Config selects and parameterises a decoding strategy.
type Config struct {
	Strategy string

	// Beam search.
	NumBeams          int
	LengthPenalty     float64
	NoRepeatNgramSize int
	MinTargetLength   int

	// Greedy / top-k sampling.
	Temperature float64
	TopK        int
	Seed        int64

	// Tokens that terminate a generated span (eop, eos).
	EndTokens []int
}

// New builds the strategy named by cfg.Strategy.
func New(cfg Config) (Strategy, error) {
	switch cfg.Strategy {
	case StrategyGreedy:
		return NewGreedy(cfg), nil
	case StrategyBeamSearch:
		return NewBeamSearch(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Strategy)
	}
}

// logSoftmax64 converts a logits row to float64 log-probabilities.
func logSoftmax64(row []float32) []float64 {
	maxv := math.Inf(-1)
	for _, v := range row {
		if float64(v) > maxv {
			maxv = float64(v)
		}
	}
	var sum float64
	for _, v := range row {
		sum += math.Exp(float64(v) - maxv)
	}
	logSum := maxv + math.Log(sum)
	out := make([]float64, len(row))
	for i, v := range row {
		out[i] = float64(v) - logSum
	}
	return out
}

// bannedNgramTokens returns the next tokens that would repeat an n-gram
// already present in gen. With fewer than n-1 generated tokens nothing is
// banned.
func bannedNgramTokens(gen []int, n int) []int {
	if n <= 0 || len(gen) < n-1 {
		return nil
	}
	prefix := gen[len(gen)-(n-1):]
	var banned []int
scan:
	for i := 0; i+n-1 < len(gen); i++ {
		for k := 0; k < n-1; k++ {
			if gen[i+k] != prefix[k] {
				continue scan
			}
		}
		banned = append(banned, gen[i+n-1])
	}
	return banned
}
