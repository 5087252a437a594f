package scoring

import (
	"math"
	"testing"

	"github.com/calebms/spanfill/internal/encoding"
)

// logitsRow builds a vocab-sized row with the given id boosted.
func logitsRow(vocab, hot int, v float32) []float32 {
	row := make([]float32, vocab)
	row[hot] = v
	return row
}

func TestSingleTokenGatherAndArgMax(t *testing.T) {
	t.Parallel()
	const vocab = 12
	// One sample, target position 3, candidates {5, 7, 9} with 7 dominant.
	logits := [][][]float32{{
		logitsRow(vocab, 0, 0),
		logitsRow(vocab, 0, 0),
		logitsRow(vocab, 0, 0),
		logitsRow(vocab, 7, 4),
	}}
	batch := encoding.ChoiceBatch{
		Tokens:          [][]int{make([]int, 4)},
		Choices:         [][][]int{{{5}, {7}, {9}}},
		ChoiceTargetIDs: [][][]int{{{3}}},
		SingleToken:     true,
	}
	scores, err := ConditionalLogProb(logits, batch)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(scores[0]) != 3 {
		t.Fatalf("expected 3 choice scores, got %v", scores[0])
	}
	if got := ArgMax(scores[0]); got != 1 {
		t.Fatalf("argmax: got %d, want 1 (token 7)", got)
	}
}

func TestMultiTokenSumsSpan(t *testing.T) {
	t.Parallel()
	const vocab = 8
	// Uniform rows give each position log(1/vocab); a two-token choice must
	// score exactly twice a one-token choice.
	uniform := make([]float32, vocab)
	logits := [][][]float32{{uniform, uniform, uniform, uniform}}
	batch := encoding.ChoiceBatch{
		Tokens:          [][]int{make([]int, 4)},
		Choices:         [][][]int{{{1, 2}, {3}}},
		ChoiceTargetIDs: [][][]int{{{1, 2}, {3}}},
		SingleToken:     false,
	}
	scores, err := ConditionalLogProb(logits, batch)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	// Regression: the multi-token branch must report a score for every
	// choice, not just accumulate and drop them.
	if len(scores[0]) != 2 {
		t.Fatalf("expected a score per choice, got %v", scores[0])
	}
	per := -math.Log(float64(vocab))
	if math.Abs(scores[0][0]-2*per) > 1e-9 {
		t.Fatalf("two-token score: got %f, want %f", scores[0][0], 2*per)
	}
	if math.Abs(scores[0][1]-per) > 1e-9 {
		t.Fatalf("one-token score: got %f, want %f", scores[0][1], per)
	}
}

func TestMultiTokenPrefersLikelySpan(t *testing.T) {
	t.Parallel()
	const vocab = 6
	logits := [][][]float32{{
		logitsRow(vocab, 0, 0),
		logitsRow(vocab, 2, 5), // position 1 strongly prefers token 2
		logitsRow(vocab, 3, 5), // position 2 strongly prefers token 3
	}}
	batch := encoding.ChoiceBatch{
		Tokens:          [][]int{make([]int, 3)},
		Choices:         [][][]int{{{2, 3}, {4, 5}}},
		ChoiceTargetIDs: [][][]int{{{1, 2}, {1, 2}}},
		SingleToken:     false,
	}
	scores, err := ConditionalLogProb(logits, batch)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if ArgMax(scores[0]) != 0 {
		t.Fatalf("expected choice 0 to win, scores %v", scores[0])
	}
}

func TestArgMaxTieBreaksLow(t *testing.T) {
	t.Parallel()
	if got := ArgMax([]float64{-1, -0.5, -0.5}); got != 1 {
		t.Fatalf("tie must break to first occurrence, got %d", got)
	}
}

func TestBatchSizeMismatch(t *testing.T) {
	t.Parallel()
	_, err := ConditionalLogProb(nil, encoding.ChoiceBatch{Tokens: [][]int{{0}}})
	if err == nil {
		t.Fatal("expected size mismatch error")
	}
}

func TestLogSoftmaxNormalises(t *testing.T) {
	t.Parallel()
	row := []float32{1, 2, 3}
	out := logSoftmax(row)
	var sum float64
	for _, v := range out {
		sum += math.Exp(v)
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("probabilities sum to %f", sum)
	}
	if !(out[2] > out[1] && out[1] > out[0]) {
		t.Fatalf("ordering not preserved: %v", out)
	}
}
