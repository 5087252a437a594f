// Package scoring turns model logits into per-choice conditional
// log-probabilities and argmax label predictions.
package scoring

import (
	"fmt"
	"math"

	"github.com/calebms/spanfill/internal/encoding"
)

// ConditionalLogProb computes the conditional log-probability of every
// candidate choice for each sample in the batch.
//
// Single-token mode gathers the log-softmax value at the one shared target
// position for every candidate id. Multi-token mode sums the per-position
// log-probabilities over each choice's own target span, yielding the
// sequence log-likelihood of that choice; no length normalisation is
// applied.
func ConditionalLogProb(logits [][][]float32, batch encoding.ChoiceBatch) ([][]float64, error) {
	if len(logits) != len(batch.Tokens) {
		return nil, fmt.Errorf("logits batch size %d does not match %d samples", len(logits), len(batch.Tokens))
	}

	out := make([][]float64, len(logits))
	for b, sample := range logits {
		choices := batch.Choices[b]
		targetIDs := batch.ChoiceTargetIDs[b]

		// Log-softmax rows are computed lazily; most positions are never
		// gathered.
		rows := make([][]float64, len(sample))
		rowAt := func(pos int) ([]float64, error) {
			if pos < 0 || pos >= len(sample) {
				return nil, fmt.Errorf("target position %d outside sequence of %d", pos, len(sample))
			}
			if rows[pos] == nil {
				rows[pos] = logSoftmax(sample[pos])
			}
			return rows[pos], nil
		}

		scores := make([]float64, 0, len(choices))
		if batch.SingleToken {
			if len(targetIDs) == 0 || len(targetIDs[0]) == 0 {
				return nil, fmt.Errorf("sample %d: missing single-token target index", b)
			}
			row, err := rowAt(targetIDs[0][0])
			if err != nil {
				return nil, err
			}
			for _, choice := range choices {
				id := choice[0]
				if id < 0 || id >= len(row) {
					return nil, fmt.Errorf("sample %d: choice id %d outside vocabulary of %d", b, id, len(row))
				}
				scores = append(scores, row[id])
			}
		} else {
			if len(targetIDs) != len(choices) {
				return nil, fmt.Errorf("sample %d: %d target ranges for %d choices", b, len(targetIDs), len(choices))
			}
			for c, choice := range choices {
				ids := targetIDs[c]
				if len(ids) != len(choice) {
					return nil, fmt.Errorf("sample %d choice %d: %d target positions for %d tokens", b, c, len(ids), len(choice))
				}
				var sum float64
				for k, pos := range ids {
					row, err := rowAt(pos)
					if err != nil {
						return nil, err
					}
					id := choice[k]
					if id < 0 || id >= len(row) {
						return nil, fmt.Errorf("sample %d choice %d: token id %d outside vocabulary of %d", b, c, id, len(row))
					}
					sum += row[id]
				}
				scores = append(scores, sum)
			}
		}
		out[b] = scores
	}
	return out, nil
}

// ArgMax returns the index of the highest score, breaking ties toward the
// lowest index.
func ArgMax(scores []float64) int {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}

func logSoftmax(row []float32) []float64 {
	maxv := float64(math.Inf(-1))
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
