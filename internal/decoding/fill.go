package decoding

import (
	"context"
	"fmt"
	"slices"

	"github.com/calebms/spanfill/internal/encoding"
	"github.com/calebms/spanfill/internal/model"
)

// Unfilled is the sentinel marking positions not yet generated in a fill
// buffer. Outputs are padded back to the buffer length with it so callers
// can locate the unfinished tail.
const Unfilled = -1

// FillSequence runs the per-span generation loop. seq is a fixed-size
// buffer whose prefix holds real tokens and whose tail is Unfilled
// sentinels; positionIDs and mask cover the full buffer length. The model
// is invoked once per step over the growing beam batch until the strategy
// reports completion or the buffer is exhausted. Outputs are the ranked
// beam sequences padded back to the buffer length with sentinels.
func FillSequence(ctx context.Context, fwd model.Forwarder, seq, positionIDs []int, mask encoding.Mask, strat Strategy) ([][]int, error) {
	if len(positionIDs) < len(seq) || mask.Len() < len(seq) {
		return nil, fmt.Errorf("fill plan smaller than sequence: %d positions, %d mask for %d tokens", len(positionIDs), mask.Len(), len(seq))
	}
	contextLength := slices.Index(seq, Unfilled)
	if contextLength < 0 {
		contextLength = len(seq)
	}

	strat.Reset(contextLength)
	beams := make([]Beam, strat.BatchSize())
	for i := range beams {
		beams[i] = Beam{Tokens: slices.Clone(seq[:contextLength])}
	}

	for len(beams) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := len(beams[0].Tokens)
		if cur >= len(seq) {
			break
		}
		allFinished := true
		for _, b := range beams {
			if !b.Finished {
				allFinished = false
				break
			}
		}
		if allFinished {
			break
		}

		tokens := make([][]int, len(beams))
		positions := make([][]int, len(beams))
		masks := make([]encoding.Mask, len(beams))
		stepMask := mask.Slice(cur)
		for i, b := range beams {
			tokens[i] = b.Tokens
			positions[i] = positionIDs[:cur]
			masks[i] = stepMask
		}

		logits, err := fwd.Forward(ctx, tokens, positions, masks)
		if err != nil {
			return nil, fmt.Errorf("forward at length %d: %w", cur, err)
		}
		if len(logits) != len(beams) {
			return nil, fmt.Errorf("forward returned %d rows for %d beams", len(logits), len(beams))
		}

		stepLogits := make([][]float32, len(beams))
		for i := range logits {
			if len(logits[i]) < cur {
				return nil, fmt.Errorf("forward returned %d positions, need %d", len(logits[i]), cur)
			}
			stepLogits[i] = logits[i][cur-1]
		}

		var done bool
		beams, done = strat.Advance(beams, stepLogits)
		if done {
			break
		}
	}

	ranked := strat.Finalize(beams)
	out := make([][]int, len(ranked))
	for i, b := range ranked {
		padded := make([]int, len(seq))
		n := copy(padded, b.Tokens)
		for j := n; j < len(seq); j++ {
			padded[j] = Unfilled
		}
		out[i] = padded
	}
	return out, nil
}
