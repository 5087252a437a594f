package encoding

import "fmt"

// Tile is the padding granularity for collated batches. Batch sequence
// lengths are rounded up to a multiple of it to keep tensor shapes
// accelerator friendly.
const Tile = 32

// ChoiceBatch is a stack of padded multiple-choice samples. Choices and
// ChoiceTargetIDs stay per-sample and variable shape; the scoring engine
// consumes them sample by sample.
type ChoiceBatch struct {
	Tokens        [][]int
	PositionIDs   [][]int
	AttentionMask []Mask

	Choices         [][][]int
	ChoiceTargetIDs [][][]int
	SingleToken     bool
}

// CollateChoices pads every sample to the batch's rounded-up maximum length
// and stacks them. All samples must agree on single-token mode; a mixed
// batch is a dataset construction bug upstream.
func CollateChoices(samples []ChoiceSample) (ChoiceBatch, error) {
	if len(samples) == 0 {
		return ChoiceBatch{}, fmt.Errorf("empty batch")
	}
	single := samples[0].SingleToken
	maxLen := 0
	for _, s := range samples {
		if s.SingleToken != single {
			return ChoiceBatch{}, ErrInconsistentBatch
		}
		if len(s.Tokens) > maxLen {
			maxLen = len(s.Tokens)
		}
	}
	length := (maxLen + Tile - 1) / Tile * Tile

	batch := ChoiceBatch{
		Tokens:          make([][]int, 0, len(samples)),
		PositionIDs:     make([][]int, 0, len(samples)),
		AttentionMask:   make([]Mask, 0, len(samples)),
		Choices:         make([][][]int, 0, len(samples)),
		ChoiceTargetIDs: make([][][]int, 0, len(samples)),
		SingleToken:     single,
	}
	for _, s := range samples {
		batch.Tokens = append(batch.Tokens, padInts(s.Tokens, length))
		batch.PositionIDs = append(batch.PositionIDs, padInts(s.PositionIDs, length))
		batch.AttentionMask = append(batch.AttentionMask, s.AttentionMask.padTo(length))
		batch.Choices = append(batch.Choices, s.Choices)
		batch.ChoiceTargetIDs = append(batch.ChoiceTargetIDs, s.ChoiceTargetIDs)
	}
	return batch, nil
}

func padInts(xs []int, n int) []int {
	out := make([]int, n)
	copy(out, xs)
	return out
}
