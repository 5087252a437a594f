package encoding

import (
	"fmt"
	"slices"
)

// Sample is one encoded generation item, shaped for a single forward pass.
// Tokens and PositionIDs are right-padded to the configured max length;
// ContextLength counts the real tokens, appended control tokens included.
type Sample struct {
	Tokens        []int
	PositionIDs   []int
	AttentionMask Mask
	ContextLength int
}

// GenerationOptions configures BuildGenerationSample.
type GenerationOptions struct {
	MaxLength      int
	UseTaskMask    bool
	Unidirectional bool

	// Command token ids resolved by the tokenizer. MaskID is [gMASK] when
	// task masking is active, [MASK] otherwise.
	MaskID int
	SopID  int
}

// BuildGenerationSample encodes a token sequence for span generation.
//
// When the mask token already occurs in the input (blank-filling mode) a
// start-of-prediction token is appended after the sequence and the mask's
// index becomes the anchor position; blank filling is incompatible with both
// unidirectional attention and task masking. Otherwise a mask+sop pair is
// synthesised: prepended for unidirectional encoding, appended for
// bidirectional.
//
// Position ids run 0..MaxLength-1. Without task masking every position from
// ContextLength-1 onward is overwritten with the mask position, giving the
// whole predicted span a single shared anchor. The attention mask is causal,
// and for bidirectional encodings the context block
// [0:ContextLength-1) x [0:ContextLength-1) is fully visible.
func BuildGenerationSample(tokens []int, opt GenerationOptions) (Sample, error) {
	blankFilling := slices.Contains(tokens, opt.MaskID)

	var (
		seq          []int
		maskPosition int
	)
	if blankFilling {
		if opt.Unidirectional {
			return Sample{}, fmt.Errorf("%w: unidirectional attention does not support blank filling", ErrConfigConflict)
		}
		if opt.UseTaskMask {
			return Sample{}, fmt.Errorf("%w: task mask does not support blank filling", ErrConfigConflict)
		}
		maskPosition = slices.Index(tokens, opt.MaskID)
		seq = append(append(seq, tokens...), opt.SopID)
	} else {
		maskPosition = len(tokens)
		if opt.Unidirectional {
			seq = append(seq, opt.MaskID, opt.SopID)
			seq = append(seq, tokens...)
		} else {
			seq = append(append(seq, tokens...), opt.MaskID, opt.SopID)
		}
	}
	contextLength := len(seq)
	if contextLength > opt.MaxLength {
		return Sample{}, fmt.Errorf("%w: %d tokens with controls, max %d", ErrSequenceTooLong, contextLength, opt.MaxLength)
	}

	positionIDs := make([]int, opt.MaxLength)
	for i := range positionIDs {
		positionIDs[i] = i
	}
	if !opt.UseTaskMask {
		for i := contextLength - 1; i < opt.MaxLength; i++ {
			positionIDs[i] = maskPosition
		}
	}

	mask := NewCausalMask(opt.MaxLength)
	if !opt.Unidirectional {
		mask.FillBlock(0, contextLength-1, 0, contextLength-1)
	}

	padded := make([]int, opt.MaxLength)
	copy(padded, seq)

	return Sample{
		Tokens:        padded,
		PositionIDs:   positionIDs,
		AttentionMask: mask,
		ContextLength: contextLength,
	}, nil
}

// BuildInfillPlan derives position ids and the attention mask for one round
// of iterative mask filling over a working sequence of seqLen tokens. The
// context (everything before the start-of-prediction token) is fully
// visible to every row; generation beyond it is causal. Without task
// masking, positions from contextLength-1 onward collapse to the mask
// position.
func BuildInfillPlan(seqLen, maskPosition, contextLength int, useTaskMask bool) ([]int, Mask) {
	positionIDs := make([]int, seqLen)
	for i := range positionIDs {
		positionIDs[i] = i
	}
	if !useTaskMask {
		for i := contextLength - 1; i < seqLen; i++ {
			positionIDs[i] = maskPosition
		}
	}

	mask := NewCausalMask(seqLen)
	mask.FillBlock(0, seqLen, 0, contextLength-1)

	return positionIDs, mask
}
