package encoding

import (
	"fmt"
	"slices"
)

// ChoiceSample is one encoded multiple-choice item. The token sequence
// holds the context, the mask token, and per-choice spans introduced by a
// start-of-prediction token. Targets carries the aligned ground-truth ids
// for bookkeeping only; it is never fed to the model.
type ChoiceSample struct {
	Tokens        []int
	PositionIDs   []int
	AttentionMask Mask
	Targets       []int

	// Choices holds every candidate's token ids. In single-token mode each
	// candidate is exactly one id and one shared encoding covers them all.
	Choices         [][]int
	ChoiceTargetIDs [][]int
	SingleToken     bool
}

// MultiChoiceOptions configures BuildMultiChoiceSample.
type MultiChoiceOptions struct {
	MaxLength        int
	SingleToken      bool
	UnifiedMultitask bool

	MaskID int
	SopID  int
}

// BuildMultiChoiceSample encodes a context and its candidate choices into a
// single joint sequence with block-diagonal attention.
//
// A mask token is appended when the context carries none. Each choice span
// gets position ids anchored at the mask position (or incrementing from it
// under unified multitask encoding), a recorded target-index range, and a
// causal block in the attention mask. Shared-context columns are visible to
// every row; a choice never sees another choice's tokens. In single-token
// mode only the first span is materialised since one encoding covers all
// candidates.
func BuildMultiChoiceSample(text []int, choices [][]int, opt MultiChoiceOptions) (ChoiceSample, error) {
	if len(choices) == 0 {
		return ChoiceSample{}, fmt.Errorf("multichoice encoding requires at least one choice")
	}
	for c, choice := range choices {
		if len(choice) == 0 {
			return ChoiceSample{}, fmt.Errorf("multichoice encoding requires non-empty choices: choice %d is empty", c)
		}
	}
	blankFilling := slices.Contains(text, opt.MaskID)
	if blankFilling && opt.UnifiedMultitask {
		return ChoiceSample{}, fmt.Errorf("%w: unified multitask encoding does not support blank filling", ErrConfigConflict)
	}

	tokens := slices.Clone(text)
	targets := slices.Clone(text)
	positionIDs := make([]int, 0, len(text)+8)
	for i := range text {
		positionIDs = append(positionIDs, i)
	}

	var maskPosition int
	if blankFilling {
		maskPosition = slices.Index(text, opt.MaskID)
	} else {
		maskPosition = len(tokens)
		tokens = append(tokens, opt.MaskID)
		targets = append(targets, opt.MaskID)
		positionIDs = append(positionIDs, maskPosition)
	}

	division := len(tokens)
	contextBlock := NewMask(division)
	contextBlock.FillBlock(0, division, 0, division)
	blocks := []Mask{contextBlock}

	choiceTargetIDs := make([][]int, 0, len(choices))
	for _, choice := range choices {
		if opt.UnifiedMultitask && !blankFilling {
			for k := range choice {
				positionIDs = append(positionIDs, maskPosition+k)
			}
		} else {
			for range choice {
				positionIDs = append(positionIDs, maskPosition)
			}
		}

		targetIDs := make([]int, len(choice))
		for k := range choice {
			targetIDs[k] = len(tokens) + k
		}
		choiceTargetIDs = append(choiceTargetIDs, targetIDs)

		blocks = append(blocks, NewCausalMask(len(choice)))
		tokens = append(tokens, opt.SopID)
		tokens = append(tokens, choice[:len(choice)-1]...)
		targets = append(targets, choice...)

		if opt.SingleToken {
			break
		}
	}

	if len(tokens) > opt.MaxLength {
		return ChoiceSample{}, fmt.Errorf("%w: %d tokens with choices, max %d", ErrSequenceTooLong, len(tokens), opt.MaxLength)
	}

	mask := blockDiag(blocks...)
	mask.FillBlock(0, len(tokens), 0, division)

	return ChoiceSample{
		Tokens:          tokens,
		PositionIDs:     positionIDs,
		AttentionMask:   mask,
		Targets:         targets,
		Choices:         choices,
		ChoiceTargetIDs: choiceTargetIDs,
		SingleToken:     opt.SingleToken,
	}, nil
}

// IsSingleToken reports whether every choice in the set is exactly one
// token long, which is the condition for the shared single-token encoding.
func IsSingleToken(choices [][]int) bool {
	for _, c := range choices {
		if len(c) != 1 {
			return false
		}
	}
	return len(choices) > 0
}
