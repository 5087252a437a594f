// Package infill drives iterative mask resolution: it repeatedly locates
// the earliest unresolved mask in a working sequence, generates a
// continuation anchored there, and splices the result back until no mask
// remains.
package infill

import (
	"context"
	"fmt"
	"slices"

	"github.com/calebms/spanfill/internal/decoding"
	"github.com/calebms/spanfill/internal/encoding"
	"github.com/calebms/spanfill/internal/logger"
	"github.com/calebms/spanfill/internal/model"
)

// State enumerates the driver's control loop phases. The working sequence
// is an immutable value replaced on every splice, never mutated in place;
// masks resolve strictly left to right.
type State int

const (
	StateScanning State = iota
	StateEncoding
	StateDecoding
	StateSplicing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateEncoding:
		return "encoding"
	case StateDecoding:
		return "decoding"
	case StateSplicing:
		return "splicing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Driver owns one generation request's mask-filling loop.
type Driver struct {
	Model    model.Forwarder
	Strategy decoding.Strategy

	// MaskID is the active mask kind: [gMASK] under task masking, [MASK]
	// otherwise. SopID marks where generation begins; EndTokens terminate
	// a span.
	MaskID    int
	SopID     int
	EndTokens []int

	MaxSeqLength int
	OutSeqLength int
	UseTaskMask  bool

	Log logger.Logger
}

// Fill resolves every mask in seq and returns the candidate resolutions,
// best ranked first. The input must fit the configured maximum before the
// first encoding.
func (d *Driver) Fill(ctx context.Context, seq []int) ([][]int, error) {
	if len(seq) > d.MaxSeqLength {
		return nil, fmt.Errorf("%w: query has %d tokens, max %d", encoding.ErrSequenceTooLong, len(seq), d.MaxSeqLength)
	}
	log := d.Log
	if log == nil {
		log = logger.Default()
	}

	working := [][]int{slices.Clone(seq)}

	var (
		state        = StateScanning
		maskPosition int
		positionIDs  []int
		mask         encoding.Mask
		buffer       []int
		outputs      [][]int
	)
	for state != StateDone {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch state {
		case StateScanning:
			cur := working[0]
			idx := slices.Index(cur, d.MaskID)
			if idx < 0 {
				state = StateDone
				break
			}
			maskPosition = idx
			state = StateEncoding

		case StateEncoding:
			cur := working[0]
			if len(cur)+1 > d.OutSeqLength {
				return nil, fmt.Errorf("%w: working sequence grew to %d tokens, output bound %d", encoding.ErrSequenceTooLong, len(cur), d.OutSeqLength)
			}
			contextLength := len(cur) + 1
			positionIDs, mask = encoding.BuildInfillPlan(d.OutSeqLength, maskPosition, contextLength, d.UseTaskMask)
			buffer = make([]int, d.OutSeqLength)
			n := copy(buffer, cur)
			buffer[n] = d.SopID
			for i := n + 1; i < len(buffer); i++ {
				buffer[i] = decoding.Unfilled
			}
			state = StateDecoding

		case StateDecoding:
			log.Debug("filling span", "mask_position", maskPosition, "context_length", len(working[0])+1)
			var err error
			outputs, err = decoding.FillSequence(ctx, d.Model, buffer, positionIDs, mask, d.Strategy)
			if err != nil {
				return nil, err
			}
			if len(outputs) == 0 {
				return nil, fmt.Errorf("decoding produced no candidates at mask position %d", maskPosition)
			}
			state = StateSplicing

		case StateSplicing:
			next := make([][]int, 0, len(outputs))
			for _, out := range outputs {
				spliced, err := Splice(out, maskPosition, d.SopID, d.EndTokens)
				if err != nil {
					return nil, err
				}
				next = append(next, spliced)
			}
			working = next
			state = StateScanning
		}
	}
	return working, nil
}

// Splice replaces the mask token at maskPosition with the generated span
// from output. The unfinished tail starts at the first sentinel (or the
// buffer end); a trailing end token is excluded. Content that followed the
// mask in the original sequence sits between maskPosition+1 and the
// start-of-prediction token and is preserved after the generated span.
func Splice(output []int, maskPosition, sopID int, endTokens []int) ([]int, error) {
	unfinished := slices.Index(output, decoding.Unfilled)
	if unfinished < 0 {
		unfinished = len(output)
	}
	if unfinished > 0 && slices.Contains(endTokens, output[unfinished-1]) {
		unfinished--
	}
	bog := slices.Index(output, sopID)
	if bog < 0 || bog >= unfinished {
		return nil, fmt.Errorf("output has no start-of-prediction token before position %d", unfinished)
	}
	if maskPosition < 0 || maskPosition >= bog {
		return nil, fmt.Errorf("mask position %d outside context of %d", maskPosition, bog)
	}

	spliced := make([]int, 0, unfinished)
	spliced = append(spliced, output[:maskPosition]...)
	spliced = append(spliced, output[bog+1:unfinished]...)
	spliced = append(spliced, output[maskPosition+1:bog]...)
	return spliced, nil
}
