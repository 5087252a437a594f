package encoding

import (
	"errors"
	"testing"
)

const (
	testMaskID = 2
	testSopID  = 4
)

func genOpts(maxLen int) GenerationOptions {
	return GenerationOptions{MaxLength: maxLen, MaskID: testMaskID, SopID: testSopID}
}

func TestGenerationBidirectionalAppendsControls(t *testing.T) {
	t.Parallel()
	tokens := []int{10, 11, 12}
	s, err := BuildGenerationSample(tokens, genOpts(16))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if s.ContextLength != len(tokens)+2 {
		t.Fatalf("context length: got %d, want %d", s.ContextLength, len(tokens)+2)
	}
	if s.Tokens[3] != testMaskID || s.Tokens[4] != testSopID {
		t.Fatalf("expected mask+sop appended, got %v", s.Tokens[:6])
	}
	// Predicted span anchors at the mask position.
	for i := s.ContextLength - 1; i < 16; i++ {
		if s.PositionIDs[i] != 3 {
			t.Fatalf("position %d: got %d, want mask position 3", i, s.PositionIDs[i])
		}
	}
}

func TestGenerationUnidirectionalPrepends(t *testing.T) {
	t.Parallel()
	tokens := []int{10, 11, 12}
	s, err := BuildGenerationSample(tokens, GenerationOptions{
		MaxLength: 16, Unidirectional: true, MaskID: testMaskID, SopID: testSopID,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if s.Tokens[0] != testMaskID || s.Tokens[1] != testSopID {
		t.Fatalf("expected mask+sop at front, got %v", s.Tokens[:5])
	}
	if s.ContextLength != len(tokens)+2 {
		t.Fatalf("context length: got %d, want %d", s.ContextLength, len(tokens)+2)
	}
}

func TestGenerationContextBlockFullyVisible(t *testing.T) {
	t.Parallel()
	s, err := BuildGenerationSample([]int{10, 11, 12, 13}, genOpts(12))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ctx := s.ContextLength
	for i := 0; i < ctx-1; i++ {
		for j := 0; j < ctx-1; j++ {
			if !s.AttentionMask[i][j] {
				t.Fatalf("context block not visible at (%d,%d)", i, j)
			}
		}
	}
	// Outside the context block, visibility is causal.
	for i := ctx - 1; i < 12; i++ {
		for j := 0; j < 12; j++ {
			want := j <= i
			if s.AttentionMask[i][j] != want {
				t.Fatalf("causal violation at (%d,%d): got %v", i, j, s.AttentionMask[i][j])
			}
		}
	}
}

func TestGenerationBlankFilling(t *testing.T) {
	t.Parallel()
	tokens := []int{10, testMaskID, 11}
	s, err := BuildGenerationSample(tokens, genOpts(8))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// sop appended after the full sequence, mask position preserved.
	if s.ContextLength != 4 {
		t.Fatalf("context length: got %d, want 4", s.ContextLength)
	}
	if s.Tokens[3] != testSopID {
		t.Fatalf("expected sop appended, got %v", s.Tokens[:5])
	}
	for i := s.ContextLength - 1; i < 8; i++ {
		if s.PositionIDs[i] != 1 {
			t.Fatalf("predicted span should anchor at mask position 1, got %d at %d", s.PositionIDs[i], i)
		}
	}
}

func TestGenerationBlankFillingConflicts(t *testing.T) {
	t.Parallel()
	tokens := []int{10, testMaskID, 11}
	for _, opt := range []GenerationOptions{
		{MaxLength: 8, Unidirectional: true, MaskID: testMaskID, SopID: testSopID},
		{MaxLength: 8, UseTaskMask: true, MaskID: testMaskID, SopID: testSopID},
	} {
		_, err := BuildGenerationSample(tokens, opt)
		if !errors.Is(err, ErrConfigConflict) {
			t.Fatalf("expected ErrConfigConflict, got %v", err)
		}
	}
}

func TestGenerationTaskMaskKeepsMonotonicPositions(t *testing.T) {
	t.Parallel()
	s, err := BuildGenerationSample([]int{10, 11}, GenerationOptions{
		MaxLength: 10, UseTaskMask: true, MaskID: 3, SopID: testSopID,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for i := 0; i < 10; i++ {
		if s.PositionIDs[i] != i {
			t.Fatalf("task-mask positions must stay monotonic, got %d at %d", s.PositionIDs[i], i)
		}
	}
}

func TestGenerationTooLong(t *testing.T) {
	t.Parallel()
	_, err := BuildGenerationSample([]int{10, 11, 12}, genOpts(4))
	if !errors.Is(err, ErrSequenceTooLong) {
		t.Fatalf("expected ErrSequenceTooLong, got %v", err)
	}
}

func TestBuildInfillPlan(t *testing.T) {
	t.Parallel()
	positions, mask := BuildInfillPlan(8, 2, 5, false)
	for i := 0; i < 4; i++ {
		if positions[i] != i {
			t.Fatalf("context positions must be monotonic, got %d at %d", positions[i], i)
		}
	}
	for i := 4; i < 8; i++ {
		if positions[i] != 2 {
			t.Fatalf("span positions must anchor at mask, got %d at %d", positions[i], i)
		}
	}
	// Every row sees the context columns; the rest is causal.
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			want := j < 4 || j <= i
			if mask[i][j] != want {
				t.Fatalf("mask mismatch at (%d,%d)", i, j)
			}
		}
	}

	positions, _ = BuildInfillPlan(8, 2, 5, true)
	for i := range positions {
		if positions[i] != i {
			t.Fatalf("task-mask plan keeps monotonic positions, got %d at %d", positions[i], i)
		}
	}
}
