package encoding

import (
	"errors"
	"testing"
)

func choiceSampleOfLen(n int, single bool) ChoiceSample {
	tokens := make([]int, n)
	positions := make([]int, n)
	for i := range tokens {
		tokens[i] = 10 + i
		positions[i] = i
	}
	return ChoiceSample{
		Tokens:          tokens,
		PositionIDs:     positions,
		AttentionMask:   NewCausalMask(n),
		Choices:         [][]int{{20}},
		ChoiceTargetIDs: [][]int{{n - 1}},
		SingleToken:     single,
	}
}

func TestCollatePadsToTile(t *testing.T) {
	t.Parallel()
	batch, err := CollateChoices([]ChoiceSample{
		choiceSampleOfLen(10, true),
		choiceSampleOfLen(35, true),
	})
	if err != nil {
		t.Fatalf("collate: %v", err)
	}
	for i, row := range batch.Tokens {
		if len(row) != 64 {
			t.Fatalf("sample %d: padded length %d, want 64", i, len(row))
		}
	}
	if batch.AttentionMask[0].Len() != 64 {
		t.Fatalf("mask not padded: %d", batch.AttentionMask[0].Len())
	}
	// Padding is invisible: rows and columns beyond the original length
	// carry no attention.
	m := batch.AttentionMask[0]
	for j := 0; j < 64; j++ {
		if m[40][j] {
			t.Fatalf("padding row 40 should not attend anywhere, sees %d", j)
		}
	}
	for i := 0; i < 10; i++ {
		for j := 10; j < 64; j++ {
			if m[i][j] {
				t.Fatalf("row %d sees padding column %d", i, j)
			}
		}
	}
}

func TestCollateKeepsPerSampleChoices(t *testing.T) {
	t.Parallel()
	a := choiceSampleOfLen(8, false)
	a.Choices = [][]int{{20, 21}, {22, 23}}
	b := choiceSampleOfLen(12, false)
	b.Choices = [][]int{{24, 25, 26}}
	batch, err := CollateChoices([]ChoiceSample{a, b})
	if err != nil {
		t.Fatalf("collate: %v", err)
	}
	if len(batch.Choices[0]) != 2 || len(batch.Choices[1]) != 1 {
		t.Fatalf("choices not carried per sample: %v", batch.Choices)
	}
}

func TestCollateRejectsMixedModes(t *testing.T) {
	t.Parallel()
	_, err := CollateChoices([]ChoiceSample{
		choiceSampleOfLen(8, true),
		choiceSampleOfLen(8, false),
	})
	if !errors.Is(err, ErrInconsistentBatch) {
		t.Fatalf("expected ErrInconsistentBatch, got %v", err)
	}
}

func TestCollateExactTileBoundary(t *testing.T) {
	t.Parallel()
	batch, err := CollateChoices([]ChoiceSample{choiceSampleOfLen(32, true)})
	if err != nil {
		t.Fatalf("collate: %v", err)
	}
	if len(batch.Tokens[0]) != 32 {
		t.Fatalf("exact multiple should not grow, got %d", len(batch.Tokens[0]))
	}
}
