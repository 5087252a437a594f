// Package toy provides a tiny deterministic reference model implementing
// the forward contract. It exists for tests and for exercising the
// pipeline without external weights; its outputs are meaningless but
// stable across runs.
package toy

import (
	"context"
	"fmt"

	"github.com/calebms/spanfill/internal/encoding"
	"github.com/calebms/spanfill/internal/model"
	"github.com/calebms/spanfill/internal/tensor"
)

// LM is a mask-aware bag-of-context model: each position's hidden state is
// the mean of the embeddings it may attend to, offset by its position id,
// and projected back to vocabulary logits.
type LM struct {
	Vocab  int
	Hidden int

	emb tensor.Mat // [Vocab x Hidden]
	w   tensor.Mat // [Hidden x Vocab]
}

var _ model.Forwarder = (*LM)(nil)

// New constructs a model with the given vocabulary and hidden size,
// deterministically initialised from seed.
func New(vocab, hidden int, seed int64) *LM {
	m := &LM{
		Vocab:  vocab,
		Hidden: hidden,
		emb:    tensor.NewMat(vocab, hidden),
		w:      tensor.NewMat(hidden, vocab),
	}
	tensor.FillRand(&m.emb, seed+11)
	tensor.FillRand(&m.w, seed+23)
	return m
}

// Factory returns a model.Factory producing independent replicas with
// identical weights.
func Factory(vocab, hidden int, seed int64) model.Factory {
	return func() (model.Forwarder, error) {
		return New(vocab, hidden, seed), nil
	}
}

// Forward implements the opaque model call. Token ids outside the
// vocabulary (including fill sentinels that leak in by mistake) are an
// error rather than silently wrapped.
func (m *LM) Forward(ctx context.Context, tokens, positionIDs [][]int, attentionMask []encoding.Mask) ([][][]float32, error) {
	if len(tokens) != len(positionIDs) || len(tokens) != len(attentionMask) {
		return nil, fmt.Errorf("batch size mismatch: %d tokens, %d positions, %d masks", len(tokens), len(positionIDs), len(attentionMask))
	}
	out := make([][][]float32, len(tokens))
	for b := range tokens {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := tokens[b]
		positions := positionIDs[b]
		mask := attentionMask[b]
		if len(positions) < len(row) || mask.Len() < len(row) {
			return nil, fmt.Errorf("sample %d: plan shorter than %d tokens", b, len(row))
		}
		hidden := make([]float32, m.Hidden)
		logits := make([][]float32, len(row))
		for i := range row {
			for h := range hidden {
				hidden[h] = 0
			}
			visible := 0
			for j := 0; j <= i && j < len(row); j++ {
				if !mask[i][j] {
					continue
				}
				id := row[j]
				if id < 0 || id >= m.Vocab {
					return nil, fmt.Errorf("sample %d: token id %d outside vocabulary of %d", b, id, m.Vocab)
				}
				embRow := m.emb.Row(id)
				for h := range hidden {
					hidden[h] += embRow[h]
				}
				visible++
			}
			if visible > 0 {
				inv := 1 / float32(visible)
				for h := range hidden {
					hidden[h] *= inv
				}
			}
			posShift := float32(positions[i]%7) * 0.05
			logits[i] = make([]float32, m.Vocab)
			for v := 0; v < m.Vocab; v++ {
				var sum float32
				for h := 0; h < m.Hidden; h++ {
					sum += (hidden[h] + posShift) * m.w.Row(h)[v]
				}
				logits[i][v] = sum
			}
		}
		out[b] = logits
	}
	return out, nil
}
