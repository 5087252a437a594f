package model

import (
	"context"

	"github.com/calebms/spanfill/internal/encoding"
)

// Forwarder is the opaque model boundary: a single batched forward pass
// mapping tokens, position ids and attention masks to vocabulary logits.
// Implementations must be deterministic for identical inputs. In a
// distributed setting the call is collective, so every cooperating replica
// must invoke it in lock-step; the caller never retries.
//
// Shapes: tokens and positionIDs are [batch][seq]; attentionMask carries
// one [seq][seq] visibility matrix per batch row; the returned logits are
// [batch][seq][vocab].
type Forwarder interface {
	Forward(ctx context.Context, tokens, positionIDs [][]int, attentionMask []encoding.Mask) ([][][]float32, error)
}

// Factory builds an independent model replica. Workers that process items
// in parallel must each own their own replica; replicas share no mutable
// state.
type Factory func() (Forwarder, error)
