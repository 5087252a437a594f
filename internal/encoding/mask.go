package encoding

// Mask is a square attention-visibility matrix. Mask[i][j] reports whether
// the token at row i may attend to the token at column j. The convention is
// true = visible throughout; the model boundary receives it unchanged.
type Mask [][]bool

// NewMask allocates an n x n mask with no visibility.
func NewMask(n int) Mask {
	m := make(Mask, n)
	for i := range m {
		m[i] = make([]bool, n)
	}
	return m
}

// NewCausalMask allocates an n x n strictly lower-triangular (causal) mask:
// each position sees itself and everything before it.
func NewCausalMask(n int) Mask {
	m := NewMask(n)
	for i := range m {
		for j := 0; j <= i; j++ {
			m[i][j] = true
		}
	}
	return m
}

// Len returns the side length of the mask.
func (m Mask) Len() int { return len(m) }

// FillBlock sets rows [r0, r1) x columns [c0, c1) to visible.
func (m Mask) FillBlock(r0, r1, c0, c1 int) {
	for i := r0; i < r1; i++ {
		for j := c0; j < c1; j++ {
			m[i][j] = true
		}
	}
}

// Slice returns the top-left n x n sub-mask as a view over the receiver.
func (m Mask) Slice(n int) Mask {
	out := make(Mask, n)
	for i := 0; i < n; i++ {
		out[i] = m[i][:n]
	}
	return out
}

// padTo returns a copy of m grown to n x n; new rows and columns are not
// visible, matching zero-padded tokens.
func (m Mask) padTo(n int) Mask {
	out := NewMask(n)
	for i := range m {
		copy(out[i], m[i])
	}
	return out
}

// blockDiag composes masks block-diagonally: each input occupies its own
// span of rows and columns, with no visibility across blocks.
func blockDiag(blocks ...Mask) Mask {
	total := 0
	for _, b := range blocks {
		total += b.Len()
	}
	out := NewMask(total)
	offset := 0
	for _, b := range blocks {
		for i := range b {
			copy(out[offset+i][offset:], b[i])
		}
		offset += b.Len()
	}
	return out
}
