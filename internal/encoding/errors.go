package encoding

import "errors"

var (
	// ErrConfigConflict marks mutually exclusive encoding options requested
	// together (e.g. blank filling with unidirectional attention).
	ErrConfigConflict = errors.New("conflicting encoding options")
	// ErrSequenceTooLong marks input that exceeds the maximum sequence
	// length once control tokens are accounted for. The encoder never
	// truncates; callers must pre-truncate context.
	ErrSequenceTooLong = errors.New("sequence exceeds max length")
	// ErrInconsistentBatch marks a collation of mixed single-token and
	// multi-token samples, which indicates a dataset construction bug.
	ErrInconsistentBatch = errors.New("mixed single-token and multi-token samples in batch")
)
