package infill

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/calebms/spanfill/internal/encoding"
	"github.com/calebms/spanfill/internal/tokenizer"
)

var maskPattern = regexp.MustCompile(`\[g?MASK\]`)

// ParseQuery tokenizes one raw query line, resolving embedded mask markers
// to command ids. Mixing [MASK] and [gMASK] kinds is rejected. A query
// without a marker gets the generation mask appended; a query that does not
// end with a marker gets a closing eos.
func ParseQuery(tok *tokenizer.Tokenizer, raw string, useTaskMask bool) ([]int, error) {
	generationMask := tokenizer.CmdMask
	if useTaskMask {
		generationMask = tokenizer.CmdGMask
	}
	if useTaskMask && strings.Contains(raw, tokenizer.CmdMask) {
		return nil, fmt.Errorf("%w: [MASK] markers in a [gMASK] query", encoding.ErrConfigConflict)
	}
	if !useTaskMask && strings.Contains(raw, tokenizer.CmdGMask) {
		return nil, fmt.Errorf("%w: [gMASK] markers in a [MASK] query", encoding.ErrConfigConflict)
	}

	markers := maskPattern.FindAllString(raw, -1)
	segments := maskPattern.Split(raw, -1)

	var seq []int
	for i, marker := range markers {
		seq = append(seq, tok.Tokenize(segments[i])...)
		seq = append(seq, tok.MustCommand(marker))
	}
	seq = append(seq, tok.Tokenize(segments[len(segments)-1])...)

	endsWithMask := strings.HasSuffix(strings.TrimSpace(raw), "MASK]")
	if len(markers) == 0 {
		seq = append(seq, tok.MustCommand(generationMask))
		endsWithMask = true
	}
	if !endsWithMask {
		seq = append(seq, tok.MustCommand(tokenizer.CmdEos))
	}
	return seq, nil
}
