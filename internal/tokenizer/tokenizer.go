package tokenizer

import (
	"fmt"
	"strings"
)

// Command token names recognised by the model. Their ids occupy the low end
// of the vocabulary so that id 0 doubles as padding.
const (
	CmdPad   = "pad"
	CmdUnk   = "unk"
	CmdMask  = "[MASK]"
	CmdGMask = "[gMASK]"
	CmdSop   = "sop"
	CmdEop   = "eop"
	CmdEos   = "eos"
)

var commandOrder = []string{CmdPad, CmdUnk, CmdMask, CmdGMask, CmdSop, CmdEop, CmdEos}

// Tokenizer maps free text to token ids and back, and resolves named
// command tokens ([MASK], [gMASK], sop, eop, eos) to their ids. Words are
// split on whitespace; unknown words map to the unk token. The mapping is
// fixed for the lifetime of the tokenizer.
type Tokenizer struct {
	words    []string
	ids      map[string]int
	commands map[string]int
}

// New builds a tokenizer over the given word list. Command tokens are
// assigned the first ids, followed by the words in order. Duplicate words
// keep their first id.
func New(words []string) *Tokenizer {
	t := &Tokenizer{
		ids:      make(map[string]int, len(words)+len(commandOrder)),
		commands: make(map[string]int, len(commandOrder)),
	}
	for _, name := range commandOrder {
		id := len(t.words)
		t.words = append(t.words, name)
		t.ids[name] = id
		t.commands[name] = id
	}
	for _, w := range words {
		if _, ok := t.ids[w]; ok {
			continue
		}
		t.ids[w] = len(t.words)
		t.words = append(t.words, w)
	}
	return t
}

// VocabSize returns the total number of token ids, commands included.
func (t *Tokenizer) VocabSize() int { return len(t.words) }

// Command resolves a named command token to its id.
func (t *Tokenizer) Command(name string) (int, error) {
	id, ok := t.commands[name]
	if !ok {
		return 0, fmt.Errorf("unknown command token %q", name)
	}
	return id, nil
}

// MustCommand resolves a command token id, panicking on unknown names.
// Command names are compile-time constants, so a failure here is a bug.
func (t *Tokenizer) MustCommand(name string) int {
	id, err := t.Command(name)
	if err != nil {
		panic(err)
	}
	return id
}

// IsCommand reports whether id belongs to a command token.
func (t *Tokenizer) IsCommand(id int) bool {
	return id >= 0 && id < len(commandOrder)
}

// Tokenize splits text on whitespace and maps each word to its id.
// Words not in the vocabulary map to unk. Bracketed command tokens that
// appear literally in the text resolve to their command ids.
func (t *Tokenizer) Tokenize(text string) []int {
	fields := strings.Fields(text)
	ids := make([]int, 0, len(fields))
	unk := t.commands[CmdUnk]
	for _, f := range fields {
		if id, ok := t.ids[f]; ok {
			ids = append(ids, id)
		} else {
			ids = append(ids, unk)
		}
	}
	return ids
}

// Detokenize renders token ids back to text, space separated. Command and
// padding tokens are dropped, matching the behaviour expected when writing
// resolved queries out as plain lines.
func (t *Tokenizer) Detokenize(ids []int) string {
	var sb strings.Builder
	for _, id := range ids {
		if id < 0 || id >= len(t.words) || t.IsCommand(id) {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.words[id])
	}
	return sb.String()
}

// TokenString returns the surface form for a token id, or "" when out of
// range.
func (t *Tokenizer) TokenString(id int) string {
	if id < 0 || id >= len(t.words) {
		return ""
	}
	return t.words[id]
}

// EndTokens returns the ids that terminate a generated span (eop, eos).
func (t *Tokenizer) EndTokens() []int {
	return []int{t.commands[CmdEop], t.commands[CmdEos]}
}
