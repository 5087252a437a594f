package tokenizer

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// vocabFile is the on-disk vocabulary format: a JSON object holding the
// word list. Command tokens are implicit and must not appear in the list.
type vocabFile struct {
	Words []string `json:"words"`
}

// Load reads a vocabulary file and builds a tokenizer from it.
func Load(path string) (*Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	var vf vocabFile
	if err := json.Unmarshal(data, &vf); err != nil {
		return nil, fmt.Errorf("parse vocab %s: %w", path, err)
	}
	return New(vf.Words), nil
}

// Save writes the word list (commands excluded) to path as JSON.
func (t *Tokenizer) Save(path string) error {
	vf := vocabFile{Words: t.words[len(commandOrder):]}
	data, err := json.MarshalIndent(vf, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
