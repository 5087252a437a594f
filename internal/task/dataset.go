package task

import (
	"bufio"
	"fmt"
	"os"
	"slices"

	json "github.com/goccy/go-json"

	"github.com/calebms/spanfill/internal/encoding"
)

// record is one JSONL evaluation example. Generation tasks use inputs and
// targets; multi-choice tasks use inputs, choices, and label.
type record struct {
	Inputs  []int   `json:"inputs"`
	Targets [][]int `json:"targets,omitempty"`
	Choices [][]int `json:"choices,omitempty"`
	Label   int     `json:"label"`
}

// GenerationItem is a prompt with its reference answers.
type GenerationItem struct {
	Text    []int
	Targets [][]int
}

// MultiChoiceItem is a prompt with candidate continuations and the index of
// the correct one.
type MultiChoiceItem struct {
	Text    []int
	Choices [][]int
	Label   int
}

// MultiChoiceDataset tracks whether every example in the file is a
// single-token classification, which decides the scoring path.
type MultiChoiceDataset struct {
	Items       []MultiChoiceItem
	SingleToken bool
}

// LoadGenerationDataset reads a JSONL file and truncates each prompt from
// the front so that prompt, longest target, and the two control tokens all
// fit in maxSeqLength.
func LoadGenerationDataset(path string, maxSeqLength int) ([]GenerationItem, error) {
	var items []GenerationItem
	err := scanRecords(path, func(rec record) error {
		maxTarget := 0
		for _, tgt := range rec.Targets {
			maxTarget = max(maxTarget, len(tgt))
		}
		text := rec.Inputs
		if budget := maxSeqLength - maxTarget - 2; len(text) > budget {
			if budget <= 0 {
				return fmt.Errorf("%w: target of %d tokens leaves no room in %d", encoding.ErrSequenceTooLong, maxTarget, maxSeqLength)
			}
			text = text[len(text)-budget:]
		}
		items = append(items, GenerationItem{Text: slices.Clone(text), Targets: rec.Targets})
		return nil
	})
	return items, err
}

// LoadMultiChoiceDataset reads a JSONL file, truncating each prompt from
// the front so the prompt plus the summed choice lengths fits. A file where
// every example's choices are all one token long is marked single-token.
func LoadMultiChoiceDataset(path string, maxSeqLength int) (*MultiChoiceDataset, error) {
	ds := &MultiChoiceDataset{SingleToken: true}
	err := scanRecords(path, func(rec record) error {
		targetLength := 0
		for _, choice := range rec.Choices {
			targetLength += len(choice)
		}
		if targetLength == len(rec.Choices) {
			// All single-token: one shared position serves every choice.
			targetLength = 1
		} else {
			ds.SingleToken = false
		}
		if targetLength >= maxSeqLength {
			return fmt.Errorf("%w: choices need %d tokens, max %d", encoding.ErrSequenceTooLong, targetLength, maxSeqLength)
		}
		text := rec.Inputs
		if budget := maxSeqLength - targetLength - 2; len(text) > budget {
			text = text[len(text)-budget:]
		}
		ds.Items = append(ds.Items, MultiChoiceItem{
			Text:    slices.Clone(text),
			Choices: rec.Choices,
			Label:   rec.Label,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ds, nil
}

func scanRecords(path string, fn func(record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("parse %s line %d: %w", path, line, err)
		}
		if err := fn(rec); err != nil {
			return fmt.Errorf("%s line %d: %w", path, line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read dataset: %w", err)
	}
	return nil
}
