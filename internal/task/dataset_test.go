package task

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func writeJSONL(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.jsonl")
	data := ""
	for _, l := range lines {
		data += l + "\n"
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadGenerationDatasetTruncatesFront(t *testing.T) {
	t.Parallel()
	path := writeJSONL(t,
		`{"inputs":[1,2,3,4,5,6],"targets":[[7,8]]}`,
	)
	// Budget is 8 - 2 - 2 = 4 prompt tokens; the head is dropped.
	items, err := LoadGenerationDataset(path, 8)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !slices.Equal(items[0].Text, []int{3, 4, 5, 6}) {
		t.Fatalf("truncated text = %v", items[0].Text)
	}
}

func TestLoadMultiChoiceDatasetSingleTokenMode(t *testing.T) {
	t.Parallel()
	path := writeJSONL(t,
		`{"inputs":[1,2],"choices":[[8],[9]],"label":1}`,
		`{"inputs":[3],"choices":[[8],[9]],"label":0}`,
	)
	ds, err := LoadMultiChoiceDataset(path, 16)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ds.SingleToken {
		t.Fatal("all one-token choices must mark the dataset single-token")
	}
	if len(ds.Items) != 2 || ds.Items[0].Label != 1 {
		t.Fatalf("items = %+v", ds.Items)
	}
}

func TestLoadMultiChoiceDatasetMultiTokenTruncation(t *testing.T) {
	t.Parallel()
	path := writeJSONL(t,
		`{"inputs":[1,2,3,4,5],"choices":[[8,9],[9]],"label":0}`,
	)
	// Summed choice length 3, budget 8 - 3 - 2 = 3 prompt tokens.
	ds, err := LoadMultiChoiceDataset(path, 8)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.SingleToken {
		t.Fatal("mixed-length choices must clear single-token mode")
	}
	if !slices.Equal(ds.Items[0].Text, []int{3, 4, 5}) {
		t.Fatalf("truncated text = %v", ds.Items[0].Text)
	}
}

func TestLoadDatasetRejectsBadJSON(t *testing.T) {
	t.Parallel()
	path := writeJSONL(t, `{"inputs":`)
	if _, err := LoadGenerationDataset(path, 8); err == nil {
		t.Fatal("expected parse error")
	}
}
