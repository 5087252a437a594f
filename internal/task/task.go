// Package task runs dataset evaluations: it loads JSONL example files,
// encodes and scores them against a model, and aggregates metrics per file
// and per group.
package task

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/calebms/spanfill/internal/decoding"
	"github.com/calebms/spanfill/internal/encoding"
	"github.com/calebms/spanfill/internal/logger"
	"github.com/calebms/spanfill/internal/model"
	"github.com/calebms/spanfill/internal/scoring"
	"github.com/calebms/spanfill/internal/tokenizer"
)

// Evaluator runs one configured task. NewModel builds a model replica per
// worker so file evaluations can proceed in parallel.
type Evaluator struct {
	Config   Config
	Tok      *tokenizer.Tokenizer
	NewModel model.Factory
	Log      logger.Logger
}

// FileResult holds per-file metric values and the example count.
type FileResult struct {
	File    string
	Count   int
	Metrics map[string]float64
}

// GroupStats aggregates one metric across a task's files.
type GroupStats struct {
	Max             float64
	Median          float64
	WeightedAverage float64
}

// Report is the outcome of a task evaluation.
type Report struct {
	Task    string
	Files   []FileResult
	Summary map[string]GroupStats
}

// Evaluate scores every file matching the task's pattern and aggregates
// the results.
func (e *Evaluator) Evaluate(ctx context.Context) (Report, error) {
	log := e.Log
	if log == nil {
		log = logger.Default()
	}
	files, err := filepath.Glob(filepath.Join(e.Config.Path, e.Config.FilePattern))
	if err != nil {
		return Report{}, fmt.Errorf("match dataset files: %w", err)
	}
	if len(files) == 0 {
		return Report{}, fmt.Errorf("no dataset files match %s in %s", e.Config.FilePattern, e.Config.Path)
	}
	sort.Strings(files)

	results := make([]FileResult, len(files))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.Config.Workers, 1))
	for i, file := range files {
		g.Go(func() error {
			fwd, err := e.NewModel()
			if err != nil {
				return fmt.Errorf("build model replica: %w", err)
			}
			res, err := e.evalFile(gctx, fwd, file)
			if err != nil {
				return fmt.Errorf("evaluate %s: %w", file, err)
			}
			log.Info("file evaluated", "task", e.Config.Name, "file", filepath.Base(file), "count", res.Count, "metrics", res.Metrics)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{Task: e.Config.Name, Files: results, Summary: summarize(results)}
	for name, stats := range report.Summary {
		log.Info("task summary", "task", e.Config.Name, "metric", name,
			"max", stats.Max, "median", stats.Median, "weighted_average", stats.WeightedAverage)
	}
	return report, nil
}

func (e *Evaluator) evalFile(ctx context.Context, fwd model.Forwarder, file string) (FileResult, error) {
	switch e.Config.Type {
	case TypeMultiChoice:
		return e.evalMultiChoice(ctx, fwd, file)
	default:
		return e.evalGeneration(ctx, fwd, file)
	}
}

func (e *Evaluator) evalMultiChoice(ctx context.Context, fwd model.Forwarder, file string) (FileResult, error) {
	ds, err := LoadMultiChoiceDataset(file, e.Config.MaxSeqLength)
	if err != nil {
		return FileResult{}, err
	}
	correct := 0
	for _, item := range ds.Items {
		if err := ctx.Err(); err != nil {
			return FileResult{}, err
		}
		sample, err := encoding.BuildMultiChoiceSample(item.Text, item.Choices, encoding.MultiChoiceOptions{
			MaxLength:        e.Config.MaxSeqLength,
			SingleToken:      ds.SingleToken,
			UnifiedMultitask: e.Config.UseMultitaskEncoding,
			MaskID:           e.maskID(),
			SopID:            e.Tok.MustCommand(tokenizer.CmdSop),
		})
		if err != nil {
			return FileResult{}, err
		}
		batch, err := encoding.CollateChoices([]encoding.ChoiceSample{sample})
		if err != nil {
			return FileResult{}, err
		}
		logits, err := fwd.Forward(ctx, batch.Tokens, batch.PositionIDs, batch.AttentionMask)
		if err != nil {
			return FileResult{}, err
		}
		scores, err := scoring.ConditionalLogProb(logits, batch)
		if err != nil {
			return FileResult{}, err
		}
		if scoring.ArgMax(scores[0]) == item.Label {
			correct++
		}
	}
	res := FileResult{File: file, Count: len(ds.Items), Metrics: map[string]float64{}}
	for _, name := range e.Config.Metrics {
		res.Metrics[name] = float64(correct) / float64(max(len(ds.Items), 1))
	}
	return res, nil
}

func (e *Evaluator) evalGeneration(ctx context.Context, fwd model.Forwarder, file string) (FileResult, error) {
	items, err := LoadGenerationDataset(file, e.Config.MaxSeqLength)
	if err != nil {
		return FileResult{}, err
	}
	endTokens := e.Tok.EndTokens()
	strat, err := decoding.New(e.Config.DecodingConfig(endTokens))
	if err != nil {
		return FileResult{}, err
	}

	totals := make(map[string]float64, len(e.Config.Metrics))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return FileResult{}, err
		}
		sample, err := encoding.BuildGenerationSample(item.Text, encoding.GenerationOptions{
			MaxLength:      e.Config.MaxSeqLength,
			UseTaskMask:    e.Config.UseTaskMask,
			Unidirectional: e.Config.Unidirectional,
			MaskID:         e.maskID(),
			SopID:          e.Tok.MustCommand(tokenizer.CmdSop),
		})
		if err != nil {
			return FileResult{}, err
		}
		buffer := slices.Clone(sample.Tokens)
		for i := sample.ContextLength; i < len(buffer); i++ {
			buffer[i] = decoding.Unfilled
		}
		outputs, err := decoding.FillSequence(ctx, fwd, buffer, sample.PositionIDs, sample.AttentionMask, strat)
		if err != nil {
			return FileResult{}, err
		}
		pred := e.Tok.Detokenize(trimGenerated(outputs[0], sample.ContextLength, endTokens))
		refs := make([]string, len(item.Targets))
		for i, tgt := range item.Targets {
			refs[i] = e.Tok.Detokenize(tgt)
		}
		for _, name := range e.Config.Metrics {
			totals[name] += metricFuncs[name](pred, refs)
		}
	}

	res := FileResult{File: file, Count: len(items), Metrics: map[string]float64{}}
	for name, sum := range totals {
		res.Metrics[name] = sum / float64(max(len(items), 1))
	}
	return res, nil
}

func (e *Evaluator) maskID() int {
	if e.Config.UseTaskMask {
		return e.Tok.MustCommand(tokenizer.CmdGMask)
	}
	return e.Tok.MustCommand(tokenizer.CmdMask)
}

// trimGenerated extracts the generated span: everything past the context
// up to the first sentinel, minus a trailing end token.
func trimGenerated(output []int, contextLength int, endTokens []int) []int {
	end := slices.Index(output, decoding.Unfilled)
	if end < 0 {
		end = len(output)
	}
	if end > contextLength && slices.Contains(endTokens, output[end-1]) {
		end--
	}
	if end < contextLength {
		return nil
	}
	return output[contextLength:end]
}

// summarize computes per-metric max, median, and example-weighted average
// across file results.
func summarize(results []FileResult) map[string]GroupStats {
	values := map[string][]float64{}
	weighted := map[string]float64{}
	total := 0
	for _, res := range results {
		total += res.Count
		for name, v := range res.Metrics {
			values[name] = append(values[name], v)
			weighted[name] += v * float64(res.Count)
		}
	}
	out := make(map[string]GroupStats, len(values))
	for name, vs := range values {
		sort.Float64s(vs)
		out[name] = GroupStats{
			Max:             vs[len(vs)-1],
			Median:          median(vs),
			WeightedAverage: weighted[name] / float64(max(total, 1)),
		}
	}
	return out
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
