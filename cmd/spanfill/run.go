package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/calebms/spanfill/internal/decoding"
	"github.com/calebms/spanfill/internal/infill"
	"github.com/calebms/spanfill/internal/tokenizer"
	"github.com/calebms/spanfill/internal/toy"
)

func loadTokenizer() (*tokenizer.Tokenizer, error) {
	if vocabPath == "" {
		return nil, fmt.Errorf("a vocabulary is required: pass --vocab or set vocab_path in the config file")
	}
	return tokenizer.Load(vocabPath)
}

func runCmd() *cli.Command {
	var (
		query       string
		inputPath   string
		outputDir   string
		useTaskMask bool

		strategy      string
		numBeams      int64
		lengthPenalty float64
		noRepeatNgram int64
		minTgtLength  int64
		temp          float64
		topK          int64
		seed          int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "query",
			Aliases:     []string{"q"},
			Usage:       "query text with [MASK] or [gMASK] markers",
			Destination: &query,
		},
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "path to a file with one query per line",
			Destination: &inputPath,
		},
		&cli.StringFlag{
			Name:        "output-dir",
			Aliases:     []string{"o"},
			Usage:       "directory to write per-query result files into",
			Destination: &outputDir,
		},
		&cli.BoolFlag{
			Name:        "use-task-mask",
			Usage:       "use [gMASK] markers with monotonic positions",
			Destination: &useTaskMask,
		},
		&cli.StringFlag{
			Name:        "strategy",
			Usage:       "decoding strategy (greedy, beam-search)",
			Value:       decoding.StrategyGreedy,
			Destination: &strategy,
		},
		&cli.Int64Flag{
			Name:        "num-beams",
			Usage:       "beam count for beam search",
			Value:       1,
			Destination: &numBeams,
		},
		&cli.Float64Flag{
			Name:        "length-penalty",
			Usage:       "beam ranking length penalty exponent",
			Destination: &lengthPenalty,
		},
		&cli.Int64Flag{
			Name:        "no-repeat-ngram",
			Usage:       "block repeating n-grams of this size (0 = disabled)",
			Destination: &noRepeatNgram,
		},
		&cli.Int64Flag{
			Name:        "min-tgt-length",
			Usage:       "minimum generated span length before an end token",
			Destination: &minTgtLength,
		},
		&cli.Float64Flag{
			Name:        "temp",
			Aliases:     []string{"temperature"},
			Usage:       "sampling temperature (0 = argmax)",
			Destination: &temp,
		},
		&cli.Int64Flag{
			Name:        "top-k",
			Usage:       "top-k sampling shortlist size",
			Destination: &topK,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "sampling RNG seed (default -1 = random)",
			Value:       -1,
			Destination: &seed,
		},
	}
	flags = append(flags, commonModelFlags()...)
	flags = append(flags, loggingFlags()...)

	return &cli.Command{
		Name:  "run",
		Usage: "Resolve mask markers in queries",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := LoadConfig()
			applyRunConfig(cmd, cfg, &strategy, &numBeams, &lengthPenalty,
				&noRepeatNgram, &minTgtLength, &temp, &topK, &seed, &outputDir)
			log := newLogger()

			tok, err := loadTokenizer()
			if err != nil {
				return err
			}
			factory := toy.Factory(tok.VocabSize(), int(hiddenSize), modelSeed)

			queries, err := collectQueries(query, inputPath)
			if err != nil {
				return err
			}
			if outputDir != "" {
				if err := os.MkdirAll(outputDir, 0o755); err != nil {
					return fmt.Errorf("create output dir: %w", err)
				}
			}

			maskKind := tokenizer.CmdMask
			if useTaskMask {
				maskKind = tokenizer.CmdGMask
			}
			for _, q := range queries {
				strat, err := decoding.New(decoding.Config{
					Strategy:          strategy,
					NumBeams:          int(numBeams),
					LengthPenalty:     lengthPenalty,
					NoRepeatNgramSize: int(noRepeatNgram),
					MinTargetLength:   int(minTgtLength),
					Temperature:       temp,
					TopK:              int(topK),
					Seed:              seed,
					EndTokens:         tok.EndTokens(),
				})
				if err != nil {
					return err
				}
				seq, err := infill.ParseQuery(tok, q, useTaskMask)
				if err != nil {
					return err
				}
				fwd, err := factory()
				if err != nil {
					return err
				}
				driver := &infill.Driver{
					Model:        fwd,
					Strategy:     strat,
					MaskID:       tok.MustCommand(maskKind),
					SopID:        tok.MustCommand(tokenizer.CmdSop),
					EndTokens:    tok.EndTokens(),
					MaxSeqLength: int(maxSeqLength),
					OutSeqLength: int(outSeqLength),
					UseTaskMask:  useTaskMask,
					Log:          log,
				}
				outputs, err := driver.Fill(ctx, seq)
				if err != nil {
					return fmt.Errorf("fill %q: %w", q, err)
				}

				lines := make([]string, len(outputs))
				for i, out := range outputs {
					lines[i] = tok.Detokenize(out)
					fmt.Println(lines[i])
				}
				if outputDir != "" {
					if err := writeResult(outputDir, q, lines); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}

func collectQueries(query, inputPath string) ([]string, error) {
	if query != "" {
		return []string{query}, nil
	}
	if inputPath == "" {
		return nil, fmt.Errorf("pass --query or --input")
	}
	f, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("open queries: %w", err)
	}
	defer f.Close()

	var queries []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			queries = append(queries, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read queries: %w", err)
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries in %s", inputPath)
	}
	return queries, nil
}

// writeResult stores one query's candidates under a fresh unique name: the
// query on the first line, then one candidate per line, best first.
func writeResult(dir, query string, lines []string) error {
	path := filepath.Join(dir, uuid.NewString()+".txt")
	content := query + "\n" + strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
