package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/calebms/spanfill/internal/task"
	"github.com/calebms/spanfill/internal/toy"
)

func evalCmd() *cli.Command {
	var (
		taskPath string
		workers  int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "task",
			Aliases:     []string{"t"},
			Usage:       "path to a task config yaml",
			Required:    true,
			Destination: &taskPath,
		},
		&cli.Int64Flag{
			Name:        "workers",
			Aliases:     []string{"w"},
			Usage:       "parallel file workers (overrides the task config)",
			Destination: &workers,
		},
	}
	flags = append(flags, commonModelFlags()...)
	flags = append(flags, loggingFlags()...)

	return &cli.Command{
		Name:  "eval",
		Usage: "Evaluate a task's dataset files",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			appCfg := LoadConfig()
			applyCommonConfig(cmd, appCfg)
			log := newLogger()

			cfg, err := task.LoadConfig(taskPath)
			if err != nil {
				return err
			}
			if cmd.IsSet("workers") {
				cfg.Workers = int(workers)
			}
			if cmd.IsSet("max-seq-length") {
				cfg.MaxSeqLength = int(maxSeqLength)
			}

			tok, err := loadTokenizer()
			if err != nil {
				return err
			}
			e := &task.Evaluator{
				Config:   cfg,
				Tok:      tok,
				NewModel: toy.Factory(tok.VocabSize(), int(hiddenSize), modelSeed),
				Log:      log,
			}
			report, err := e.Evaluate(ctx)
			if err != nil {
				return err
			}
			for name, stats := range report.Summary {
				fmt.Printf("%s: max=%.4f median=%.4f weighted_average=%.4f\n",
					name, stats.Max, stats.Median, stats.WeightedAverage)
			}
			return nil
		},
	}
}
