package task

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/calebms/spanfill/internal/decoding"
)

// Task types.
const (
	TypeGeneration  = "generation"
	TypeMultiChoice = "multichoice"
)

// Config describes one evaluation task, loaded from a YAML file.
type Config struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Path        string `yaml:"path"`
	FilePattern string `yaml:"file_pattern"`

	MaxSeqLength         int  `yaml:"max_seq_length"`
	UseTaskMask          bool `yaml:"use_task_mask"`
	Unidirectional       bool `yaml:"unidirectional"`
	UseMultitaskEncoding bool `yaml:"use_multitask_encoding"`

	SamplingStrategy  string  `yaml:"sampling_strategy"`
	NumBeams          int     `yaml:"num_beams"`
	LengthPenalty     float64 `yaml:"length_penalty"`
	NoRepeatNgramSize int     `yaml:"no_repeat_ngram_size"`
	MinTgtLength      int     `yaml:"min_tgt_length"`
	Temperature       float64 `yaml:"temperature"`
	TopK              int     `yaml:"top_k"`
	Seed              int64   `yaml:"seed"`

	Metrics []string `yaml:"metrics"`
	Workers int      `yaml:"workers"`
}

// LoadConfig reads and validates a task config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read task config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse task config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.FilePattern == "" {
		c.FilePattern = "*.jsonl"
	}
	if c.MaxSeqLength == 0 {
		c.MaxSeqLength = 512
	}
	if c.SamplingStrategy == "" {
		c.SamplingStrategy = decoding.StrategyGreedy
	}
	if c.NumBeams == 0 {
		c.NumBeams = 1
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
	if len(c.Metrics) == 0 {
		switch c.Type {
		case TypeMultiChoice:
			c.Metrics = []string{MetricAccuracy}
		default:
			c.Metrics = []string{MetricExactMatch, MetricF1}
		}
	}
}

func (c Config) validate() error {
	switch c.Type {
	case TypeGeneration, TypeMultiChoice:
	default:
		return fmt.Errorf("unknown task type %q", c.Type)
	}
	for _, m := range c.Metrics {
		if _, ok := metricFuncs[m]; !ok {
			return fmt.Errorf("unknown metric %q", m)
		}
	}
	// Fail on a bad strategy name before any data is touched.
	if _, err := decoding.New(decoding.Config{Strategy: c.SamplingStrategy, NumBeams: c.NumBeams}); err != nil {
		return err
	}
	return nil
}

// DecodingConfig derives the strategy configuration for this task.
func (c Config) DecodingConfig(endTokens []int) decoding.Config {
	return decoding.Config{
		Strategy:          c.SamplingStrategy,
		NumBeams:          c.NumBeams,
		LengthPenalty:     c.LengthPenalty,
		NoRepeatNgramSize: c.NoRepeatNgramSize,
		MinTargetLength:   c.MinTgtLength,
		Temperature:       c.Temperature,
		TopK:              c.TopK,
		Seed:              c.Seed,
		EndTokens:         endTokens,
	}
}
