package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the spanfill configuration file
// (~/.config/spanfill/config.yaml). Fields are pointers where we need to
// distinguish "not set" from zero values.
type Config struct {
	VocabPath string `yaml:"vocab_path"`

	MaxSeqLength *int64 `yaml:"max_seq_length"`
	OutSeqLength *int64 `yaml:"out_seq_length"`

	// Decoding defaults
	Strategy          string   `yaml:"strategy"`
	NumBeams          *int64   `yaml:"num_beams"`
	LengthPenalty     *float64 `yaml:"length_penalty"`
	NoRepeatNgramSize *int64   `yaml:"no_repeat_ngram_size"`
	MinTgtLength      *int64   `yaml:"min_tgt_length"`
	Temperature       *float64 `yaml:"temperature"`
	TopK              *int64   `yaml:"top_k"`
	Seed              *int64   `yaml:"seed"`

	// Output
	OutputDir string `yaml:"output_dir"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "spanfill", "config.yaml")
}

// applyRunConfig applies config file defaults to run command variables
// when the corresponding CLI flag was not explicitly set.
func applyRunConfig(c *cli.Command, cfg Config,
	strategy *string, numBeams *int64, lengthPenalty *float64,
	noRepeatNgram *int64, minTgtLength *int64, temp *float64,
	topK *int64, seed *int64, outputDir *string,
) {
	applyCommonConfig(c, cfg)
	if cfg.Strategy != "" && !c.IsSet("strategy") {
		*strategy = cfg.Strategy
	}
	if cfg.NumBeams != nil && !c.IsSet("num-beams") {
		*numBeams = *cfg.NumBeams
	}
	if cfg.LengthPenalty != nil && !c.IsSet("length-penalty") {
		*lengthPenalty = *cfg.LengthPenalty
	}
	if cfg.NoRepeatNgramSize != nil && !c.IsSet("no-repeat-ngram") {
		*noRepeatNgram = *cfg.NoRepeatNgramSize
	}
	if cfg.MinTgtLength != nil && !c.IsSet("min-tgt-length") {
		*minTgtLength = *cfg.MinTgtLength
	}
	if cfg.Temperature != nil && !c.IsSet("temp") && !c.IsSet("temperature") {
		*temp = *cfg.Temperature
	}
	if cfg.TopK != nil && !c.IsSet("top-k") {
		*topK = *cfg.TopK
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		*seed = *cfg.Seed
	}
	if cfg.OutputDir != "" && !c.IsSet("output-dir") {
		*outputDir = cfg.OutputDir
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	applyCommonConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}

func applyCommonConfig(c *cli.Command, cfg Config) {
	if cfg.VocabPath != "" && !c.IsSet("vocab") {
		vocabPath = cfg.VocabPath
	}
	if cfg.MaxSeqLength != nil && !c.IsSet("max-seq-length") {
		maxSeqLength = *cfg.MaxSeqLength
	}
	if cfg.OutSeqLength != nil && !c.IsSet("out-seq-length") {
		outSeqLength = *cfg.OutSeqLength
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file
// doesn't exist.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
