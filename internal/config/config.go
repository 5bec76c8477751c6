package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Config captures the runtime knobs for an experiment run.
type Config struct {
	SyntheticRoot   string  `yaml:"synthetic_root"`
	RealTrainRoot   string  `yaml:"real_train_root"`
	RealHoldoutRoot string  `yaml:"real_holdout_root"`
	ModelDir        string  `yaml:"model_dir"`
	Epochs          int     `yaml:"epochs"`
	BatchSize       int     `yaml:"batch_size"`
	LearningRate    float64 `yaml:"learning_rate"`
	ValFraction     float64 `yaml:"val_fraction"`
	KeepFraction    float64 `yaml:"keep_fraction"`
	NumWorkers      int     `yaml:"num_workers"`
	Seed            int64   `yaml:"seed"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	SyntheticRoot   string
	RealTrainRoot   string
	RealHoldoutRoot string
	ModelDir        string
	Epochs          int
	BatchSize       int
	NumWorkers      int
	Seed            int64
}

// Load reads and validates a Config from YAML.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := parseYAML(f)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.SyntheticRoot != "" {
		c.SyntheticRoot = o.SyntheticRoot
	}
	if o.RealTrainRoot != "" {
		c.RealTrainRoot = o.RealTrainRoot
	}
	if o.RealHoldoutRoot != "" {
		c.RealHoldoutRoot = o.RealHoldoutRoot
	}
	if o.ModelDir != "" {
		c.ModelDir = o.ModelDir
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.NumWorkers > 0 {
		c.NumWorkers = o.NumWorkers
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
}

// Validate verifies the config is runnable and fills defaults.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.SyntheticRoot == "" || c.RealTrainRoot == "" || c.RealHoldoutRoot == "" {
		return errors.New("synthetic, real-train and real-holdout roots must all be set")
	}
	if c.ModelDir == "" {
		c.ModelDir = "models"
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be > 0 (got %v)", c.LearningRate)
	}
	if c.ValFraction <= 0 || c.ValFraction >= 1 {
		return fmt.Errorf("val_fraction must be in (0, 1) (got %v)", c.ValFraction)
	}
	if c.KeepFraction <= 0 || c.KeepFraction > 1 {
		return fmt.Errorf("keep_fraction must be in (0, 1] (got %v)", c.KeepFraction)
	}
	if c.NumWorkers <= 0 {
		return fmt.Errorf("num_workers must be > 0 (got %d)", c.NumWorkers)
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	return nil
}

func parseYAML(r io.Reader) (*Config, error) {
	cfg := &Config{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: missing ':'", lineNo)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, "\"'")
		switch key {
		case "synthetic_root":
			cfg.SyntheticRoot = value
		case "real_train_root":
			cfg.RealTrainRoot = value
		case "real_holdout_root":
			cfg.RealHoldoutRoot = value
		case "model_dir":
			cfg.ModelDir = value
		case "epochs":
			v, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: epochs: %w", lineNo, err)
			}
			cfg.Epochs = v
		case "batch_size":
			v, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: batch_size: %w", lineNo, err)
			}
			cfg.BatchSize = v
		case "learning_rate":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: learning_rate: %w", lineNo, err)
			}
			cfg.LearningRate = v
		case "val_fraction":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: val_fraction: %w", lineNo, err)
			}
			cfg.ValFraction = v
		case "keep_fraction":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: keep_fraction: %w", lineNo, err)
			}
			cfg.KeepFraction = v
		case "num_workers":
			v, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: num_workers: %w", lineNo, err)
			}
			cfg.NumWorkers = v
		case "seed":
			v, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: seed: %w", lineNo, err)
			}
			cfg.Seed = v
		default:
			return nil, fmt.Errorf("line %d: unknown key %s", lineNo, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}
