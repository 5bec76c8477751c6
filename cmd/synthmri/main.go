package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"synthmri/internal/config"
	"synthmri/internal/experiment"
)

func main() {
	cfgPath := flag.String("config", "configs/experiments.yaml", "Path to YAML config")
	syntheticRoot := flag.String("synthetic-root", "", "Override synthetic image root")
	realTrainRoot := flag.String("real-train-root", "", "Override real training image root")
	realHoldoutRoot := flag.String("real-holdout-root", "", "Override real holdout image root")
	modelDir := flag.String("model-dir", "", "Override snapshot directory")
	epochs := flag.Int("epochs", 0, "Number of training epochs")
	batchSize := flag.Int("batch-size", 0, "Batch size")
	numWorkers := flag.Int("num-workers", 0, "Number of image decode workers")
	seed := flag.Int64("seed", 0, "PRNG seed")

	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	cfg.ApplyOverrides(config.Overrides{
		SyntheticRoot:   *syntheticRoot,
		RealTrainRoot:   *realTrainRoot,
		RealHoldoutRoot: *realHoldoutRoot,
		ModelDir:        *modelDir,
		Epochs:          *epochs,
		BatchSize:       *batchSize,
		NumWorkers:      *numWorkers,
		Seed:            *seed,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := experiment.NewRunner(cfg)
	if err := runner.Load(ctx); err != nil {
		log.Fatalf("loading datasets failed: %v", err)
	}
	if err := runner.Run(ctx); err != nil {
		log.Fatalf("experiments failed: %v", err)
	}
}
