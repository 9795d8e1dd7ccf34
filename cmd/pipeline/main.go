package main

import (
	"context"
	"fmt"
	"os"

	"go-hicp-pipeline/internal/blob"
	"go-hicp-pipeline/internal/config"
	"go-hicp-pipeline/internal/model"
	"go-hicp-pipeline/internal/pipeline"
	"go-hicp-pipeline/internal/store"

	"github.com/google/uuid"
)

// Batch entrypoint: runs the requested stages once and exits.
//
// Usage:
//
//	pipeline [all|fetch|transform|validate|load ...]
func main() {
	spec := model.RunSpec{}
	for _, arg := range os.Args[1:] {
		if arg == "all" {
			spec.Stages = nil
			break
		}
		if !model.KnownStage(arg) {
			fmt.Fprintf(os.Stderr, "unknown stage: %s (expected fetch, transform, validate, load or all)\n", arg)
			os.Exit(2)
		}
		spec.Stages = append(spec.Stages, arg)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := store.InitDB(cfg.DBPath); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to init database: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	blobStore, err := blob.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to connect to object storage: %v\n", err)
		os.Exit(1)
	}

	runID := uuid.New().String()
	if err := store.SaveRun(runID, spec); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to save run: %v\n", err)
		os.Exit(1)
	}

	if err := pipeline.Run(ctx, runID, spec, cfg, blobStore); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Pipeline run %s failed: %v\n", runID, err)
		os.Exit(1)
	}
}
