package pipeline

import (
	"context"
	"fmt"
	"time"

	"go-hicp-pipeline/internal/config"
	"go-hicp-pipeline/internal/model"
	"go-hicp-pipeline/internal/store"
)

// ------------------- Pipeline Runner -------------------

// Run executes the requested stages in canonical order (fetch, transform,
// validate, load), tracking status and errors in the run store. Stages talk
// only through durable storage, so re-running a failed stage is always safe.
func Run(ctx context.Context, runID string, spec model.RunSpec, cfg *config.Config, blobStore ObjectStore) (err error) {
	start := time.Now()
	fmt.Printf("🚀 Starting pipeline run: %s\n", runID)

	store.UpdateRunStatus(runID, "running")

	defer func() {
		if err != nil {
			store.UpdateRunStatus(runID, "failed")
			store.SaveRunError(runID, err)
		}
	}()

	stages, err := normalizeStages(spec.Stages)
	if err != nil {
		return err
	}

	for _, stage := range stages {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		switch stage {
		case model.StageFetch:
			fmt.Println("➡️ Starting fetch stage...")
			store.UpdateRunStatus(runID, "fetching")
			if _, err = FetchRaw(ctx, cfg, blobStore); err != nil {
				return fmt.Errorf("fetch stage failed: %w", err)
			}

		case model.StageTransform:
			fmt.Println("🔄 Starting transform stage...")
			store.UpdateRunStatus(runID, "transforming")
			if _, err = Transform(ctx, cfg, blobStore); err != nil {
				return fmt.Errorf("transform stage failed: %w", err)
			}

		case model.StageValidate:
			fmt.Println("🔍 Starting validate stage...")
			store.UpdateRunStatus(runID, "validating")
			// A FAIL verdict is recorded data, not a stage error; the
			// loader is the gate that refuses failing tables.
			if _, _, err = Validate(ctx, cfg, blobStore); err != nil {
				return fmt.Errorf("validate stage failed: %w", err)
			}

		case model.StageLoad:
			fmt.Println("💾 Starting load stage...")
			store.UpdateRunStatus(runID, "loading")
			if _, err = Load(ctx, cfg, blobStore); err != nil {
				return fmt.Errorf("load stage failed: %w", err)
			}
		}
	}

	store.UpdateRunStatus(runID, "completed")
	fmt.Printf("✅ Pipeline run %s completed in %v\n", runID, time.Since(start))
	return nil
}

// normalizeStages validates the requested stage names and returns them in
// canonical execution order; an empty request means the whole pipeline.
func normalizeStages(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return model.StageOrder, nil
	}

	want := map[string]bool{}
	for _, name := range requested {
		if !model.KnownStage(name) {
			return nil, fmt.Errorf("unknown stage: %s", name)
		}
		want[name] = true
	}

	var stages []string
	for _, name := range model.StageOrder {
		if want[name] {
			stages = append(stages, name)
		}
	}
	return stages, nil
}
