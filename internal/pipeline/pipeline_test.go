package pipeline

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-hicp-pipeline/internal/model"
	"go-hicp-pipeline/internal/store"
)

func TestNormalizeStages(t *testing.T) {
	t.Run("empty request means the whole pipeline", func(t *testing.T) {
		stages, err := normalizeStages(nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"fetch", "transform", "validate", "load"}, stages)
	})

	t.Run("requested stages come back in canonical order", func(t *testing.T) {
		stages, err := normalizeStages([]string{"validate", "transform"})
		require.NoError(t, err)
		assert.Equal(t, []string{"transform", "validate"}, stages)
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		stages, err := normalizeStages([]string{"fetch", "fetch"})
		require.NoError(t, err)
		assert.Equal(t, []string{"fetch"}, stages)
	})

	t.Run("unknown stage is rejected", func(t *testing.T) {
		_, err := normalizeStages([]string{"aggregate"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown stage")
	})
}

func TestRun(t *testing.T) {
	t.Run("transform and validate stages complete against seeded raw", func(t *testing.T) {
		require.NoError(t, store.InitDB(filepath.Join(t.TempDir(), "pipeline.db")))

		cfg := testConfig()
		m := newMemStore()
		ctx := context.Background()

		envelope := model.RawEnvelope{
			Data: monthlyCube([]string{"2024M01", "2024M02", "2024M03"}, []float64{100, 101, 102}),
		}
		raw, err := json.Marshal(envelope)
		require.NoError(t, err)
		require.NoError(t, m.Put(ctx, cfg.RawPrefix()+"ts=20240101_000000.json", raw, ""))

		require.NoError(t, store.SaveRun("run-ok", model.RunSpec{}))
		err = Run(ctx, "run-ok", model.RunSpec{Stages: []string{"transform", "validate"}}, cfg, m)
		require.NoError(t, err)

		run, err := store.GetRun("run-ok")
		require.NoError(t, err)
		assert.Equal(t, "completed", run["status"])

		reportKey, err := m.Latest(ctx, cfg.QualityPrefix())
		require.NoError(t, err)
		assert.Contains(t, reportKey, "_PASS.json")
	})

	t.Run("failed stage marks the run failed and records the error", func(t *testing.T) {
		require.NoError(t, store.InitDB(filepath.Join(t.TempDir(), "pipeline.db")))

		cfg := testConfig()
		require.NoError(t, store.SaveRun("run-bad", model.RunSpec{}))

		// transform with no raw snapshot fails
		err := Run(context.Background(), "run-bad", model.RunSpec{Stages: []string{"transform"}}, cfg, newMemStore())
		require.Error(t, err)

		run, err := store.GetRun("run-bad")
		require.NoError(t, err)
		assert.Equal(t, "failed", run["status"])

		errs, err := store.GetRunErrors("run-bad")
		require.NoError(t, err)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0]["message"], "transform stage failed")
	})

	t.Run("unknown stage in the request fails the run", func(t *testing.T) {
		require.NoError(t, store.InitDB(filepath.Join(t.TempDir(), "pipeline.db")))
		require.NoError(t, store.SaveRun("run-unknown", model.RunSpec{}))

		err := Run(context.Background(), "run-unknown", model.RunSpec{Stages: []string{"export"}}, testConfig(), newMemStore())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown stage")
	})
}
