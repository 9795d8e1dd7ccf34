package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-hicp-pipeline/internal/model"
)

func initTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, InitDB(filepath.Join(t.TempDir(), "pipeline.db")))
}

func monthStart(y int, m time.Month) *time.Time {
	ts := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	return &ts
}

func fptr(v float64) *float64 { return &v }

func TestRunTracking(t *testing.T) {
	initTestDB(t)

	t.Run("saved run is listed and fetchable", func(t *testing.T) {
		spec := model.RunSpec{Stages: []string{"fetch", "transform"}}
		require.NoError(t, SaveRun("run-1", spec))

		run, err := GetRun("run-1")
		require.NoError(t, err)
		assert.Equal(t, "run-1", run["id"])
		assert.Equal(t, "pending", run["status"])
		assert.Equal(t, spec, run["spec"])

		runs, err := ListRuns()
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "run-1", runs[0]["id"])
	})

	t.Run("status updates are visible", func(t *testing.T) {
		require.NoError(t, SaveRun("run-2", model.RunSpec{}))
		require.NoError(t, UpdateRunStatus("run-2", "completed"))

		run, err := GetRun("run-2")
		require.NoError(t, err)
		assert.Equal(t, "completed", run["status"])
	})

	t.Run("errors accumulate per run", func(t *testing.T) {
		require.NoError(t, SaveRun("run-3", model.RunSpec{}))
		require.NoError(t, SaveRunError("run-3", assert.AnError))

		errs, err := GetRunErrors("run-3")
		require.NoError(t, err)
		require.Len(t, errs, 1)
		assert.Equal(t, assert.AnError.Error(), errs[0]["message"])
	})

	t.Run("nil error is a no-op", func(t *testing.T) {
		require.NoError(t, SaveRunError("run-3", nil))
		errs, err := GetRunErrors("run-3")
		require.NoError(t, err)
		assert.Len(t, errs, 1)
	})

	t.Run("unknown run is not found", func(t *testing.T) {
		_, err := GetRun("no-such-run")
		assert.Error(t, err)
	})
}

func TestFactTable(t *testing.T) {
	initTestDB(t)
	require.NoError(t, EnsureFactTable())
	// idempotent
	require.NoError(t, EnsureFactTable())

	series := model.SeriesKey{Geo: "LU", Coicop: "CP00", Unit: "I15"}
	rows := []model.Observation{
		{Time: monthStart(2024, 1), Geo: "LU", Coicop: "CP00", Unit: "I15", Value: fptr(100), ProcessedAtUTC: "2024-02-01T00:00:00Z", RawBlob: "raw/x.json"},
		{Time: monthStart(2024, 2), Geo: "LU", Coicop: "CP00", Unit: "I15", Value: nil, ProcessedAtUTC: "2024-02-01T00:00:00Z", RawBlob: "raw/x.json"},
	}

	t.Run("replace inserts all rows", func(t *testing.T) {
		inserted, err := ReplaceSeries(series, rows)
		require.NoError(t, err)
		assert.Equal(t, 2, inserted)

		n, err := CountSeriesRows(series)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("replace is delete-then-insert, not append", func(t *testing.T) {
		inserted, err := ReplaceSeries(series, rows[:1])
		require.NoError(t, err)
		assert.Equal(t, 1, inserted)

		n, err := CountSeriesRows(series)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("other series are untouched", func(t *testing.T) {
		other := model.SeriesKey{Geo: "DE", Coicop: "CP00", Unit: "I15"}
		otherRows := []model.Observation{
			{Time: monthStart(2024, 1), Geo: "DE", Coicop: "CP00", Unit: "I15", Value: fptr(99), ProcessedAtUTC: "x", RawBlob: "y"},
		}
		_, err := ReplaceSeries(other, otherRows)
		require.NoError(t, err)

		n, err := CountSeriesRows(series)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = CountSeriesRows(other)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}
