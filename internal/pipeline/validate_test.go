package pipeline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-hicp-pipeline/internal/codec"
	"go-hicp-pipeline/internal/model"
)

func month(y int, m time.Month) *time.Time {
	t := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	return &t
}

func fptr(v float64) *float64 { return &v }

func seriesRow(t *time.Time, v *float64) model.Observation {
	return model.Observation{Time: t, Geo: "LU", Coicop: "CP00", Unit: "I15", Value: v}
}

func fullTable(rows ...model.Observation) *model.Table {
	return &model.Table{Columns: model.RequiredColumns, Rows: rows}
}

func findCheck(t *testing.T, report model.Report, name string) model.Check {
	t.Helper()
	for _, c := range report.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %s not found in report", name)
	return model.Check{}
}

func hasCheck(report model.Report, name string) bool {
	for _, c := range report.Checks {
		if c.Name == name {
			return true
		}
	}
	return false
}

func TestRunChecks(t *testing.T) {
	t.Run("clean monthly series passes every rule", func(t *testing.T) {
		report := RunChecks(fullTable(
			seriesRow(month(2024, 1), fptr(100)),
			seriesRow(month(2024, 2), fptr(101)),
			seriesRow(month(2024, 3), fptr(102)),
		))

		assert.True(t, report.Passed)
		for _, c := range report.Checks {
			assert.True(t, c.Passed, c.Name)
		}
		assert.Equal(t, 3, report.Summary.Rows)
		require.NotNil(t, report.Summary.MinTime)
		assert.Equal(t, "2024-01-01", *report.Summary.MinTime)
		require.NotNil(t, report.Summary.MaxTime)
		assert.Equal(t, "2024-03-01", *report.Summary.MaxTime)
		require.NotNil(t, report.Summary.ValueMin)
		assert.Equal(t, 100.0, *report.Summary.ValueMin)
		require.NotNil(t, report.Summary.ValueMax)
		assert.Equal(t, 102.0, *report.Summary.ValueMax)
	})

	t.Run("missing required column fails schema and skips null check", func(t *testing.T) {
		table := &model.Table{
			Columns: []string{"time", "geo", "coicop", "value"},
			Rows:    []model.Observation{seriesRow(month(2024, 1), fptr(100))},
		}
		report := RunChecks(table)

		assert.False(t, report.Passed)
		schema := findCheck(t, report, "schema_required_columns")
		assert.False(t, schema.Passed)
		assert.Equal(t, []string{"unit"}, schema.Details["missing"])
		assert.False(t, hasCheck(report, "non_null_required_columns"))
	})

	t.Run("null values are counted per column", func(t *testing.T) {
		report := RunChecks(fullTable(
			seriesRow(month(2024, 1), fptr(100)),
			seriesRow(nil, nil),
		))

		assert.False(t, report.Passed)
		nonNull := findCheck(t, report, "non_null_required_columns")
		assert.False(t, nonNull.Passed)
		counts := nonNull.Details["null_counts"].(map[string]int)
		assert.Equal(t, 1, counts["time"])
		assert.Equal(t, 1, counts["value"])
		assert.Equal(t, 0, counts["geo"])
	})

	t.Run("duplicate natural keys fail", func(t *testing.T) {
		report := RunChecks(fullTable(
			seriesRow(month(2024, 1), fptr(100)),
			seriesRow(month(2024, 1), fptr(100)),
		))

		dup := findCheck(t, report, "no_duplicate_keys")
		assert.False(t, dup.Passed)
		assert.Equal(t, 1, dup.Details["duplicate_rows"])
	})

	t.Run("non-positive values fail, nulls excluded", func(t *testing.T) {
		report := RunChecks(fullTable(
			seriesRow(month(2024, 1), fptr(100)),
			seriesRow(month(2024, 2), fptr(0)),
			seriesRow(month(2024, 3), fptr(-5)),
			seriesRow(month(2024, 4), nil),
		))

		positive := findCheck(t, report, "value_positive")
		assert.False(t, positive.Passed)
		assert.Equal(t, 2, positive.Details["non_positive"])
	})

	t.Run("unparseable times fail the time rule", func(t *testing.T) {
		report := RunChecks(fullTable(
			seriesRow(month(2024, 1), fptr(100)),
			seriesRow(nil, fptr(101)),
		))

		parseable := findCheck(t, report, "time_parseable")
		assert.False(t, parseable.Passed)
		assert.Equal(t, 1, parseable.Details["unparseable_time_rows"])
	})

	t.Run("a month gap fails the frequency rule and names the series", func(t *testing.T) {
		report := RunChecks(fullTable(
			seriesRow(month(2024, 1), fptr(100)),
			seriesRow(month(2024, 2), fptr(101)),
			seriesRow(month(2024, 4), fptr(102)),
		))

		freq := findCheck(t, report, "monthly_frequency_no_gaps")
		assert.False(t, freq.Passed)
		details := freq.Details["details"].([]map[string]interface{})
		require.Len(t, details, 1)
		assert.Equal(t, "LU", details[0]["geo"])
		assert.Equal(t, "missing_months_or_duplicates", details[0]["issue"])
	})

	t.Run("two points are too few to judge frequency", func(t *testing.T) {
		report := RunChecks(fullTable(
			seriesRow(month(2024, 1), fptr(100)),
			seriesRow(month(2024, 4), fptr(101)),
		))

		freq := findCheck(t, report, "monthly_frequency_no_gaps")
		assert.True(t, freq.Passed)
	})

	t.Run("empty table passes with null summary bounds", func(t *testing.T) {
		report := RunChecks(fullTable())

		assert.True(t, report.Passed)
		assert.Equal(t, 0, report.Summary.Rows)
		assert.Nil(t, report.Summary.MinTime)
		assert.Nil(t, report.Summary.ValueMin)
	})
}

func TestMonthlyNoGaps(t *testing.T) {
	t.Run("december to january crosses the year boundary", func(t *testing.T) {
		assert.True(t, monthlyNoGaps([]*time.Time{
			month(2023, 11), month(2023, 12), month(2024, 1),
		}))
	})

	t.Run("duplicates collapse to distinct months", func(t *testing.T) {
		assert.True(t, monthlyNoGaps([]*time.Time{
			month(2024, 1), month(2024, 1), month(2024, 2), month(2024, 3),
		}))
	})

	t.Run("nil times are ignored", func(t *testing.T) {
		assert.True(t, monthlyNoGaps([]*time.Time{nil, month(2024, 1), month(2024, 2)}))
	})
}

func TestValidate(t *testing.T) {
	t.Run("passing table writes a PASS report and moves the pointer", func(t *testing.T) {
		cfg := testConfig()
		store := newMemStore()
		ctx := context.Background()

		table := fullTable(
			seriesRow(month(2024, 1), fptr(100)),
			seriesRow(month(2024, 2), fptr(101)),
			seriesRow(month(2024, 3), fptr(102)),
		)
		data, err := codec.EncodeTable(table)
		require.NoError(t, err)
		processedKey := cfg.ProcessedPrefix() + "ts=20240101_000000.parquet"
		require.NoError(t, store.Put(ctx, processedKey, data, ""))

		reportKey, passed, err := Validate(ctx, cfg, store)
		require.NoError(t, err)
		assert.True(t, passed)
		assert.Contains(t, reportKey, "_PASS.json")
		assert.Contains(t, reportKey, cfg.QualityPrefix())

		ptrData, err := store.Get(ctx, cfg.LatestPointerKey())
		require.NoError(t, err)
		var ptr model.LatestPointer
		require.NoError(t, json.Unmarshal(ptrData, &ptr))
		assert.Equal(t, reportKey, ptr.LatestReport)

		reportData, err := store.Get(ctx, reportKey)
		require.NoError(t, err)
		var envelope model.QualityEnvelope
		require.NoError(t, json.Unmarshal(reportData, &envelope))
		assert.Equal(t, processedKey, envelope.Meta.ProcessedBlob)
		assert.True(t, envelope.Report.Passed)
	})

	t.Run("failing table still writes the report and pointer", func(t *testing.T) {
		cfg := testConfig()
		store := newMemStore()
		ctx := context.Background()

		table := fullTable(seriesRow(month(2024, 1), fptr(-1)))
		data, err := codec.EncodeTable(table)
		require.NoError(t, err)
		require.NoError(t, store.Put(ctx, cfg.ProcessedPrefix()+"ts=20240101_000000.parquet", data, ""))

		reportKey, passed, err := Validate(ctx, cfg, store)
		require.NoError(t, err)
		assert.False(t, passed)
		assert.Contains(t, reportKey, "_FAIL.json")

		ptrData, err := store.Get(ctx, cfg.LatestPointerKey())
		require.NoError(t, err)
		var ptr model.LatestPointer
		require.NoError(t, json.Unmarshal(ptrData, &ptr))
		assert.Equal(t, reportKey, ptr.LatestReport)
	})

	t.Run("no processed table is an error", func(t *testing.T) {
		_, _, err := Validate(context.Background(), testConfig(), newMemStore())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no processed parquet found")
	})
}
