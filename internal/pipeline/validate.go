package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go-hicp-pipeline/internal/codec"
	"go-hicp-pipeline/internal/config"
	"go-hicp-pipeline/internal/model"
)

// ------------------- Validate stage -------------------

// Validate reads the latest processed table, runs the quality-rule battery
// and writes the report plus the LATEST pointer. A failing battery is data,
// not an error: the report key and pass flag come back either way.
func Validate(ctx context.Context, cfg *config.Config, store ObjectStore) (string, bool, error) {
	processedKey, err := store.Latest(ctx, cfg.ProcessedPrefix())
	if err != nil {
		return "", false, err
	}
	if processedKey == "" {
		return "", false, fmt.Errorf("no processed parquet found under prefix: %s", cfg.ProcessedPrefix())
	}

	data, err := store.Get(ctx, processedKey)
	if err != nil {
		return "", false, err
	}
	table, err := codec.DecodeTable(ctx, data)
	if err != nil {
		return "", false, err
	}

	report := RunChecks(table)

	now := time.Now().UTC()
	out := model.QualityEnvelope{
		Meta: model.QualityMeta{
			ProcessedBlob: processedKey,
			CheckedAtUTC:  now.Format(time.RFC3339),
			PipelineStage: "silver/quality",
		},
		Report: report,
	}
	body, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", false, fmt.Errorf("failed to encode quality report: %w", err)
	}

	status := "FAIL"
	if report.Passed {
		status = "PASS"
	}
	reportKey := fmt.Sprintf("%sts=%s_%s.json", cfg.QualityPrefix(), keyTimestamp(now), status)
	if err := store.Put(ctx, reportKey, body, "application/json"); err != nil {
		return "", false, err
	}

	// The pointer is overwritten even on FAIL; consumers must check the
	// report's pass flag, not pointer freshness.
	pointer, err := json.MarshalIndent(model.LatestPointer{LatestReport: reportKey}, "", "  ")
	if err != nil {
		return "", false, fmt.Errorf("failed to encode latest pointer: %w", err)
	}
	if err := store.Put(ctx, cfg.LatestPointerKey(), pointer, "application/json"); err != nil {
		return "", false, err
	}

	fmt.Println("✅ Quality check complete")
	fmt.Printf("   Processed: %s\n", processedKey)
	fmt.Printf("   Report:    %s\n", reportKey)
	fmt.Printf("   Status:    %s\n", status)

	return reportKey, report.Passed, nil
}

// RunChecks evaluates the fixed rule battery against one table. Every rule
// outcome is recorded; the report passes only if all evaluated rules pass.
func RunChecks(t *model.Table) model.Report {
	var checks []model.Check
	passed := true

	// 1) Schema
	var missing []string
	for _, col := range model.RequiredColumns {
		if !t.Has(col) {
			missing = append(missing, col)
		}
	}
	if missing == nil {
		missing = []string{}
	}
	checks = append(checks, model.Check{
		Name:    "schema_required_columns",
		Passed:  len(missing) == 0,
		Details: map[string]interface{}{"missing": missing},
	})
	passed = passed && len(missing) == 0

	// 2) Non-null (only judged against a complete schema)
	if len(missing) == 0 {
		nullCounts := map[string]int{}
		for _, col := range model.RequiredColumns {
			nullCounts[col] = 0
		}
		for _, row := range t.Rows {
			if row.Time == nil {
				nullCounts[model.ColTime]++
			}
			if row.Geo == "" {
				nullCounts[model.ColGeo]++
			}
			if row.Coicop == "" {
				nullCounts[model.ColCoicop]++
			}
			if row.Unit == "" {
				nullCounts[model.ColUnit]++
			}
			if row.Value == nil {
				nullCounts[model.ColValue]++
			}
		}
		ok := true
		for _, n := range nullCounts {
			ok = ok && n == 0
		}
		checks = append(checks, model.Check{
			Name:    "non_null_required_columns",
			Passed:  ok,
			Details: map[string]interface{}{"null_counts": nullCounts},
		})
		passed = passed && ok
	}

	// 3) Duplicate keys
	var keyCols []string
	for _, col := range model.KeyColumns {
		if t.Has(col) {
			keyCols = append(keyCols, col)
		}
	}
	if len(keyCols) > 0 {
		seen := make(map[string]bool, len(t.Rows))
		duplicates := 0
		for _, row := range t.Rows {
			k := rowKey(t, row, keyCols)
			if seen[k] {
				duplicates++
			}
			seen[k] = true
		}
		checks = append(checks, model.Check{
			Name:    "no_duplicate_keys",
			Passed:  duplicates == 0,
			Details: map[string]interface{}{"duplicate_rows": duplicates, "key_cols": keyCols},
		})
		passed = passed && duplicates == 0
	}

	// 4) Value sanity (an index value must be strictly positive)
	if t.Has(model.ColValue) {
		nonPositive := 0
		for _, row := range t.Rows {
			if row.Value != nil && *row.Value <= 0 {
				nonPositive++
			}
		}
		checks = append(checks, model.Check{
			Name:    "value_positive",
			Passed:  nonPositive == 0,
			Details: map[string]interface{}{"non_positive": nonPositive},
		})
		passed = passed && nonPositive == 0
	}

	// 5) Time parsing
	if t.Has(model.ColTime) {
		unparseable := 0
		for _, row := range t.Rows {
			if row.Time == nil {
				unparseable++
			}
		}
		checks = append(checks, model.Check{
			Name:    "time_parseable",
			Passed:  unparseable == 0,
			Details: map[string]interface{}{"unparseable_time_rows": unparseable},
		})
		passed = passed && unparseable == 0
	}

	// 6) Monthly frequency, one series at a time
	if t.Has(model.ColTime) && t.Has(model.ColGeo) && t.Has(model.ColCoicop) && t.Has(model.ColUnit) {
		groups := map[model.SeriesKey][]*time.Time{}
		for _, row := range t.Rows {
			key := model.SeriesKey{Geo: row.Geo, Coicop: row.Coicop, Unit: row.Unit}
			groups[key] = append(groups[key], row.Time)
		}

		keys := make([]model.SeriesKey, 0, len(groups))
		for key := range groups {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, b := keys[i], keys[j]
			if a.Geo != b.Geo {
				return a.Geo < b.Geo
			}
			if a.Coicop != b.Coicop {
				return a.Coicop < b.Coicop
			}
			return a.Unit < b.Unit
		})

		freqPass := true
		details := []map[string]interface{}{}
		for _, key := range keys {
			if monthlyNoGaps(groups[key]) {
				continue
			}
			freqPass = false
			details = append(details, map[string]interface{}{
				"geo":    key.Geo,
				"coicop": key.Coicop,
				"unit":   key.Unit,
				"issue":  "missing_months_or_duplicates",
			})
		}
		checks = append(checks, model.Check{
			Name:    "monthly_frequency_no_gaps",
			Passed:  freqPass,
			Details: map[string]interface{}{"details": details},
		})
		passed = passed && freqPass
	}

	return model.Report{Passed: passed, Checks: checks, Summary: summarize(t)}
}

// monthlyNoGaps reports whether the distinct non-null times form consecutive
// month starts from min to max. Fewer than 3 distinct points is too little
// to judge, so it passes.
func monthlyNoGaps(times []*time.Time) bool {
	distinct := map[time.Time]bool{}
	for _, t := range times {
		if t != nil {
			distinct[*t] = true
		}
	}
	if len(distinct) < 3 {
		return true
	}

	sorted := make([]time.Time, 0, len(distinct))
	for t := range distinct {
		sorted = append(sorted, t)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	for i := 1; i < len(sorted); i++ {
		if !sorted[i].Equal(sorted[i-1].AddDate(0, 1, 0)) {
			return false
		}
	}
	return true
}

func summarize(t *model.Table) model.Summary {
	s := model.Summary{Rows: len(t.Rows), Columns: t.Columns}
	if s.Columns == nil {
		s.Columns = []string{}
	}

	if t.Has(model.ColTime) {
		var minT, maxT *time.Time
		for i := range t.Rows {
			ts := t.Rows[i].Time
			if ts == nil {
				continue
			}
			if minT == nil || ts.Before(*minT) {
				minT = ts
			}
			if maxT == nil || ts.After(*maxT) {
				maxT = ts
			}
		}
		if minT != nil {
			minStr := minT.Format("2006-01-02")
			maxStr := maxT.Format("2006-01-02")
			s.MinTime = &minStr
			s.MaxTime = &maxStr
		}
	}

	if t.Has(model.ColValue) {
		var minV, maxV *float64
		for i := range t.Rows {
			v := t.Rows[i].Value
			if v == nil {
				continue
			}
			if minV == nil || *v < *minV {
				minV = v
			}
			if maxV == nil || *v > *maxV {
				maxV = v
			}
		}
		s.ValueMin = minV
		s.ValueMax = maxV
	}

	return s
}

func rowKey(t *model.Table, row model.Observation, keyCols []string) string {
	key := ""
	for _, col := range keyCols {
		switch col {
		case model.ColTime:
			if row.Time != nil {
				key += row.Time.Format("2006-01-02")
			}
		case model.ColGeo:
			key += row.Geo
		case model.ColCoicop:
			key += row.Coicop
		case model.ColUnit:
			key += row.Unit
		}
		key += "\x1f"
	}
	return key
}
