package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go-hicp-pipeline/internal/codec"
	"go-hicp-pipeline/internal/config"
	"go-hicp-pipeline/internal/model"
	"go-hicp-pipeline/internal/store"
)

// ------------------- Load stage -------------------

// Load dereferences the LATEST quality pointer and, if the referenced report
// is PASS, replaces the series in the relational fact table with the
// processed rows. The processed table comes from the report's recorded
// source reference, never from a fresh listing.
func Load(ctx context.Context, cfg *config.Config, blobStore ObjectStore) (*model.LoadResult, error) {
	ptrBytes, err := blobStore.Get(ctx, cfg.LatestPointerKey())
	if err != nil {
		// no pointer means no passing report to load from
		return nil, &ReportNotPassingError{Report: cfg.LatestPointerKey()}
	}
	var ptr model.LatestPointer
	if err := json.Unmarshal(ptrBytes, &ptr); err != nil {
		return nil, fmt.Errorf("failed to decode latest pointer: %w", err)
	}

	if !strings.Contains(ptr.LatestReport, "_PASS.json") {
		return nil, &ReportNotPassingError{Report: ptr.LatestReport}
	}

	reportBytes, err := blobStore.Get(ctx, ptr.LatestReport)
	if err != nil {
		return nil, err
	}
	var envelope model.QualityEnvelope
	if err := json.Unmarshal(reportBytes, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode quality report %s: %w", ptr.LatestReport, err)
	}

	data, err := blobStore.Get(ctx, envelope.Meta.ProcessedBlob)
	if err != nil {
		return nil, err
	}
	table, err := codec.DecodeTable(ctx, data)
	if err != nil {
		return nil, err
	}
	if len(table.Rows) == 0 {
		return nil, fmt.Errorf("processed table %s has no rows to load", envelope.Meta.ProcessedBlob)
	}

	series := model.SeriesKey{
		Geo:    table.Rows[0].Geo,
		Coicop: table.Rows[0].Coicop,
		Unit:   table.Rows[0].Unit,
	}
	// The batch must be a single series; a mixed batch would mis-key the
	// delete+insert below.
	for _, row := range table.Rows {
		if row.Geo != series.Geo || row.Coicop != series.Coicop || row.Unit != series.Unit {
			return nil, fmt.Errorf("mixed series in batch: got (%s,%s,%s), expected (%s,%s,%s)",
				row.Geo, row.Coicop, row.Unit, series.Geo, series.Coicop, series.Unit)
		}
	}

	if err := store.EnsureFactTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure fact table: %w", err)
	}

	inserted, err := store.ReplaceSeries(series, table.Rows)
	if err != nil {
		return nil, fmt.Errorf("failed to replace series: %w", err)
	}

	fmt.Println("✅ HICP successfully loaded into the fact table")
	fmt.Printf("   Processed blob: %s\n", envelope.Meta.ProcessedBlob)
	fmt.Printf("   Rows inserted:  %d\n", inserted)
	fmt.Printf("   Series:         geo=%s, coicop=%s, unit=%s\n", series.Geo, series.Coicop, series.Unit)

	return &model.LoadResult{
		ProcessedBlob: envelope.Meta.ProcessedBlob,
		Series:        series,
		RowsInserted:  inserted,
	}, nil
}
