package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"go-hicp-pipeline/internal/codec"
	"go-hicp-pipeline/internal/config"
	"go-hicp-pipeline/internal/model"
)

// ------------------- Transform stage -------------------

// Transform reads the latest raw snapshot, converts the JSON-stat cube to a
// tidy observation table and persists it as parquet. It returns the
// processed storage key.
func Transform(ctx context.Context, cfg *config.Config, store ObjectStore) (string, error) {
	rawKey, err := store.Latest(ctx, cfg.RawPrefix())
	if err != nil {
		return "", err
	}
	if rawKey == "" {
		return "", fmt.Errorf("no raw blobs found under prefix: %s", cfg.RawPrefix())
	}

	raw, err := store.Get(ctx, rawKey)
	if err != nil {
		return "", err
	}

	var wrapper model.RawEnvelope
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return "", fmt.Errorf("failed to decode raw wrapper %s: %w", rawKey, err)
	}

	table, err := CubeToTable(wrapper.Data)
	if err != nil {
		return "", err
	}

	// Pipeline provenance columns
	now := time.Now().UTC()
	processedAt := now.Format(time.RFC3339)
	for i := range table.Rows {
		table.Rows[i].ProcessedAtUTC = processedAt
		table.Rows[i].RawBlob = rawKey
	}
	table.Columns = append(table.Columns, model.ColProcessedAtUTC, model.ColRawBlob)

	parquetBytes, err := codec.EncodeTable(table)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%sts=%s.parquet", cfg.ProcessedPrefix(), keyTimestamp(now))
	if err := store.Put(ctx, key, parquetBytes, "application/octet-stream"); err != nil {
		return "", err
	}

	fmt.Println("✅ Processed latest raw HICP (JSON-stat) to parquet and uploaded:")
	fmt.Printf("   Raw:       %s\n", rawKey)
	fmt.Printf("   Processed: %s\n", key)
	fmt.Printf("   Rows:      %d\n", len(table.Rows))
	fmt.Printf("   Columns:   %v\n", table.Columns)

	return key, nil
}

// CubeToTable converts a JSON-stat 2.0 payload to a tidy table with one row
// per observation. Output columns are the canonical {time, geo, coicop,
// unit, value} restricted to the dimensions actually present, and rows are
// sorted by (geo, coicop, time).
func CubeToTable(payload json.RawMessage) (*model.Table, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(payload, &keys); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if _, ok := keys["dimension"]; !ok {
		return nil, malformed(keys)
	}
	if _, ok := keys["value"]; !ok {
		return nil, malformed(keys)
	}

	var cube model.Cube
	if err := json.Unmarshal(payload, &cube); err != nil {
		return nil, fmt.Errorf("failed to decode cube: %w", err)
	}

	// Ordered codes per dimension, in declared dimension order.
	codesByDim := make([][]string, len(cube.ID))
	for i, name := range cube.ID {
		codes, ok := cube.Dimension[name].Category.Codes()
		if !ok {
			return nil, &UnsupportedDimensionIndexError{Dimension: name}
		}
		codesByDim[i] = codes
	}

	values, ok := model.DecodeValues(cube.Value)
	if !ok {
		return nil, &UnsupportedValueEncodingError{}
	}

	expected := 1
	for _, codes := range codesByDim {
		expected *= len(codes)
	}
	// A sparse map legitimately carries fewer entries than the product.
	if !values.Sparse && values.Len() != expected {
		return nil, &ValueLengthMismatchError{Got: values.Len(), Expected: expected}
	}

	table := &model.Table{Rows: make([]model.Observation, 0, expected)}

	// Cartesian product in dimension order: position i in the enumeration
	// is flat index i in the value array (last dimension varies fastest).
	for i := 0; i < expected; i++ {
		var obs model.Observation
		rem := i
		for j := len(codesByDim) - 1; j >= 0; j-- {
			size := len(codesByDim[j])
			code := codesByDim[j][rem%size]
			rem /= size
			switch cube.ID[j] {
			case model.ColTime:
				obs.Time = ParsePeriod(code)
			case model.ColGeo:
				obs.Geo = code
			case model.ColCoicop:
				obs.Coicop = code
			case model.ColUnit:
				obs.Unit = code
			}
			// other dimensions (e.g. freq) are dropped from the tidy table
		}
		obs.Value = values.At(i)
		table.Rows = append(table.Rows, obs)
	}

	for _, col := range model.RequiredColumns {
		if col == model.ColValue || hasDimension(cube.ID, col) {
			table.Columns = append(table.Columns, col)
		}
	}

	sort.SliceStable(table.Rows, func(a, b int) bool {
		ra, rb := table.Rows[a], table.Rows[b]
		if ra.Geo != rb.Geo {
			return ra.Geo < rb.Geo
		}
		if ra.Coicop != rb.Coicop {
			return ra.Coicop < rb.Coicop
		}
		return timeLess(ra.Time, rb.Time)
	})

	return table, nil
}

var monthlyPattern = regexp.MustCompile(`^(\d{4})M(\d{2})$`)

// generalLayouts are tried in order for period codes outside the monthly
// pattern.
var generalLayouts = []string{"2006-01-02", "2006-01", "2006", time.RFC3339}

// ParsePeriod converts a period code to the first day of its month.
// "2024M01" → 2024-01-01; a parsed date not on day 1 is normalized down;
// unparseable codes yield nil, never an error.
func ParsePeriod(code string) *time.Time {
	if m := monthlyPattern.FindStringSubmatch(code); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 {
			t := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
			return &t
		}
		// out-of-range month falls through to general parsing
	}

	for _, layout := range generalLayouts {
		if parsed, err := time.Parse(layout, code); err == nil {
			t := time.Date(parsed.Year(), parsed.Month(), 1, 0, 0, 0, 0, time.UTC)
			return &t
		}
	}
	return nil
}

func malformed(keys map[string]json.RawMessage) error {
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)
	if len(names) > 30 {
		names = names[:30]
	}
	return &MalformedPayloadError{Keys: names}
}

func hasDimension(ids []string, name string) bool {
	for _, id := range ids {
		if id == name {
			return true
		}
	}
	return false
}

// timeLess orders times ascending with nil (unparseable) last.
func timeLess(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.Before(*b)
	}
}
