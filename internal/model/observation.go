package model

import "time"

// Canonical column names of the tidy table, in output order.
const (
	ColTime           = "time"
	ColGeo            = "geo"
	ColCoicop         = "coicop"
	ColUnit           = "unit"
	ColValue          = "value"
	ColProcessedAtUTC = "processed_at_utc"
	ColRawBlob        = "raw_blob"
)

// RequiredColumns are the columns every loadable table must carry.
var RequiredColumns = []string{ColTime, ColGeo, ColCoicop, ColUnit, ColValue}

// KeyColumns form the natural key of one observation.
var KeyColumns = []string{ColTime, ColGeo, ColCoicop, ColUnit}

// Observation is one tidy row: one index value for one month of one series.
// Time is nil when the period code did not parse; Value is nil for an absent
// observation. String columns use "" for null.
type Observation struct {
	Time           *time.Time `json:"time"`
	Geo            string     `json:"geo"`
	Coicop         string     `json:"coicop"`
	Unit           string     `json:"unit"`
	Value          *float64   `json:"value"`
	ProcessedAtUTC string     `json:"processed_at_utc"`
	RawBlob        string     `json:"raw_blob"`
}

// Table is a fully materialized observation table. Columns lists the columns
// actually present, since a cube may lack some canonical dimensions.
type Table struct {
	Columns []string      `json:"columns"`
	Rows    []Observation `json:"rows"`
}

// Has reports whether the table carries the named column.
func (t *Table) Has(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// SeriesKey identifies one (geo, coicop, unit) series.
type SeriesKey struct {
	Geo    string `json:"geo"`
	Coicop string `json:"coicop"`
	Unit   string `json:"unit"`
}

// LoadResult summarizes one loader run.
type LoadResult struct {
	ProcessedBlob string    `json:"processed_blob"`
	Series        SeriesKey `json:"series"`
	RowsInserted  int       `json:"rows_inserted"`
}
