package model

import "encoding/json"

// Check is one named rule outcome. Details holds rule-specific diagnostics
// (missing columns, null counts, offending groups) and is flattened next to
// name/passed in JSON so reports read the same as the battery writes them.
type Check struct {
	Name    string
	Passed  bool
	Details map[string]interface{}
}

// MarshalJSON flattens Details alongside name and passed.
func (c Check) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(c.Details)+2)
	for k, v := range c.Details {
		out[k] = v
	}
	out["name"] = c.Name
	out["passed"] = c.Passed
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON; unknown keys land in Details.
func (c *Check) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if name, ok := raw["name"].(string); ok {
		c.Name = name
	}
	if passed, ok := raw["passed"].(bool); ok {
		c.Passed = passed
	}
	delete(raw, "name")
	delete(raw, "passed")
	if len(raw) > 0 {
		c.Details = raw
	}
	return nil
}

// Summary holds descriptive statistics of the checked table. Pointer fields
// are null when the table is empty or the column is all-null.
type Summary struct {
	Rows     int      `json:"rows"`
	Columns  []string `json:"columns"`
	MinTime  *string  `json:"min_time"`
	MaxTime  *string  `json:"max_time"`
	ValueMin *float64 `json:"value_min"`
	ValueMax *float64 `json:"value_max"`
}

// Report is the outcome of one quality run; Passed is the AND of all
// evaluated checks.
type Report struct {
	Passed  bool    `json:"passed"`
	Checks  []Check `json:"checks"`
	Summary Summary `json:"summary"`
}

// QualityMeta ties a report to the table it judged.
type QualityMeta struct {
	ProcessedBlob string `json:"processed_blob"`
	CheckedAtUTC  string `json:"checked_at_utc"`
	PipelineStage string `json:"pipeline_stage"`
}

// QualityEnvelope is the persisted report document.
type QualityEnvelope struct {
	Meta   QualityMeta `json:"meta"`
	Report Report      `json:"report"`
}

// LatestPointer names the most recent quality report for a series. It is
// overwritten on every validation run, pass or fail; readers must check the
// report's pass flag, not pointer freshness.
type LatestPointer struct {
	LatestReport string `json:"latest_report"`
}
