package model

import (
	"encoding/json"
	"sort"
	"strconv"
)

// RawMeta is the provenance envelope written alongside every raw snapshot.
type RawMeta struct {
	Dataset         string            `json:"dataset"`
	Params          map[string]string `json:"params"`
	RequestedParams map[string]string `json:"requested_params"`
	FetchedAtUTC    string            `json:"fetched_at_utc"`
	Source          string            `json:"source"`
	PipelineStage   string            `json:"pipeline_stage"`
}

// RawEnvelope wraps the untouched API payload with fetch metadata.
type RawEnvelope struct {
	Meta RawMeta         `json:"meta"`
	Data json.RawMessage `json:"data"`
}

// Cube is a JSON-stat 2.0 payload: named dimensions in declared order and a
// flat value array addressed by the Cartesian product of dimension positions.
type Cube struct {
	ID        []string             `json:"id"`
	Size      []int                `json:"size"`
	Dimension map[string]Dimension `json:"dimension"`
	Value     json.RawMessage      `json:"value"`
}

// Dimension holds one dimension's category descriptor.
type Dimension struct {
	Label    string   `json:"label"`
	Category Category `json:"category"`
}

// Category carries the code ordering. Index is either a {code: position}
// object or an ordered code list, so it stays raw until decoded.
type Category struct {
	Index json.RawMessage   `json:"index"`
	Label map[string]string `json:"label"`
}

// Codes returns the dimension's category codes in index order.
// A missing index yields an empty list (zero-size dimension).
func (c Category) Codes() ([]string, bool) {
	if len(c.Index) == 0 || string(c.Index) == "null" {
		return []string{}, true
	}

	// most common: {code: position}
	var byPos map[string]int
	if err := json.Unmarshal(c.Index, &byPos); err == nil {
		type entry struct {
			code string
			pos  int
		}
		entries := make([]entry, 0, len(byPos))
		for code, pos := range byPos {
			entries = append(entries, entry{code, pos})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].pos < entries[j].pos })
		codes := make([]string, len(entries))
		for i, e := range entries {
			codes[i] = e.code
		}
		return codes, true
	}

	// less common: already an ordered list
	var list []string
	if err := json.Unmarshal(c.Index, &list); err == nil {
		return list, true
	}

	return nil, false
}

// ValueArray is the cube's flat value array, resolved once at decode time
// into either a dense list or a sparse index-keyed map.
type ValueArray struct {
	dense  []*float64
	sparse map[string]*float64
	Sparse bool
}

// DecodeValues resolves the dense/sparse encoding of a raw value array.
// Any other representation reports ok=false.
func DecodeValues(raw json.RawMessage) (*ValueArray, bool) {
	var dense []*float64
	if err := json.Unmarshal(raw, &dense); err == nil {
		return &ValueArray{dense: dense}, true
	}

	var sparse map[string]*float64
	if err := json.Unmarshal(raw, &sparse); err == nil {
		return &ValueArray{sparse: sparse, Sparse: true}, true
	}

	return nil, false
}

// Len is the dense array length; sparse arrays have no fixed length (-1).
func (v *ValueArray) Len() int {
	if v.Sparse {
		return -1
	}
	return len(v.dense)
}

// At returns the value at flat index i, or nil for an absent observation.
// Sparse arrays are keyed by the stringified index.
func (v *ValueArray) At(i int) *float64 {
	if v.Sparse {
		return v.sparse[strconv.Itoa(i)]
	}
	return v.dense[i]
}
