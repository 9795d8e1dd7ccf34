package model

// Stage names in canonical execution order.
const (
	StageFetch     = "fetch"
	StageTransform = "transform"
	StageValidate  = "validate"
	StageLoad      = "load"
)

// StageOrder is the canonical execution order of the pipeline stages.
var StageOrder = []string{StageFetch, StageTransform, StageValidate, StageLoad}

// RunSpec is the body of POST /api/v1/runs. An empty Stages list means the
// whole pipeline.
type RunSpec struct {
	Stages []string `json:"stages"`
}

// KnownStage reports whether name is one of the pipeline stages.
func KnownStage(name string) bool {
	for _, s := range StageOrder {
		if s == name {
			return true
		}
	}
	return false
}
