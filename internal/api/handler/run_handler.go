package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go-hicp-pipeline/internal/blob"
	"go-hicp-pipeline/internal/config"
	"go-hicp-pipeline/internal/model"
	"go-hicp-pipeline/internal/pipeline"
	"go-hicp-pipeline/internal/store"

	"github.com/google/uuid"
)

// CreateRun starts a new pipeline run
// @Summary Create a new pipeline run
// @Description Start a pipeline run executing the requested stages (fetch, transform, validate, load); an empty stage list runs the whole pipeline
// @Tags runs
// @Accept json
// @Produce json
// @Param run body model.RunSpec true "Run configuration"
// @Success 200 {object} map[string]interface{} "Run created successfully"
// @Failure 400 {object} map[string]interface{} "Invalid request payload"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [post]
func CreateRun(w http.ResponseWriter, r *http.Request) {
	var spec model.RunSpec
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
			http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
			return
		}
	}

	// 1. Validate requested stages
	for _, stage := range spec.Stages {
		if !model.KnownStage(stage) {
			http.Error(w, "Unknown stage: "+stage, http.StatusBadRequest)
			return
		}
	}

	cfg, err := config.Load()
	if err != nil {
		http.Error(w, "Failed to load configuration", http.StatusInternalServerError)
		return
	}

	// 2. Generate run ID and persist it
	runID := uuid.New().String()
	if err := store.SaveRun(runID, spec); err != nil {
		http.Error(w, "Failed to save run", http.StatusInternalServerError)
		return
	}

	// 3. Execute the run asynchronously
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		blobStore, err := blob.New(ctx, cfg)
		if err != nil {
			store.UpdateRunStatus(runID, "failed")
			store.SaveRunError(runID, err)
			return
		}
		pipeline.Run(ctx, runID, spec, cfg, blobStore)
	}()

	// 4. Return response
	resp := map[string]interface{}{
		"message":   "Pipeline run created successfully!",
		"runID":     runID,
		"status":    "pending",
		"createdAt": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ListRuns retrieves all pipeline runs
// @Summary List all runs
// @Description Get a list of all pipeline runs with their current status
// @Tags runs
// @Accept json
// @Produce json
// @Success 200 {array} map[string]interface{} "List of runs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [get]
func ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := store.ListRuns()
	if err != nil {
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}

// GetRun retrieves a specific pipeline run
// @Summary Get run
// @Description Retrieve details of a specific pipeline run
// @Tags runs
// @Accept json
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run details"
// @Failure 400 {object} map[string]interface{} "Invalid run ID"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id} [get]
func GetRun(w http.ResponseWriter, r *http.Request) {
	// Extract run ID from URL path
	path := r.URL.Path
	prefix := "/api/v1/runs/"

	if !strings.HasPrefix(path, prefix) {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	runID := path[len(prefix):]
	if runID == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	run, err := store.GetRun(runID)
	if err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

// GetRunErrors retrieves errors for a pipeline run
// @Summary Get run errors
// @Description Retrieve all errors that occurred during a pipeline run
// @Tags runs
// @Accept json
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run errors"
// @Failure 400 {object} map[string]interface{} "Invalid run ID"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/errors [get]
func GetRunErrors(w http.ResponseWriter, r *http.Request) {
	// Extract run ID from URL path
	path := r.URL.Path
	prefix := "/api/v1/runs/"
	suffix := "/errors"

	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	runID := path[len(prefix) : len(path)-len(suffix)]
	if runID == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}

	errors, err := store.GetRunErrors(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve errors", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"run_id": runID,
		"errors": errors,
		"count":  len(errors),
	})
}

// GetLatestQuality retrieves the most recent quality report
// @Summary Get latest quality report
// @Description Retrieve the quality report the LATEST pointer currently refers to
// @Tags quality
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{} "Quality report"
// @Failure 404 {object} map[string]interface{} "No quality report published yet"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /quality/latest [get]
func GetLatestQuality(w http.ResponseWriter, r *http.Request) {
	cfg, err := config.Load()
	if err != nil {
		http.Error(w, "Failed to load configuration", http.StatusInternalServerError)
		return
	}

	blobStore, err := blob.New(r.Context(), cfg)
	if err != nil {
		http.Error(w, "Failed to connect to object storage", http.StatusInternalServerError)
		return
	}

	ptrData, err := blobStore.Get(r.Context(), cfg.LatestPointerKey())
	if err != nil {
		http.Error(w, "No quality report published yet", http.StatusNotFound)
		return
	}

	var pointer model.LatestPointer
	if err := json.Unmarshal(ptrData, &pointer); err != nil || pointer.LatestReport == "" {
		http.Error(w, "Invalid quality pointer", http.StatusInternalServerError)
		return
	}

	reportData, err := blobStore.Get(r.Context(), pointer.LatestReport)
	if err != nil {
		http.Error(w, "Quality report not found", http.StatusNotFound)
		return
	}

	var envelope model.QualityEnvelope
	if err := json.Unmarshal(reportData, &envelope); err != nil {
		http.Error(w, "Invalid quality report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"report_key": pointer.LatestReport,
		"meta":       envelope.Meta,
		"report":     envelope.Report,
	})
}
