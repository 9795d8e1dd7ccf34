package main

import (
	"go-hicp-pipeline/internal/api"
	"go-hicp-pipeline/internal/config"
	"go-hicp-pipeline/internal/store"
	"go-hicp-pipeline/pkg/router"

	_ "go-hicp-pipeline/docs"
)

// @title HICP Data Pipeline API
// @version 1.0
// @description API for triggering and inspecting Eurostat HICP pipeline runs
// @host localhost:8080
// @BasePath /api/v1
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Init DB
	if err := store.InitDB(cfg.DBPath); err != nil {
		panic(err)
	}

	// Create router
	r := router.New()

	// Register API routes
	api.RegisterRoutes(r)

	// Start server
	r.Start(":8080")
}
