package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults select the Luxembourg all-items series", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "prc_hicp_midx", cfg.Dataset)
		assert.Equal(t, "LU", cfg.Geo)
		assert.Equal(t, "CP00", cfg.Coicop)
		assert.Equal(t, "I15", cfg.Unit)
		assert.Equal(t, EurostatBase, cfg.BaseURL)
		assert.Equal(t, "eurostat", cfg.Bucket)
		assert.Equal(t, "pipeline.db", cfg.DBPath)
	})

	t.Run("environment overrides every knob", func(t *testing.T) {
		t.Setenv("EUROSTAT_HICP_DATASET", "prc_hicp_manr")
		t.Setenv("HICP_GEO", "DE")
		t.Setenv("HICP_COICOP", "CP01")
		t.Setenv("HICP_UNIT", "")
		t.Setenv("EUROSTAT_TIMEOUT_SECONDS", "5")
		t.Setenv("BLOB_BUCKET", "stats")
		t.Setenv("PIPELINE_DB", "/tmp/other.db")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "prc_hicp_manr", cfg.Dataset)
		assert.Equal(t, "DE", cfg.Geo)
		assert.Equal(t, "CP01", cfg.Coicop)
		// empty env values fall back to the default
		assert.Equal(t, "I15", cfg.Unit)
		assert.Equal(t, "5s", cfg.HTTPTimeout.String())
		assert.Equal(t, "stats", cfg.Bucket)
		assert.Equal(t, "/tmp/other.db", cfg.DBPath)
	})
}

func TestPrefixes(t *testing.T) {
	cfg := &Config{Dataset: "prc_hicp_midx", Geo: "LU", Coicop: "CP00"}

	assert.Equal(t, "raw/prc_hicp_midx/geo=LU/coicop=CP00/", cfg.RawPrefix())
	assert.Equal(t, "processed/prc_hicp_midx/geo=LU/coicop=CP00/", cfg.ProcessedPrefix())
	assert.Equal(t, "metadata/quality/prc_hicp_midx/geo=LU/coicop=CP00/", cfg.QualityPrefix())
	assert.Equal(t, "metadata/quality/prc_hicp_midx/geo=LU/coicop=CP00/LATEST.json", cfg.LatestPointerKey())

	t.Run("explicit prefixes win", func(t *testing.T) {
		override := &Config{rawPrefix: "custom/raw/", processedPrefix: "custom/processed/", qualityPrefix: "custom/quality/"}
		assert.Equal(t, "custom/raw/", override.RawPrefix())
		assert.Equal(t, "custom/processed/", override.ProcessedPrefix())
		assert.Equal(t, "custom/quality/", override.QualityPrefix())
		assert.Equal(t, "custom/quality/LATEST.json", override.LatestPointerKey())
	})
}
