package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EurostatBase is the dissemination API root for statistics data.
const EurostatBase = "https://ec.europa.eu/eurostat/api/dissemination/statistics/1.0/data"

// Config is the explicit configuration every stage receives. Nothing reads
// the environment past Load.
type Config struct {
	// Series selection
	Dataset string // e.g. prc_hicp_midx
	Geo     string // e.g. LU
	Coicop  string // e.g. CP00
	Unit    string // e.g. I15; empty disables the unit filter

	// Remote API
	BaseURL     string
	HTTPTimeout time.Duration

	// Object storage
	Bucket          string
	Region          string
	EndpointURL     string // non-empty for MinIO and similar
	AccessKeyID     string
	SecretAccessKey string

	// Relational store
	DBPath string

	// Prefix overrides; empty means derive from the series selection
	rawPrefix       string
	processedPrefix string
	qualityPrefix   string
}

// Load reads .env (if present) and the environment into a Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Dataset:         getEnvOrDefault("EUROSTAT_HICP_DATASET", "prc_hicp_midx"),
		Geo:             getEnvOrDefault("HICP_GEO", "LU"),
		Coicop:          getEnvOrDefault("HICP_COICOP", "CP00"),
		Unit:            getEnvOrDefault("HICP_UNIT", "I15"),
		BaseURL:         getEnvOrDefault("EUROSTAT_BASE_URL", EurostatBase),
		HTTPTimeout:     time.Duration(getEnvAsInt("EUROSTAT_TIMEOUT_SECONDS", 60)) * time.Second,
		Bucket:          getEnvOrDefault("BLOB_BUCKET", "eurostat"),
		Region:          getEnvOrDefault("AWS_REGION", "eu-west-1"),
		EndpointURL:     os.Getenv("BLOB_ENDPOINT_URL"),
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		DBPath:          getEnvOrDefault("PIPELINE_DB", "pipeline.db"),
		rawPrefix:       os.Getenv("HICP_RAW_PREFIX"),
		processedPrefix: os.Getenv("HICP_PROCESSED_PREFIX"),
		qualityPrefix:   os.Getenv("HICP_QUALITY_PREFIX"),
	}

	if cfg.Dataset == "" || cfg.Geo == "" || cfg.Coicop == "" {
		return nil, fmt.Errorf("dataset, geo and coicop must not be empty")
	}

	return cfg, nil
}

// RawPrefix is where raw snapshots for the configured series live.
func (c *Config) RawPrefix() string {
	if c.rawPrefix != "" {
		return c.rawPrefix
	}
	return fmt.Sprintf("raw/%s/geo=%s/coicop=%s/", c.Dataset, c.Geo, c.Coicop)
}

// ProcessedPrefix is where processed parquet tables live.
func (c *Config) ProcessedPrefix() string {
	if c.processedPrefix != "" {
		return c.processedPrefix
	}
	return fmt.Sprintf("processed/%s/geo=%s/coicop=%s/", c.Dataset, c.Geo, c.Coicop)
}

// QualityPrefix is where quality reports and the LATEST pointer live.
func (c *Config) QualityPrefix() string {
	if c.qualityPrefix != "" {
		return c.qualityPrefix
	}
	return fmt.Sprintf("metadata/quality/%s/geo=%s/coicop=%s/", c.Dataset, c.Geo, c.Coicop)
}

// LatestPointerKey is the key of the LATEST.json indirection record.
func (c *Config) LatestPointerKey() string {
	return c.QualityPrefix() + "LATEST.json"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
