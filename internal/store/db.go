package store

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"go-hicp-pipeline/internal/model"
)

var db *sql.DB

// InitDB opens the pipeline database and creates the run-tracking tables.
func InitDB(dbPath string) error {
	var err error
	db, err = sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}

	runTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		spec TEXT,
		status TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);
	`
	errorTable := `
	CREATE TABLE IF NOT EXISTS run_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		error_message TEXT,
		created_at DATETIME
	);
	`

	if _, err := db.Exec(runTable); err != nil {
		return err
	}
	if _, err := db.Exec(errorTable); err != nil {
		return err
	}

	return nil
}

// SaveRun stores a new pipeline run.
func SaveRun(runID string, spec model.RunSpec) error {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO runs (id, spec, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, specJSON, "pending", now, now)
	return err
}

// UpdateRunStatus updates run status.
func UpdateRunStatus(runID string, status string) error {
	now := time.Now().UTC()
	_, err := db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return err
}

// SaveRunError records an error for a run.
func SaveRunError(runID string, err error) error {
	if err == nil {
		return nil
	}
	now := time.Now().UTC()
	_, e := db.Exec(`INSERT INTO run_errors (run_id, error_message, created_at) VALUES (?, ?, ?)`,
		runID, err.Error(), now)
	return e
}

// ListRuns returns all runs with basic info.
func ListRuns() ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT id, status, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []map[string]interface{}
	for rows.Next() {
		var id, status string
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&id, &status, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, map[string]interface{}{
			"id":        id,
			"status":    status,
			"createdAt": createdAt,
			"updatedAt": updatedAt,
		})
	}
	return runs, rows.Err()
}

// GetRun fetches full run spec and status.
func GetRun(runID string) (map[string]interface{}, error) {
	var specJSON string
	var status string
	var createdAt, updatedAt time.Time

	err := db.QueryRow(`SELECT spec, status, created_at, updated_at FROM runs WHERE id = ?`, runID).
		Scan(&specJSON, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	var spec model.RunSpec
	if err := json.Unmarshal([]byte(specJSON), &spec); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"id":        runID,
		"spec":      spec,
		"status":    status,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
	}, nil
}

// GetRunErrors lists the errors recorded for one run.
func GetRunErrors(runID string) ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT error_message, created_at FROM run_errors WHERE run_id = ? ORDER BY created_at`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errs []map[string]interface{}
	for rows.Next() {
		var msg string
		var createdAt time.Time
		if err := rows.Scan(&msg, &createdAt); err != nil {
			return nil, err
		}
		errs = append(errs, map[string]interface{}{
			"message":   msg,
			"createdAt": createdAt,
		})
	}
	return errs, rows.Err()
}

// EnsureFactTable creates the HICP fact table and its natural-key index if
// they do not exist yet.
func EnsureFactTable() error {
	ddl := `
	CREATE TABLE IF NOT EXISTS fact_hicp (
		time DATE NOT NULL,
		geo TEXT NOT NULL,
		coicop TEXT NOT NULL,
		unit TEXT NOT NULL,
		value REAL,
		processed_at_utc TEXT NOT NULL,
		raw_blob TEXT NOT NULL
	);
	`
	index := `
	CREATE UNIQUE INDEX IF NOT EXISTS ux_fact_hicp_key
		ON fact_hicp (time, geo, coicop, unit);
	`

	if _, err := db.Exec(ddl); err != nil {
		return err
	}
	if _, err := db.Exec(index); err != nil {
		return err
	}
	return nil
}

// ReplaceSeries deletes every fact row of one series and inserts the given
// rows, all inside a single transaction. It returns the inserted count.
func ReplaceSeries(series model.SeriesKey, rows []model.Observation) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`DELETE FROM fact_hicp WHERE geo = ? AND coicop = ? AND unit = ?`,
		series.Geo, series.Coicop, series.Unit)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`INSERT INTO fact_hicp
		(time, geo, coicop, unit, value, processed_at_utc, raw_blob)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, row := range rows {
		var value interface{}
		if row.Value != nil {
			value = *row.Value
		}
		var day string
		if row.Time != nil {
			day = row.Time.Format("2006-01-02")
		}
		if _, err := stmt.Exec(day, row.Geo, row.Coicop, row.Unit, value, row.ProcessedAtUTC, row.RawBlob); err != nil {
			return 0, err
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// CountSeriesRows reports how many fact rows one series currently has.
func CountSeriesRows(series model.SeriesKey) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM fact_hicp WHERE geo = ? AND coicop = ? AND unit = ?`,
		series.Geo, series.Coicop, series.Unit).Scan(&n)
	return n, err
}
