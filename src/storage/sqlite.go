package storage

import (
	"database/sql"
	"fmt"
	"time"

	"vessel-tracker/src/logger"
	"vessel-tracker/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	// The archive survives restarts, unlike a scratch table.
	query := `
		CREATE TABLE IF NOT EXISTS position_reports (
			mmsi TEXT,
			latitude REAL,
			longitude REAL,
			sog REAL,
			navigational_status INTEGER,
			rate_of_turn REAL,
			true_heading REAL,
			observed_at INTEGER,
			PRIMARY KEY (mmsi, observed_at)
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create position_reports: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SavePositionReport(report models.MPositionReport) error {
	_, err := d.DB.Exec(`
		INSERT INTO position_reports (mmsi, latitude, longitude, sog, navigational_status, rate_of_turn, true_heading, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, report.MMSI, report.Latitude, report.Longitude, report.SpeedOverGround,
		report.NavigationalStatus, report.RateOfTurn, report.TrueHeading, report.ObservedAt.Unix())
	return err
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) RecentPositions(limit int) ([]models.MPositionReport, error) {
	rows, err := d.DB.Query(`
		SELECT mmsi, latitude, longitude, sog, navigational_status, rate_of_turn, true_heading, observed_at
		FROM position_reports
		ORDER BY observed_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPositionRows(rows)
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()

	if _, err := d.DB.Exec("DELETE FROM position_reports WHERE observed_at < ?", cutoff); err != nil {
		d.Logger.Error("Cleanup position_reports error: %v", err)
		return err
	}

	d.Logger.Info("Cleanup completed (retention %d days)", retentionDays)
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------

// scanPositionRows is shared with the postgres backend; both store observed_at
// as unix seconds.
func scanPositionRows(rows *sql.Rows) ([]models.MPositionReport, error) {
	var reports []models.MPositionReport

	for rows.Next() {
		var report models.MPositionReport
		var observedAt int64
		if err := rows.Scan(
			&report.MMSI, &report.Latitude, &report.Longitude, &report.SpeedOverGround,
			&report.NavigationalStatus, &report.RateOfTurn, &report.TrueHeading, &observedAt,
		); err != nil {
			return nil, err
		}
		report.ObservedAt = time.Unix(observedAt, 0).UTC()
		reports = append(reports, report)
	}

	return reports, rows.Err()
}
