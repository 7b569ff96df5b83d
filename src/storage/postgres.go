package storage

import (
	"database/sql"
	"fmt"
	"time"

	"vessel-tracker/src/logger"
	"vessel-tracker/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	return &PostgresDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	query := `
		CREATE TABLE IF NOT EXISTS position_reports (
			mmsi TEXT,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			sog DOUBLE PRECISION,
			navigational_status INTEGER,
			rate_of_turn DOUBLE PRECISION,
			true_heading DOUBLE PRECISION,
			observed_at BIGINT,
			PRIMARY KEY (mmsi, observed_at)
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create position_reports: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SavePositionReport(report models.MPositionReport) error {
	_, err := d.DB.Exec(`
		INSERT INTO position_reports (mmsi, latitude, longitude, sog, navigational_status, rate_of_turn, true_heading, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, report.MMSI, report.Latitude, report.Longitude, report.SpeedOverGround,
		report.NavigationalStatus, report.RateOfTurn, report.TrueHeading, report.ObservedAt.Unix())
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) RecentPositions(limit int) ([]models.MPositionReport, error) {
	rows, err := d.DB.Query(`
		SELECT mmsi, latitude, longitude, sog, navigational_status, rate_of_turn, true_heading, observed_at
		FROM position_reports
		ORDER BY observed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPositionRows(rows)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()

	if _, err := d.DB.Exec("DELETE FROM position_reports WHERE observed_at < $1", cutoff); err != nil {
		d.Logger.Error("Cleanup position_reports error: %v", err)
		return err
	}

	d.Logger.Info("Cleanup completed (retention %d days)", retentionDays)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
