package interfaces

import "vessel-tracker/src/models"

// -----------------------------------------------------------------------------
// IDatabase defines the contract for the local position archive.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SavePositionReport mirrors one successfully persisted report locally.
	SavePositionReport(report models.MPositionReport) error

	// -----------------------------------------------------------------------------

	// RecentPositions returns up to limit archived reports, newest first.
	RecentPositions(limit int) ([]models.MPositionReport, error)

	// -----------------------------------------------------------------------------

	// CleanupOldData removes data older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
