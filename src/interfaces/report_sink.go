package interfaces

import (
	"context"

	"vessel-tracker/src/models"
)

// -----------------------------------------------------------------------------
// IReportSink consumes parsed position reports from the stream. The connection
// manager awaits each call but isolates its failures from connection state.
// -----------------------------------------------------------------------------

type IReportSink interface {
	HandlePositionReport(ctx context.Context, report models.MPositionReport) error
}
