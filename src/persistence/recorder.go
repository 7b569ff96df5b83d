package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"vessel-tracker/src/helpers"
	"vessel-tracker/src/interfaces"
	"vessel-tracker/src/logger"
	"vessel-tracker/src/models"
	"vessel-tracker/src/session"
)

// Dedup windows: entries younger than recencyWindow reject outright; identical
// locations reject anywhere inside the query window.
const (
	recencyWindow = 6 * time.Hour
	queryWindow   = 12 * time.Hour
	queryLimit    = 50
)

// -----------------------------------------------------------------------------
// Recorder decides per report whether persistence is warranted and performs
// the authenticated write. Uncertainty fails open: when the duplicate check
// cannot run or errors out, the report is persisted rather than dropped.
// -----------------------------------------------------------------------------

type Recorder struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	Session *session.Manager
	Archive interfaces.IDatabase // optional local mirror

	now func() time.Time
}

// -----------------------------------------------------------------------------

func NewRecorder(cfg *models.MConfig, sess *session.Manager, archive interfaces.IDatabase, log *logger.Logger) *Recorder {
	return &Recorder{
		Config:  cfg,
		Logger:  log,
		Session: sess,
		Archive: archive,
		now:     time.Now,
	}
}

// -----------------------------------------------------------------------------

// HandlePositionReport is the persistence path for one inbound report.
func (r *Recorder) HandlePositionReport(ctx context.Context, report models.MPositionReport) error {
	if r.Config.Store.Host == "" {
		r.Logger.WarningOnce("store-host", "Store host not configured; position reports will not be persisted")
		return nil
	}

	if !r.shouldPersist(ctx, report) {
		return nil
	}

	if err := r.persist(ctx, report); err != nil {
		return err
	}

	r.archive(report)
	return nil
}

// -----------------------------------------------------------------------------

// shouldPersist applies the two-rule dedup heuristic against recent history.
func (r *Recorder) shouldPersist(ctx context.Context, report models.MPositionReport) bool {
	if !r.Session.HasToken() {
		r.Logger.Info("No cached credential; skipping duplicate check")
		return true
	}

	entries, err := r.recentEntries(ctx)
	if err != nil {
		r.Logger.Warning("Duplicate check failed, persisting anyway: %v", err)
		return true
	}

	now := r.now()
	location := r.locationPair(report)

	for _, entry := range entries {
		if now.Sub(entry.CreatedAt) < recencyWindow {
			r.Logger.Info("Skipping report: entry from %v is within the recency window", entry.CreatedAt)
			return false
		}
		if len(entry.Location) == 2 && entry.Location[0] == location[0] && entry.Location[1] == location[1] {
			r.Logger.Info("Skipping report: identical location already stored at %v", entry.CreatedAt)
			return false
		}
	}

	return true
}

// -----------------------------------------------------------------------------

// recentEntries queries up to 50 entries for the tracked vessel created in the
// last 12 hours, newest first.
func (r *Recorder) recentEntries(ctx context.Context) ([]models.MStoredLogEntry, error) {
	since := r.now().Add(-queryWindow).UTC().Format(time.RFC3339)

	query := url.Values{}
	query.Set("limit", fmt.Sprintf("%d", queryLimit))
	query.Set("sort", "-createdAt")
	query.Set("where[mmsi][equals]", r.Config.Stream.MMSI)
	query.Set("where[createdAt][gte]", since)

	endpoint := fmt.Sprintf("%s/%s?%s", r.Config.Store.Host, r.Config.Store.Collection, query.Encode())

	resp, err := r.Session.PerformAuthorizedRequest(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &helpers.StorageError{TrackerError: helpers.TrackerError{
			Message: fmt.Sprintf("history query returned status %d", resp.StatusCode),
		}}
	}

	var page models.MStoredLogPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, &helpers.StorageError{TrackerError: helpers.TrackerError{Message: "malformed history response", Cause: err}}
	}

	return page.Docs, nil
}

// -----------------------------------------------------------------------------

// persist writes one report to the store. A non-2xx response is fatal for this
// report only.
func (r *Recorder) persist(ctx context.Context, report models.MPositionReport) error {
	location := r.locationPair(report)

	payload, err := json.Marshal(map[string]interface{}{
		"mmsi":               report.MMSI,
		"location":           []float64{location[0], location[1]},
		"sog":                report.SpeedOverGround,
		"navigationalStatus": report.NavigationalStatus,
		"rateOfTurn":         report.RateOfTurn,
		"trueHeading":        report.TrueHeading,
	})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/%s", r.Config.Store.Host, r.Config.Store.Collection)

	resp, err := r.Session.PerformAuthorizedRequest(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &helpers.StorageError{TrackerError: helpers.TrackerError{
			Message: fmt.Sprintf("store write returned status %d: %s", resp.StatusCode, string(body)),
		}}
	}

	r.Logger.Info("Persisted position report for MMSI %s at %.5f,%.5f", report.MMSI, report.Latitude, report.Longitude)
	return nil
}

// -----------------------------------------------------------------------------

// locationPair applies the configured coordinate order contract. The same
// order is used for the outbound write and the dedup comparison, so the two
// sides can never disagree.
func (r *Recorder) locationPair(report models.MPositionReport) [2]float64 {
	if r.Config.Store.CoordinateOrder == "latlon" {
		return [2]float64{report.Latitude, report.Longitude}
	}
	return [2]float64{report.Longitude, report.Latitude}
}

// -----------------------------------------------------------------------------

// archive mirrors the report into the local database. Failures are logged and
// never affect the persistence verdict.
func (r *Recorder) archive(report models.MPositionReport) {
	if r.Archive == nil {
		return
	}
	if err := r.Archive.SavePositionReport(report); err != nil {
		r.Logger.Warning("Failed to archive report locally: %v", err)
	}
}
