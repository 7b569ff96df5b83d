package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"vessel-tracker/src/logger"
	"vessel-tracker/src/models"
	"vessel-tracker/src/session"
)

// -----------------------------------------------------------------------------
// Fake store
// -----------------------------------------------------------------------------

type fakeStore struct {
	mu         sync.Mutex
	docs       []models.MStoredLogEntry
	getStatus  int
	postStatus int
	gets       int
	posts      []map[string]interface{}
	lastQuery  map[string]string

	server *httptest.Server
}

func newFakeStore(t *testing.T) *fakeStore {
	t.Helper()

	s := &fakeStore{getStatus: http.StatusOK, postStatus: http.StatusCreated}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"token":"store-token"}`)
	})
	mux.HandleFunc("/vessel-logs", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		switch r.Method {
		case http.MethodGet:
			s.gets++
			s.lastQuery = map[string]string{}
			for key, values := range r.URL.Query() {
				s.lastQuery[key] = values[0]
			}
			if s.getStatus != http.StatusOK {
				http.Error(w, "query failed", s.getStatus)
				return
			}
			json.NewEncoder(w).Encode(models.MStoredLogPage{Docs: s.docs})

		case http.MethodPost:
			var body map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, "bad body", http.StatusBadRequest)
				return
			}
			if s.postStatus < 200 || s.postStatus >= 300 {
				http.Error(w, "write failed", s.postStatus)
				return
			}
			s.posts = append(s.posts, body)
			w.WriteHeader(s.postStatus)
			fmt.Fprint(w, `{}`)

		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)
	return s
}

func (s *fakeStore) getCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

func (s *fakeStore) postCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

func (s *fakeStore) post(i int) map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posts[i]
}

func (s *fakeStore) query() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuery
}

// -----------------------------------------------------------------------------

type fakeArchive struct {
	mu      sync.Mutex
	saved   []models.MPositionReport
	saveErr error
}

func (a *fakeArchive) Initialize() error { return nil }

func (a *fakeArchive) CleanupOldData() error { return nil }

func (a *fakeArchive) Close() error { return nil }

func (a *fakeArchive) SavePositionReport(report models.MPositionReport) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.saveErr != nil {
		return a.saveErr
	}
	a.saved = append(a.saved, report)
	return nil
}

func (a *fakeArchive) RecentPositions(limit int) ([]models.MPositionReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saved, nil
}

func (a *fakeArchive) savedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.saved)
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func recorderConfig(host string) *models.MConfig {
	return &models.MConfig{
		Name: "test",
		Stream: models.MStreamConfig{
			MMSI: "261005000",
		},
		Store: models.MStoreConfig{
			Host:            host,
			Email:           "tracker@example.com",
			Password:        "secret",
			Collection:      "vessel-logs",
			CoordinateOrder: "lonlat",
		},
		Network: models.MNetworkConfig{RequestTimeout: 5},
	}
}

func newTestRecorder(t *testing.T, cfg *models.MConfig) (*Recorder, *session.Manager) {
	t.Helper()
	log := logger.NewLogger("test")
	sess := session.NewManager(cfg, log)
	return NewRecorder(cfg, sess, nil, log), sess
}

func testReport() models.MPositionReport {
	return models.MPositionReport{
		MMSI:               "261005000",
		Latitude:           57.70887,
		Longitude:          11.97456,
		SpeedOverGround:    3.4,
		NavigationalStatus: 0,
		RateOfTurn:         1.5,
		TrueHeading:        180,
		ObservedAt:         time.Now().UTC(),
	}
}

func primeSession(t *testing.T, sess *session.Manager) {
	t.Helper()
	if _, err := sess.EnsureSession(context.Background()); err != nil {
		t.Fatalf("prime session: %v", err)
	}
}

// -----------------------------------------------------------------------------
// Dedup rules
// -----------------------------------------------------------------------------

func TestRecencyRuleRejectsReport(t *testing.T) {
	store := newFakeStore(t)
	store.docs = []models.MStoredLogEntry{
		{MMSI: "261005000", Location: []float64{20.0, 60.0}, CreatedAt: time.Now().Add(-2 * time.Hour)},
	}

	r, sess := newTestRecorder(t, recorderConfig(store.server.URL))
	primeSession(t, sess)

	if err := r.HandlePositionReport(context.Background(), testReport()); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if store.getCount() != 1 {
		t.Fatalf("expected 1 history query, got %d", store.getCount())
	}
	if store.postCount() != 0 {
		t.Fatalf("recent entry must reject persistence, got %d posts", store.postCount())
	}
}

func TestLocationRuleRejectsIdenticalCoordinates(t *testing.T) {
	report := testReport()

	store := newFakeStore(t)
	// Older than the recency window but inside the query window, same location
	// in the configured lonlat order.
	store.docs = []models.MStoredLogEntry{
		{MMSI: "261005000", Location: []float64{report.Longitude, report.Latitude}, CreatedAt: time.Now().Add(-10 * time.Hour)},
	}

	r, sess := newTestRecorder(t, recorderConfig(store.server.URL))
	primeSession(t, sess)

	if err := r.HandlePositionReport(context.Background(), report); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.postCount() != 0 {
		t.Fatalf("identical location must reject persistence, got %d posts", store.postCount())
	}
}

func TestOldEntryWithDifferentCoordinatesIsAllowed(t *testing.T) {
	store := newFakeStore(t)
	store.docs = []models.MStoredLogEntry{
		{MMSI: "261005000", Location: []float64{10.0, 55.0}, CreatedAt: time.Now().Add(-10 * time.Hour)},
	}

	r, sess := newTestRecorder(t, recorderConfig(store.server.URL))
	primeSession(t, sess)

	if err := r.HandlePositionReport(context.Background(), testReport()); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.postCount() != 1 {
		t.Fatalf("expected persistence, got %d posts", store.postCount())
	}
}

func TestDedupFailsOpenOnQueryError(t *testing.T) {
	store := newFakeStore(t)
	store.getStatus = http.StatusInternalServerError

	r, sess := newTestRecorder(t, recorderConfig(store.server.URL))
	primeSession(t, sess)

	if err := r.HandlePositionReport(context.Background(), testReport()); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.postCount() != 1 {
		t.Fatalf("query failure must fail open, got %d posts", store.postCount())
	}
}

func TestDedupSkippedWithoutCachedCredential(t *testing.T) {
	store := newFakeStore(t)
	store.docs = []models.MStoredLogEntry{
		{MMSI: "261005000", Location: []float64{20.0, 60.0}, CreatedAt: time.Now().Add(-2 * time.Hour)},
	}

	// No primed session: the duplicate check is skipped entirely, and the
	// write path logs in on demand.
	r, _ := newTestRecorder(t, recorderConfig(store.server.URL))

	if err := r.HandlePositionReport(context.Background(), testReport()); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.getCount() != 0 {
		t.Fatalf("expected no history query without credential, got %d", store.getCount())
	}
	if store.postCount() != 1 {
		t.Fatalf("expected fail-open persistence, got %d posts", store.postCount())
	}
}

func TestHistoryQueryShape(t *testing.T) {
	store := newFakeStore(t)

	r, sess := newTestRecorder(t, recorderConfig(store.server.URL))
	primeSession(t, sess)

	if err := r.HandlePositionReport(context.Background(), testReport()); err != nil {
		t.Fatalf("handle: %v", err)
	}

	query := store.query()
	if query["limit"] != "50" {
		t.Errorf("limit = %q", query["limit"])
	}
	if query["sort"] != "-createdAt" {
		t.Errorf("sort = %q", query["sort"])
	}
	if query["where[mmsi][equals]"] != "261005000" {
		t.Errorf("mmsi filter = %q", query["where[mmsi][equals]"])
	}
	since, err := time.Parse(time.RFC3339, query["where[createdAt][gte]"])
	if err != nil {
		t.Fatalf("createdAt filter not RFC3339: %v", err)
	}
	age := time.Since(since)
	if age < 11*time.Hour+59*time.Minute || age > 12*time.Hour+time.Minute {
		t.Errorf("createdAt filter not ~12h ago: %v", age)
	}
}

// -----------------------------------------------------------------------------
// Persistence
// -----------------------------------------------------------------------------

func TestPersistedRecordFieldMapping(t *testing.T) {
	store := newFakeStore(t)
	report := testReport()

	r, sess := newTestRecorder(t, recorderConfig(store.server.URL))
	primeSession(t, sess)

	if err := r.HandlePositionReport(context.Background(), report); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.postCount() != 1 {
		t.Fatalf("expected 1 post, got %d", store.postCount())
	}

	body := store.post(0)
	if body["mmsi"] != "261005000" {
		t.Errorf("mmsi = %v", body["mmsi"])
	}
	location, ok := body["location"].([]interface{})
	if !ok || len(location) != 2 {
		t.Fatalf("location = %v", body["location"])
	}
	// lonlat order: longitude first.
	if location[0].(float64) != report.Longitude || location[1].(float64) != report.Latitude {
		t.Errorf("location order = %v", location)
	}
	if body["sog"].(float64) != report.SpeedOverGround {
		t.Errorf("sog = %v", body["sog"])
	}
	if body["trueHeading"].(float64) != report.TrueHeading {
		t.Errorf("trueHeading = %v", body["trueHeading"])
	}
}

func TestLatLonCoordinateOrder(t *testing.T) {
	store := newFakeStore(t)
	report := testReport()

	cfg := recorderConfig(store.server.URL)
	cfg.Store.CoordinateOrder = "latlon"
	r, sess := newTestRecorder(t, cfg)
	primeSession(t, sess)

	if err := r.HandlePositionReport(context.Background(), report); err != nil {
		t.Fatalf("handle: %v", err)
	}

	location := store.post(0)["location"].([]interface{})
	if location[0].(float64) != report.Latitude || location[1].(float64) != report.Longitude {
		t.Errorf("latlon order not honored: %v", location)
	}

	// The dedup comparison uses the same order: an entry stored as [lat, lon]
	// with identical coordinates must now reject.
	store.mu.Lock()
	store.docs = []models.MStoredLogEntry{
		{MMSI: "261005000", Location: []float64{report.Latitude, report.Longitude}, CreatedAt: time.Now().Add(-10 * time.Hour)},
	}
	store.mu.Unlock()

	if err := r.HandlePositionReport(context.Background(), report); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.postCount() != 1 {
		t.Fatalf("identical latlon location must reject, got %d posts", store.postCount())
	}
}

func TestWriteFailureIsFatalForReport(t *testing.T) {
	store := newFakeStore(t)
	store.postStatus = http.StatusInternalServerError

	r, sess := newTestRecorder(t, recorderConfig(store.server.URL))
	primeSession(t, sess)

	if err := r.HandlePositionReport(context.Background(), testReport()); err == nil {
		t.Fatalf("expected error for failed write")
	}
}

func TestMissingStoreHostDisablesPersistence(t *testing.T) {
	cfg := recorderConfig("")
	r, _ := newTestRecorder(t, cfg)

	if err := r.HandlePositionReport(context.Background(), testReport()); err != nil {
		t.Fatalf("missing host must not error: %v", err)
	}
}

func TestArchiveMirrorsPersistedReports(t *testing.T) {
	store := newFakeStore(t)
	archive := &fakeArchive{}

	cfg := recorderConfig(store.server.URL)
	log := logger.NewLogger("test")
	sess := session.NewManager(cfg, log)
	r := NewRecorder(cfg, sess, archive, log)
	primeSession(t, sess)

	if err := r.HandlePositionReport(context.Background(), testReport()); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if archive.savedCount() != 1 {
		t.Fatalf("expected 1 archived report, got %d", archive.savedCount())
	}

	// Rejected reports are not archived.
	store.mu.Lock()
	store.docs = []models.MStoredLogEntry{
		{MMSI: "261005000", Location: []float64{20.0, 60.0}, CreatedAt: time.Now().Add(-1 * time.Hour)},
	}
	store.mu.Unlock()

	if err := r.HandlePositionReport(context.Background(), testReport()); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if archive.savedCount() != 1 {
		t.Fatalf("rejected report was archived")
	}
}
