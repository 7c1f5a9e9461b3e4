package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/uxtrace/uxtrace/internal/models"
	"github.com/uxtrace/uxtrace/internal/storage"
)

func setupTestServer(t *testing.T) (*Server, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "uxtrace-server-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	store, err := storage.Open("file", tmpDir)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to open test store: %v", err)
	}

	server := NewServer(store, "127.0.0.1:0")

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}
	return server, cleanup
}

func postBatch(t *testing.T, server *Server, batch models.Batch) *httptest.ResponseRecorder {
	t.Helper()

	jsonData, _ := json.Marshal(batch)
	req := httptest.NewRequest(http.MethodPost, "/log", bytes.NewReader(jsonData))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	return w
}

func TestHandlePing(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	var body map[string]bool
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if !body["ok"] {
		t.Error("Expected ok: true")
	}
}

func TestHandleHealthz(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Errorf("Expected body 'ok', got %s", w.Body.String())
	}
}

func TestIngestSuccess(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	w := postBatch(t, server, models.Batch{
		Logs:        []models.ButtonEvent{{Name: "play", Timestamp: 1000, SessionID: "A"}},
		Screenshots: []models.ScreenshotRecord{{Name: "play-screenshot", Timestamp: 1001, SessionID: "A", Screenshot: "data:image/jpeg;base64,abc"}},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp models.IngestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if !resp.OK {
		t.Errorf("Expected ok response, got %+v", resp)
	}
}

func TestIngestEmptyBatch(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	w := postBatch(t, server, models.Batch{})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for empty batch, got %d", w.Code)
	}
	var resp models.IngestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if !resp.OK || resp.Message != "Nothing to store." {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestIngestInvalidJSON(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/log", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestIngestNonArrayFieldsReadAsEmpty(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/log", strings.NewReader(`{"logs": 17, "screenshots": "nope"}`))
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp models.IngestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if !resp.OK || resp.Message != "Nothing to store." {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestIngestStoresValidFieldNextToNonArrayField(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	body := `{"logs":[{"name":"play","timestamp":1000,"sessionId":"A"}],"screenshots":{"bad":"shape"}}`
	req := httptest.NewRequest(http.MethodPost, "/log", strings.NewReader(body))
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/events-json", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	var events []models.FeedEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if len(events) != 1 || events[0].Type != "log" || events[0].Action != "play" {
		t.Errorf("Expected the array field to be stored, got %+v", events)
	}
}

func TestIngestMethodNotAllowed(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/log", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestIngestNormalizesScreenshots(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	// Legacy client: payload in the base64 alias, no data-URI prefix.
	body := `{"logs":[],"screenshots":[{"name":"auto-screenshot","timestamp":1000,"sessionId":"A","base64":"abc"}]}`
	req := httptest.NewRequest(http.MethodPost, "/log", strings.NewReader(body))
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/data/screenshots.json", nil)
	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	var shots []models.ScreenshotRecord
	if err := json.Unmarshal(w.Body.Bytes(), &shots); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if len(shots) != 1 {
		t.Fatalf("Expected 1 screenshot, got %d", len(shots))
	}
	if shots[0].Screenshot != models.DefaultImagePrefix+"abc" {
		t.Errorf("Expected normalized data URI, got %q", shots[0].Screenshot)
	}
	if shots[0].Base64 != "" {
		t.Errorf("Alias field leaked through normalization: %q", shots[0].Base64)
	}
}

func TestFeedOrderingDescending(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	w := postBatch(t, server, models.Batch{
		Logs:        []models.ButtonEvent{{Name: "play", Timestamp: 5, SessionID: "A"}},
		Screenshots: []models.ScreenshotRecord{{Name: "auto-screenshot", Timestamp: 10, SessionID: "A", Screenshot: "data:image/jpeg;base64,abc"}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Ingest failed with status %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/events-json", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	var events []models.FeedEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].Timestamp != 10 || events[1].Timestamp != 5 {
		t.Errorf("Expected order [10, 5], got [%d, %d]", events[0].Timestamp, events[1].Timestamp)
	}
	if events[0].Type != "screenshot" || events[1].Type != "log" {
		t.Errorf("Unexpected event types: %s, %s", events[0].Type, events[1].Type)
	}
	if events[1].Info != "button press" {
		t.Errorf("Unexpected log info: %q", events[1].Info)
	}
	if events[0].Info != "screenshot base64 length: 26" {
		t.Errorf("Unexpected screenshot info: %q", events[0].Info)
	}
}

func TestFeedTieBreakKeepsLogsFirst(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	w := postBatch(t, server, models.Batch{
		Logs:        []models.ButtonEvent{{Name: "play", Timestamp: 7, SessionID: "A"}},
		Screenshots: []models.ScreenshotRecord{{Name: "auto-screenshot", Timestamp: 7, SessionID: "A", Screenshot: "data:image/jpeg;base64,abc"}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Ingest failed with status %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/events-json", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	var events []models.FeedEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if len(events) != 2 || events[0].Type != "log" || events[1].Type != "screenshot" {
		t.Errorf("Expected stable logs-then-screenshots tie-break, got %+v", events)
	}
}

func TestScreenshotsEndpointEmptyStore(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/data/screenshots.json", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("Expected empty array, got %q", w.Body.String())
	}
}
