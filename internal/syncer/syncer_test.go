package syncer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uxtrace/uxtrace/internal/buffer"
	"github.com/uxtrace/uxtrace/internal/models"
)

func setupBuffers(t *testing.T) (*buffer.Buffer[models.ButtonEvent], *buffer.Buffer[models.ScreenshotRecord]) {
	t.Helper()
	dir := t.TempDir()
	return buffer.NewEventBuffer(dir), buffer.NewShotBuffer(dir)
}

func TestSyncOnceClearsBuffersOnAcceptance(t *testing.T) {
	events, shots := setupBuffers(t)
	require.NoError(t, events.Append(models.ButtonEvent{Name: "play", Timestamp: 1000, SessionID: "A"}))
	require.NoError(t, shots.Append(models.ScreenshotRecord{Name: "play-screenshot", Timestamp: 1001, SessionID: "A", Screenshot: "abc"}))

	var received models.Batch
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/log", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(models.IngestResponse{OK: true, Message: "Data stored."})
	}))
	defer server.Close()

	agent := NewAgent(events, shots, server.URL, time.Second)
	require.NoError(t, agent.SyncOnce(context.Background()))

	assert.Len(t, received.Logs, 1)
	assert.Len(t, received.Screenshots, 1)
	assert.Empty(t, events.Snapshot())
	assert.Empty(t, shots.Snapshot())
}

func TestSyncOnceSkipsNetworkWhenEmpty(t *testing.T) {
	events, shots := setupBuffers(t)

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	agent := NewAgent(events, shots, server.URL, time.Second)
	require.NoError(t, agent.SyncOnce(context.Background()))
	assert.Zero(t, requests.Load())
}

func TestFailedSyncLeavesBuffersUntouched(t *testing.T) {
	events, shots := setupBuffers(t)
	event := models.ButtonEvent{Name: "play", Timestamp: 1000, SessionID: "A"}
	record := models.ScreenshotRecord{Name: "play-screenshot", Timestamp: 1001, SessionID: "A", Screenshot: "abc"}
	require.NoError(t, events.Append(event))
	require.NoError(t, shots.Append(record))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	agent := NewAgent(events, shots, server.URL, time.Second)
	require.Error(t, agent.SyncOnce(context.Background()))

	gotEvents := events.Snapshot()
	gotShots := shots.Snapshot()
	require.Len(t, gotEvents, 1)
	require.Len(t, gotShots, 1)
	assert.Equal(t, event, gotEvents[0])
	assert.Equal(t, record, gotShots[0])
}

func TestUnreachableCollectorLeavesBuffersUntouched(t *testing.T) {
	events, shots := setupBuffers(t)
	require.NoError(t, events.Append(models.ButtonEvent{Name: "play", Timestamp: 1000, SessionID: "A"}))

	// A server that is already closed gives a connection error.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	agent := NewAgent(events, shots, server.URL, time.Second)
	require.Error(t, agent.SyncOnce(context.Background()))
	assert.Len(t, events.Snapshot(), 1)
}

func TestAppendDuringFlightSurvivesCommit(t *testing.T) {
	events, shots := setupBuffers(t)
	require.NoError(t, events.Append(models.ButtonEvent{Name: "early", Timestamp: 1, SessionID: "A"}))

	late := models.ButtonEvent{Name: "late", Timestamp: 2, SessionID: "A"}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// An interaction lands while the batch is on the wire.
		require.NoError(t, events.Append(late))
		json.NewEncoder(w).Encode(models.IngestResponse{OK: true})
	}))
	defer server.Close()

	agent := NewAgent(events, shots, server.URL, time.Second)
	require.NoError(t, agent.SyncOnce(context.Background()))

	remaining := events.Snapshot()
	require.Len(t, remaining, 1)
	assert.Equal(t, late, remaining[0])
}

func TestRunStopsOnContextCancel(t *testing.T) {
	events, shots := setupBuffers(t)
	agent := NewAgent(events, shots, "http://127.0.0.1:0", 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		agent.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
