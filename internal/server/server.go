// Package server implements the collector's HTTP API: batch ingestion, the
// merged event feed and the raw screenshot store.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/uxtrace/uxtrace/internal/logging"
	"github.com/uxtrace/uxtrace/internal/metrics"
	"github.com/uxtrace/uxtrace/internal/models"
	"github.com/uxtrace/uxtrace/internal/storage"
)

type Server struct {
	store   storage.Store
	address string
	server  *http.Server
	logger  zerolog.Logger
}

func NewServer(store storage.Store, address string) *Server {
	return &Server{
		store:   store,
		address: address,
		logger:  logging.WithComponent("server"),
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleIngest accepts one sync cycle's batch and appends it to the stores.
// Appends are pure concatenation, so a batch retransmitted after a lost
// acknowledgment lands as duplicate rows rather than corrupting anything.
func (s *Server) handleIngest(w http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	// Field-level tolerance: a syntactically valid body whose logs or
	// screenshots field is not an array reads as empty, never as an error.
	var raw struct {
		Logs        json.RawMessage `json:"logs"`
		Screenshots json.RawMessage `json:"screenshots"`
	}
	if err := json.NewDecoder(request.Body).Decode(&raw); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	var batch models.Batch
	if len(raw.Logs) > 0 {
		_ = json.Unmarshal(raw.Logs, &batch.Logs)
	}
	if len(raw.Screenshots) > 0 {
		_ = json.Unmarshal(raw.Screenshots, &batch.Screenshots)
	}
	if request.ContentLength > 0 {
		metrics.IngestBytes.Add(float64(request.ContentLength))
	}

	if batch.Empty() {
		writeJSON(w, http.StatusOK, models.IngestResponse{OK: true, Message: "Nothing to store."})
		return
	}

	for i := range batch.Screenshots {
		batch.Screenshots[i].Normalize()
	}

	if len(batch.Logs) > 0 {
		if err := s.store.AppendLogs(batch.Logs); err != nil {
			s.logger.Error().Err(err).Msg("failed to store logs")
			metrics.IngestFailures.Inc()
			writeJSON(w, http.StatusInternalServerError, models.IngestResponse{OK: false, Message: "Failed to save data."})
			return
		}
		metrics.EventsStored.WithLabelValues("log").Add(float64(len(batch.Logs)))
	}
	if len(batch.Screenshots) > 0 {
		if err := s.store.AppendScreenshots(batch.Screenshots); err != nil {
			s.logger.Error().Err(err).Msg("failed to store screenshots")
			metrics.IngestFailures.Inc()
			writeJSON(w, http.StatusInternalServerError, models.IngestResponse{OK: false, Message: "Failed to save data."})
			return
		}
		metrics.EventsStored.WithLabelValues("screenshot").Add(float64(len(batch.Screenshots)))
	}
	metrics.BatchesIngested.Inc()

	s.logger.Info().
		Int("logs", len(batch.Logs)).
		Int("screenshots", len(batch.Screenshots)).
		Str("size", humanize.Bytes(uint64(max(request.ContentLength, 0)))).
		Msg("batch stored")
	writeJSON(w, http.StatusOK, models.IngestResponse{OK: true, Message: "Data stored."})
}

// handleFeed serves the merged read model: every stored record projected to
// a FeedEvent, newest first. Ties keep logs-before-screenshots input order.
func (s *Server) handleFeed(w http.ResponseWriter, _ *http.Request) {
	metrics.FeedRequests.Inc()

	logs, err := s.store.Logs()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read logs")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to build events feed"})
		return
	}
	shots, err := s.store.Screenshots()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read screenshots")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to build events feed"})
		return
	}

	events := make([]models.FeedEvent, 0, len(logs)+len(shots))
	for _, l := range logs {
		events = append(events, models.FeedEvent{
			Type:      "log",
			UUID:      l.SessionID,
			Action:    l.Name,
			Timestamp: l.Timestamp,
			Info:      "button press",
		})
	}
	for _, shot := range shots {
		events = append(events, models.FeedEvent{
			Type:      "screenshot",
			UUID:      shot.SessionID,
			Action:    shot.Name,
			Timestamp: shot.Timestamp,
			Info:      fmt.Sprintf("screenshot base64 length: %d", len(shot.Screenshot)),
		})
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp > events[j].Timestamp
	})

	writeJSON(w, http.StatusOK, events)
}

// handleScreenshots serves the full screenshot store. Payloads are
// normalized at ingestion, so each entry is directly renderable.
func (s *Server) handleScreenshots(w http.ResponseWriter, _ *http.Request) {
	shots, err := s.store.Screenshots()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read screenshots")
		writeJSON(w, http.StatusInternalServerError, models.IngestResponse{OK: false, Message: "Failed to read screenshots."})
		return
	}
	if shots == nil {
		shots = []models.ScreenshotRecord{}
	}
	writeJSON(w, http.StatusOK, shots)
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/ping", s.handlePing)
	mux.HandleFunc("/log", s.handleIngest)
	mux.HandleFunc("/events-json", s.handleFeed)
	mux.HandleFunc("/data/screenshots.json", s.handleScreenshots)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

func (s *Server) Start() error {
	mux := s.setupRoutes()
	s.server = &http.Server{
		Addr:         s.address,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	shutdownChannel := make(chan os.Signal, 1)
	signal.Notify(shutdownChannel, syscall.SIGINT, syscall.SIGTERM)

	errChannel := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", s.address).Msg("collector listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChannel <- err
		}
	}()

	select {
	case err := <-errChannel:
		return fmt.Errorf("server failed to start: %w", err)
	case <-shutdownChannel:
	}
	s.logger.Info().Msg("shutting down server")

	shutdownContext, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownContext); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	s.logger.Info().Msg("server exited")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
