package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/uxtrace/uxtrace/internal/buffer"
	"github.com/uxtrace/uxtrace/internal/capture"
	"github.com/uxtrace/uxtrace/internal/logging"
	"github.com/uxtrace/uxtrace/internal/session"
	"github.com/uxtrace/uxtrace/internal/syncer"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the capture agent",
	Long: `Run the capture agent: takes a screenshot every capture interval,
records tracked button presses posted by the embedding UI to the local
control endpoint (POST /press {"name": ...}), and uploads buffered telemetry
to the collector every sync interval.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := logging.WithComponent("agent")

		identity := session.NewIdentity(filepath.Join(cfg.Agent.CacheDir, "session.json"))
		events := buffer.NewEventBuffer(cfg.Agent.CacheDir)
		shots := buffer.NewShotBuffer(cfg.Agent.CacheDir)

		grabber, err := capture.NewExecGrabber(cfg.Agent.CaptureCommand)
		if err != nil {
			return err
		}

		scheduler := capture.NewScheduler(grabber, identity, events, shots, cfg.Agent.CaptureInterval)
		scheduler.Start()
		defer scheduler.Stop()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		agent := syncer.NewAgent(events, shots, cfg.Agent.CollectorURL, cfg.Agent.SyncInterval)
		go agent.Run(ctx)

		// Local control endpoint: the embedding UI reports tracked presses
		// here; everything else about the UI stays out of this process.
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("ok"))
		})
		mux.HandleFunc("/press", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "POST only", http.StatusMethodNotAllowed)
				return
			}
			var press struct {
				Name string `json:"name"`
			}
			if err := json.NewDecoder(r.Body).Decode(&press); err != nil || press.Name == "" {
				http.Error(w, "Invalid JSON format", http.StatusBadRequest)
				return
			}
			scheduler.TrackPress(press.Name)
			w.WriteHeader(http.StatusNoContent)
		})

		controlServer := &http.Server{
			Addr:         cfg.Agent.Listen,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		}

		errChannel := make(chan error, 1)
		go func() {
			logger.Info().
				Str("listen", cfg.Agent.Listen).
				Str("collector", cfg.Agent.CollectorURL).
				Str("session_id", identity.ID()).
				Msg("capture agent running")
			if err := controlServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errChannel <- err
			}
		}()

		shutdownChannel := make(chan os.Signal, 1)
		signal.Notify(shutdownChannel, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errChannel:
			return fmt.Errorf("control endpoint failed: %w", err)
		case <-shutdownChannel:
		}
		logger.Info().Msg("shutting down agent")

		shutdownContext, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = controlServer.Shutdown(shutdownContext)
		return nil
	},
}
