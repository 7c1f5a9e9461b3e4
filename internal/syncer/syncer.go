// Package syncer uploads buffered telemetry to the collector on a fixed
// period. Delivery is at-least-once: buffers are only trimmed after the
// collector acknowledges a batch, and the collector's pure-append ingestion
// makes retransmits safe.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/uxtrace/uxtrace/internal/buffer"
	"github.com/uxtrace/uxtrace/internal/logging"
	"github.com/uxtrace/uxtrace/internal/models"
)

const requestTimeout = 20 * time.Second

type Agent struct {
	events       *buffer.Buffer[models.ButtonEvent]
	shots        *buffer.Buffer[models.ScreenshotRecord]
	collectorURL string
	interval     time.Duration
	client       *http.Client
	logger       zerolog.Logger
}

func NewAgent(events *buffer.Buffer[models.ButtonEvent], shots *buffer.Buffer[models.ScreenshotRecord], collectorURL string, interval time.Duration) *Agent {
	return &Agent{
		events:       events,
		shots:        shots,
		collectorURL: collectorURL,
		interval:     interval,
		client:       &http.Client{Timeout: requestTimeout},
		logger:       logging.WithComponent("sync"),
	}
}

// Run drives sync cycles until ctx is cancelled. A failed cycle is logged
// and never stops the loop; the next tick resends the same data.
func (a *Agent) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info().Dur("interval", a.interval).Msg("starting background sync loop")
	for {
		select {
		case <-ticker.C:
			if err := a.SyncOnce(ctx); err != nil {
				a.logger.Warn().Err(err).Msg("sync cycle failed, will retry next cycle")
			}
		case <-ctx.Done():
			return
		}
	}
}

// SyncOnce performs one drain-transmit-commit cycle. Buffers are snapshotted
// non-destructively first; only after the collector accepts the batch are the
// snapshotted records discarded. Appends racing the cycle land behind the
// snapshot and survive the commit.
func (a *Agent) SyncOnce(ctx context.Context) error {
	batch := models.Batch{
		Logs:        a.events.Snapshot(),
		Screenshots: a.shots.Snapshot(),
	}
	if batch.Empty() {
		a.logger.Debug().Msg("nothing to sync")
		return nil
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, a.collectorURL+"/log", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := a.client.Do(request)
	if err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("collector responded with status %d", response.StatusCode)
	}

	// Acknowledged: commit the snapshots. A discard failure leaves the
	// records in place, which at worst means a duplicate delivery later.
	if err := a.events.Discard(len(batch.Logs)); err != nil {
		return fmt.Errorf("clear event buffer: %w", err)
	}
	if err := a.shots.Discard(len(batch.Screenshots)); err != nil {
		return fmt.Errorf("clear screenshot buffer: %w", err)
	}

	a.logger.Info().
		Int("logs", len(batch.Logs)).
		Int("screenshots", len(batch.Screenshots)).
		Str("size", humanize.Bytes(uint64(len(payload)))).
		Msg("batch synced")
	return nil
}
