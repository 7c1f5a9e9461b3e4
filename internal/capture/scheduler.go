// Package capture drives screenshot collection: a periodic timer plus
// on-demand captures triggered by tracked button presses.
package capture

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/uxtrace/uxtrace/internal/buffer"
	"github.com/uxtrace/uxtrace/internal/logging"
	"github.com/uxtrace/uxtrace/internal/models"
	"github.com/uxtrace/uxtrace/internal/session"
)

const (
	autoLabel    = "auto-screenshot"
	grabTimeout  = 5 * time.Second
	labelPostfix = "-screenshot"
)

// Scheduler owns the periodic capture timer. A tracked interaction captures
// immediately and resets the timer's phase, so the next periodic shot is
// measured from the interaction rather than from the previous tick.
type Scheduler struct {
	grabber  Grabber
	identity *session.Identity
	events   *buffer.Buffer[models.ButtonEvent]
	shots    *buffer.Buffer[models.ScreenshotRecord]
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	timer   *time.Timer
	running bool
}

func NewScheduler(grabber Grabber, identity *session.Identity, events *buffer.Buffer[models.ButtonEvent], shots *buffer.Buffer[models.ScreenshotRecord], interval time.Duration) *Scheduler {
	return &Scheduler{
		grabber:  grabber,
		identity: identity,
		events:   events,
		shots:    shots,
		interval: interval,
		logger:   logging.WithComponent("capture"),
		now:      time.Now,
	}
}

// Start arms the periodic timer.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.timer = time.AfterFunc(s.interval, s.periodicTick)
}

// Stop cancels the periodic timer. Buffers stay re-readable.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.timer.Stop()
}

func (s *Scheduler) periodicTick() {
	s.captureNow(autoLabel)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.timer.Reset(s.interval)
	}
}

// TrackPress records one tracked interaction: an immediate capture labelled
// after the button, the button event itself, and a timer phase reset. A
// failed capture never blocks the button event; failures are logged and do
// not propagate to the interaction handler.
func (s *Scheduler) TrackPress(name string) {
	timestamp := s.now().UnixMilli()

	s.captureNow(name + labelPostfix)

	event := models.ButtonEvent{
		Name:      name,
		Timestamp: timestamp,
		SessionID: s.identity.ID(),
	}
	if err := s.events.Append(event); err != nil {
		s.logger.Error().Err(err).Str("button", name).Msg("failed to save button press")
	} else {
		s.logger.Debug().Str("button", name).Int64("timestamp", timestamp).Msg("button press recorded")
	}

	s.ResetTimer()
}

// ResetTimer re-arms the periodic timer for a full interval from now.
func (s *Scheduler) ResetTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.timer.Reset(s.interval)
	}
}

// captureNow performs one screen grab and appends the result to the
// screenshot buffer. Errors are logged at the call site and swallowed; a
// missed screenshot must not crash the capture loop.
func (s *Scheduler) captureNow(label string) {
	ctx, cancel := context.WithTimeout(context.Background(), grabTimeout)
	defer cancel()

	data, err := s.grabber.Grab(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("label", label).Msg("failed to capture screenshot")
		return
	}

	record := models.ScreenshotRecord{
		Name:       label,
		Timestamp:  s.now().UnixMilli(),
		SessionID:  s.identity.ID(),
		Screenshot: data,
	}
	if err := s.shots.Append(record); err != nil {
		s.logger.Error().Err(err).Str("label", label).Msg("failed to save screenshot")
		return
	}
	s.logger.Debug().Str("label", label).Msg("screenshot saved")
}
