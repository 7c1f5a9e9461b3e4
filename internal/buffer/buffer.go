// Package buffer implements the client-side append-only stores for captured
// records. Each buffer owns one JSON-array file; operations on the same
// buffer are serialized by a per-buffer mutex so a drain can never race an
// append.
package buffer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/uxtrace/uxtrace/internal/logging"
	"github.com/uxtrace/uxtrace/internal/models"
)

// Buffer is a durable append-only array of records of one kind.
type Buffer[T any] struct {
	path   string
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewEventBuffer returns the buffer backing button-press records.
func NewEventBuffer(cacheDir string) *Buffer[models.ButtonEvent] {
	return &Buffer[models.ButtonEvent]{
		path:   filepath.Join(cacheDir, "button_logs.json"),
		logger: logging.WithComponent("buffer").With().Str("kind", "logs").Logger(),
	}
}

// NewShotBuffer returns the buffer backing screenshot records.
func NewShotBuffer(cacheDir string) *Buffer[models.ScreenshotRecord] {
	return &Buffer[models.ScreenshotRecord]{
		path:   filepath.Join(cacheDir, "screenshots.json"),
		logger: logging.WithComponent("buffer").With().Str("kind", "screenshots").Logger(),
	}
}

// Path returns the buffer's backing file path.
func (b *Buffer[T]) Path() string { return b.path }

// Append reads the current array, appends record and writes the array back.
func (b *Buffer[T]) Append(record T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	records := b.load()
	records = append(records, record)
	if err := b.write(records); err != nil {
		return fmt.Errorf("append to %s: %w", b.path, err)
	}
	b.logger.Debug().Int("total", len(records)).Msg("record appended")
	return nil
}

// Snapshot returns the full current array without mutating storage. The
// result is the caller's to keep; later appends do not show up in it.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load()
}

// Discard removes the first n records, committing a previously taken
// snapshot. Records appended after the snapshot sit past index n-1 and
// survive, which is what makes snapshot-then-transmit-then-discard safe
// against concurrent appends.
func (b *Buffer[T]) Discard(n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	records := b.load()
	if n > len(records) {
		n = len(records)
	}
	remaining := append([]T(nil), records[n:]...)
	if err := b.write(remaining); err != nil {
		return fmt.Errorf("discard from %s: %w", b.path, err)
	}
	b.logger.Debug().Int("discarded", n).Int("remaining", len(remaining)).Msg("snapshot committed")
	return nil
}

// Clear replaces the persisted array with an empty array.
func (b *Buffer[T]) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.write(nil); err != nil {
		return fmt.Errorf("clear %s: %w", b.path, err)
	}
	return nil
}

// load reads the persisted array. An absent or unparsable file reads as
// empty, never as an error. Callers must hold b.mu.
func (b *Buffer[T]) load() []T {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return nil
	}
	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		b.logger.Warn().Err(err).Msg("unparsable buffer file, treating as empty")
		return nil
	}
	return records
}

// write persists the array, creating the containing directory if absent.
// Callers must hold b.mu.
func (b *Buffer[T]) write(records []T) error {
	if records == nil {
		records = []T{}
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(b.path, data, 0o644)
}
