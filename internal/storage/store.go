// Package storage provides the collector's durable stores. Every backend is
// append-only: nothing written depends on previously stored state, so
// concurrent ingestion requests interleave safely.
package storage

import (
	"fmt"
	"os"

	"github.com/uxtrace/uxtrace/internal/models"
)

// Store is the collector's persistence contract.
type Store interface {
	AppendLogs(logs []models.ButtonEvent) error
	AppendScreenshots(shots []models.ScreenshotRecord) error
	Logs() ([]models.ButtonEvent, error)
	Screenshots() ([]models.ScreenshotRecord, error)
	Close() error
}

// Open returns the store selected by backend, rooted at dataDir.
func Open(backend, dataDir string) (Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	switch backend {
	case "file":
		return NewFileStore(dataDir)
	case "sqlite":
		return NewSQLiteStore(dataDir)
	case "bolt":
		return NewBoltStore(dataDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
