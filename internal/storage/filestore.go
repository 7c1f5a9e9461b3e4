package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/uxtrace/uxtrace/internal/models"
)

const (
	logsFile  = "logs.json"
	shotsFile = "screenshots.json"
)

// FileStore keeps each record kind in one pretty-printed JSON array file
// under dataDir. This is the default backend.
type FileStore struct {
	dataDir string
	logsMu  sync.Mutex
	shotsMu sync.Mutex
}

func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dataDir: dataDir}, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) AppendLogs(logs []models.ButtonEvent) error {
	s.logsMu.Lock()
	defer s.logsMu.Unlock()

	var current []models.ButtonEvent
	safeReadArray(filepath.Join(s.dataDir, logsFile), &current)
	return writeArray(filepath.Join(s.dataDir, logsFile), append(current, logs...))
}

func (s *FileStore) AppendScreenshots(shots []models.ScreenshotRecord) error {
	s.shotsMu.Lock()
	defer s.shotsMu.Unlock()

	var current []models.ScreenshotRecord
	safeReadArray(filepath.Join(s.dataDir, shotsFile), &current)
	return writeArray(filepath.Join(s.dataDir, shotsFile), append(current, shots...))
}

func (s *FileStore) Logs() ([]models.ButtonEvent, error) {
	s.logsMu.Lock()
	defer s.logsMu.Unlock()

	var logs []models.ButtonEvent
	safeReadArray(filepath.Join(s.dataDir, logsFile), &logs)
	return logs, nil
}

func (s *FileStore) Screenshots() ([]models.ScreenshotRecord, error) {
	s.shotsMu.Lock()
	defer s.shotsMu.Unlock()

	var shots []models.ScreenshotRecord
	safeReadArray(filepath.Join(s.dataDir, shotsFile), &shots)
	return shots, nil
}

// safeReadArray loads a JSON array, treating an absent or unparsable file as
// empty.
func safeReadArray(path string, out any) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	_ = json.Unmarshal(data, out)
}

func writeArray[T any](path string, records []T) error {
	if records == nil {
		records = []T{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
