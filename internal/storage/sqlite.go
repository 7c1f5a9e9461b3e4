package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/uxtrace/uxtrace/internal/models"
	_ "modernc.org/sqlite" // CGO-free SQLite
)

// SQLiteStore keeps both record kinds in one SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	databasePath := filepath.Join(dataDir, "tracker.db")

	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", databasePath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS logs(
	  id         INTEGER PRIMARY KEY,
	  name       TEXT    NOT NULL,
	  timestamp  INTEGER NOT NULL,
	  session_id TEXT    NOT NULL
	);
	CREATE TABLE IF NOT EXISTS screenshots(
	  id         INTEGER PRIMARY KEY,
	  name       TEXT    NOT NULL,
	  timestamp  INTEGER NOT NULL,
	  session_id TEXT    NOT NULL,
	  screenshot TEXT    NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_logs_ts         ON logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_logs_session    ON logs(session_id);
	CREATE INDEX IF NOT EXISTS idx_shots_ts        ON screenshots(timestamp);
	CREATE INDEX IF NOT EXISTS idx_shots_session   ON screenshots(session_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create database tables: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AppendLogs(logs []models.ButtonEvent) error {
	transaction, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	statement, err := transaction.Prepare(`INSERT INTO logs(name, timestamp, session_id) VALUES(?,?,?)`)
	if err != nil {
		_ = transaction.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer statement.Close()

	for _, event := range logs {
		if _, err := statement.Exec(event.Name, event.Timestamp, event.SessionID); err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}
	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendScreenshots(shots []models.ScreenshotRecord) error {
	transaction, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	statement, err := transaction.Prepare(`INSERT INTO screenshots(name, timestamp, session_id, screenshot) VALUES(?,?,?,?)`)
	if err != nil {
		_ = transaction.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer statement.Close()

	for _, shot := range shots {
		if _, err := statement.Exec(shot.Name, shot.Timestamp, shot.SessionID, shot.Screenshot); err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}
	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Logs() ([]models.ButtonEvent, error) {
	rows, err := s.db.Query(`SELECT name, timestamp, session_id FROM logs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	var logs []models.ButtonEvent
	for rows.Next() {
		var event models.ButtonEvent
		if err := rows.Scan(&event.Name, &event.Timestamp, &event.SessionID); err != nil {
			return nil, fmt.Errorf("failed to scan log row: %w", err)
		}
		logs = append(logs, event)
	}
	return logs, rows.Err()
}

func (s *SQLiteStore) Screenshots() ([]models.ScreenshotRecord, error) {
	rows, err := s.db.Query(`SELECT name, timestamp, session_id, screenshot FROM screenshots ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query screenshots: %w", err)
	}
	defer rows.Close()

	var shots []models.ScreenshotRecord
	for rows.Next() {
		var shot models.ScreenshotRecord
		if err := rows.Scan(&shot.Name, &shot.Timestamp, &shot.SessionID, &shot.Screenshot); err != nil {
			return nil, fmt.Errorf("failed to scan screenshot row: %w", err)
		}
		shots = append(shots, shot)
	}
	return shots, rows.Err()
}
