package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/uxtrace/uxtrace/internal/models"
)

var (
	bucketLogs  = []byte("logs")
	bucketShots = []byte("screenshots")
)

// BoltStore keeps each record kind in its own bucket, one JSON value per
// record keyed by the bucket's sequence number so iteration preserves
// append order.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "tracker.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketLogs, bucketShots} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) AppendLogs(logs []models.ButtonEvent) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLogs)
		for _, event := range logs {
			if err := putSequenced(b, event); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) AppendScreenshots(shots []models.ScreenshotRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketShots)
		for _, shot := range shots {
			if err := putSequenced(b, shot); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Logs() ([]models.ButtonEvent, error) {
	var logs []models.ButtonEvent
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLogs).ForEach(func(_, v []byte) error {
			var event models.ButtonEvent
			if err := json.Unmarshal(v, &event); err != nil {
				return err
			}
			logs = append(logs, event)
			return nil
		})
	})
	return logs, err
}

func (s *BoltStore) Screenshots() ([]models.ScreenshotRecord, error) {
	var shots []models.ScreenshotRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketShots).ForEach(func(_, v []byte) error {
			var shot models.ScreenshotRecord
			if err := json.Unmarshal(v, &shot); err != nil {
				return err
			}
			shots = append(shots, shot)
			return nil
		})
	})
	return shots, err
}

func putSequenced(b *bolt.Bucket, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	seq, err := b.NextSequence()
	if err != nil {
		return err
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return b.Put(key, data)
}
