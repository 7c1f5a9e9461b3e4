// Package session provides the durable per-install identifier attached to
// every captured record.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/uxtrace/uxtrace/internal/logging"
)

type record struct {
	SessionID string `json:"sessionId"`
}

// Identity holds the install's session identifier. Constructed once at
// startup and passed to whatever needs it; acquisition is synchronous, so no
// consumer can observe an unset identifier.
type Identity struct {
	id string
}

// ID returns the stable session identifier.
func (i *Identity) ID() string { return i.id }

// NewIdentity loads the identifier persisted at path, or generates and
// persists a new one. Storage failures are logged and degrade to an
// in-memory identifier; they are never returned to the caller.
func NewIdentity(path string) *Identity {
	logger := logging.WithComponent("session")

	if data, err := os.ReadFile(path); err == nil {
		var rec record
		if json.Unmarshal(data, &rec) == nil && rec.SessionID != "" {
			logger.Debug().Str("session_id", rec.SessionID).Msg("loaded session id")
			return &Identity{id: rec.SessionID}
		}
	}

	id := uuid.NewString()
	if err := persist(path, id); err != nil {
		// The identifier will not survive restart, but the process stays usable.
		logger.Error().Err(err).Msg("failed to persist session id, using in-memory id")
	} else {
		logger.Info().Str("session_id", id).Msg("generated new session id")
	}
	return &Identity{id: id}
}

func persist(path, id string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(record{SessionID: id})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
