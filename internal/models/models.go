package models

import "strings"

// DefaultImagePrefix is prepended to screenshot payloads that arrive as bare
// base64 so every consumer can treat Screenshot as a renderable data URI.
const DefaultImagePrefix = "data:image/jpeg;base64,"

type ButtonEvent struct {
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"` // ms since epoch
	SessionID string `json:"sessionId"`
}

type ScreenshotRecord struct {
	Name       string `json:"name"`
	Timestamp  int64  `json:"timestamp"` // ms since epoch
	SessionID  string `json:"sessionId"`
	Screenshot string `json:"screenshot"`

	// Legacy payload aliases sent by older clients. Folded into Screenshot
	// by Normalize and never written back out.
	Base64 string `json:"base64,omitempty"`
	H64    string `json:"h64,omitempty"`
	B64    string `json:"b64,omitempty"`
	Mime   string `json:"mime,omitempty"`
}

// Normalize resolves the image payload from whichever field carries it and
// guarantees a data-URI prefix. This is the only place the alias fields are
// read; everything downstream sees Screenshot only.
func (s *ScreenshotRecord) Normalize() {
	payload := s.Screenshot
	for _, alias := range []string{s.H64, s.Base64, s.B64} {
		if payload == "" {
			payload = alias
		}
	}
	s.Base64, s.H64, s.B64 = "", "", ""

	if payload == "" || strings.HasPrefix(payload, "data:image/") {
		s.Screenshot = payload
		s.Mime = ""
		return
	}
	prefix := DefaultImagePrefix
	if s.Mime != "" {
		prefix = "data:" + s.Mime + ";base64,"
	}
	s.Screenshot = prefix + payload
	s.Mime = ""
}

// Batch is one sync cycle's combined payload. The server never sees a
// partial batch.
type Batch struct {
	Logs        []ButtonEvent      `json:"logs"`
	Screenshots []ScreenshotRecord `json:"screenshots"`
}

func (b Batch) Empty() bool {
	return len(b.Logs) == 0 && len(b.Screenshots) == 0
}

// FeedEvent is the read-model projection served by /events-json. It is
// recomputed from the stores on every read and never persisted.
type FeedEvent struct {
	Type      string `json:"type"` // "log" or "screenshot"
	UUID      string `json:"uuid"` // session identifier
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"`
	Info      string `json:"info"`
}

// Slide is one entry of a reconstructed session timeline.
type Slide struct {
	Timestamp int64  `json:"timestamp"`
	Src       string `json:"src"`
	Label     string `json:"label"`
}

type IngestResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}
