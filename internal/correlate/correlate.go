// Package correlate reconstructs a session's timeline by pairing
// screenshot-flagged feed events with the raw screenshot records they most
// plausibly correspond to. All functions are pure; nothing here touches the
// network or disk.
package correlate

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/uxtrace/uxtrace/internal/models"
)

// DefaultTolerance is how far apart an event and a screenshot timestamp may
// be for a nearest-match to be accepted.
const DefaultTolerance = 15 * time.Second

// ErrNoMatch reports that no screenshot lies within tolerance of the event.
// It is an expected outcome, not a failure.
var ErrNoMatch = errors.New("no matching screenshot within tolerance")

// DayKey returns the local calendar day a millisecond timestamp falls on.
func DayKey(timestampMillis int64) string {
	return time.UnixMilli(timestampMillis).Format("2006-01-02")
}

// GroupByDay buckets feed events by local calendar day.
func GroupByDay(events []models.FeedEvent) map[string][]models.FeedEvent {
	grouped := make(map[string][]models.FeedEvent)
	for _, event := range events {
		key := DayKey(event.Timestamp)
		grouped[key] = append(grouped[key], event)
	}
	return grouped
}

// Sessions returns the distinct session identifiers in order of first
// appearance.
func Sessions(events []models.FeedEvent) []string {
	seen := make(map[string]bool)
	var sessions []string
	for _, event := range events {
		if event.UUID == "" || seen[event.UUID] {
			continue
		}
		seen[event.UUID] = true
		sessions = append(sessions, event.UUID)
	}
	return sessions
}

// FilterSessionDay keeps the events belonging to one session on one local
// calendar day.
func FilterSessionDay(events []models.FeedEvent, sessionID, day string) []models.FeedEvent {
	var filtered []models.FeedEvent
	for _, event := range events {
		if event.UUID == sessionID && DayKey(event.Timestamp) == day {
			filtered = append(filtered, event)
		}
	}
	return filtered
}

// Split partitions events into ordinary button events and screenshot-flagged
// events (action contains "screenshot", case-insensitive). Ordinary events
// come back newest first.
func Split(events []models.FeedEvent) (ordinary, flagged []models.FeedEvent) {
	for _, event := range events {
		if strings.Contains(strings.ToLower(event.Action), "screenshot") {
			flagged = append(flagged, event)
		} else {
			ordinary = append(ordinary, event)
		}
	}
	sort.SliceStable(ordinary, func(i, j int) bool {
		return ordinary[i].Timestamp > ordinary[j].Timestamp
	})
	return ordinary, flagged
}

// Match pairs a screenshot-flagged event with its exact-key screenshot.
type Match struct {
	Event models.FeedEvent
	Shot  models.ScreenshotRecord
}

// Result is the outcome of correlating one session/day's flagged events
// against the raw screenshot store.
type Result struct {
	Matched []Match
	// Unmatched holds flagged events with no exact-key screenshot. They are
	// kept for diagnostic visibility, never silently dropped.
	Unmatched []models.FeedEvent
	// Orphans are same-session same-day screenshots never claimed by a
	// match, typically periodic captures with no interaction event.
	Orphans []models.ScreenshotRecord
}

// Correlate runs the exact-match pass: events and screenshots join on
// (sessionId, timestamp). The timestamps are generated independently on the
// client, so only captures recorded under the event's own key match here;
// anything else lands in Unmatched.
func Correlate(flagged []models.FeedEvent, shots []models.ScreenshotRecord, sessionID, day string) Result {
	type key struct {
		sessionID string
		timestamp int64
	}

	shotByKey := make(map[key]int)
	for i, shot := range shots {
		if shot.SessionID == "" || shot.Timestamp == 0 {
			continue
		}
		shotByKey[key{shot.SessionID, shot.Timestamp}] = i
	}

	var result Result
	claimed := make(map[int]bool)
	for _, event := range flagged {
		if event.UUID == "" || event.Timestamp == 0 {
			result.Unmatched = append(result.Unmatched, event)
			continue
		}
		index, ok := shotByKey[key{event.UUID, event.Timestamp}]
		if !ok {
			result.Unmatched = append(result.Unmatched, event)
			continue
		}
		claimed[index] = true
		result.Matched = append(result.Matched, Match{Event: event, Shot: shots[index]})
	}

	for i, shot := range shots {
		if claimed[i] {
			continue
		}
		if shot.SessionID == sessionID && DayKey(shot.Timestamp) == day {
			result.Orphans = append(result.Orphans, shot)
		}
	}
	return result
}

// Slides flattens matches into the final slideshow: one slide per distinct
// timestamp (first claim wins), ascending, labelled with the local time and
// the originating action.
func Slides(matched []Match) []models.Slide {
	seen := make(map[int64]bool)
	var slides []models.Slide
	for _, match := range matched {
		timestamp := match.Shot.Timestamp
		if timestamp == 0 {
			timestamp = match.Event.Timestamp
		}
		if seen[timestamp] {
			continue
		}
		seen[timestamp] = true

		label := time.UnixMilli(timestamp).Format("2006-01-02 15:04:05")
		if match.Event.Action != "" {
			label += " — " + match.Event.Action
		}
		slides = append(slides, models.Slide{
			Timestamp: timestamp,
			Src:       resolveSrc(match.Shot),
			Label:     label,
		})
	}
	sort.Slice(slides, func(i, j int) bool {
		return slides[i].Timestamp < slides[j].Timestamp
	})
	return slides
}

// Nearest is the fallback matching mode for a single event when no exact key
// exists: the screenshot with the minimum absolute timestamp difference,
// restricted to the event's session when both sides carry one. A best
// candidate outside tolerance is reported as no match rather than returned.
func Nearest(event models.FeedEvent, shots []models.ScreenshotRecord, tolerance time.Duration) (models.ScreenshotRecord, error) {
	var best models.ScreenshotRecord
	bestDelta := int64(-1)

	for _, shot := range shots {
		if event.UUID != "" && shot.SessionID != "" && shot.SessionID != event.UUID {
			continue
		}
		delta := shot.Timestamp - event.Timestamp
		if delta < 0 {
			delta = -delta
		}
		if bestDelta < 0 || delta < bestDelta {
			best = shot
			bestDelta = delta
		}
	}

	if bestDelta < 0 || bestDelta > tolerance.Milliseconds() {
		return models.ScreenshotRecord{}, ErrNoMatch
	}
	return best, nil
}

// ButtonCount is one row of the per-session button frequency table.
type ButtonCount struct {
	Name  string
	Count int
}

// ButtonCounts tallies ordinary events by action name, most frequent first,
// ties broken alphabetically.
func ButtonCounts(events []models.FeedEvent) []ButtonCount {
	counts := make(map[string]int)
	for _, event := range events {
		name := strings.TrimSpace(event.Action)
		if name == "" {
			name = "(no action)"
		}
		counts[name]++
	}

	rows := make([]ButtonCount, 0, len(counts))
	for name, count := range counts {
		rows = append(rows, ButtonCount{Name: name, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

// resolveSrc guarantees a renderable image source even for records that
// predate ingestion-side normalization.
func resolveSrc(shot models.ScreenshotRecord) string {
	shot.Normalize()
	return shot.Screenshot
}
