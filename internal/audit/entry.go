package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// TimestampFormat is the wire format for entry timestamps (UTC, ms).
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Entry is one line in the append-only JSONL audit log. Every line is
// self-contained: the stamp covers the entry's own event, details, and
// timestamp, so a reader can validate any line without its neighbors
// and a crash that truncates the final line never casts doubt on the
// lines before it. Fields are a struct (no map) to guarantee
// deterministic json.Marshal field order.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Details   string `json:"details"`
	Hash      string `json:"hash"`
}

// Stamp returns the 8-hex-char digest over event, details, and
// timestamp.
func Stamp(event, details, timestamp string) string {
	h := sha256.Sum256([]byte(event + "|" + details + "|" + timestamp))
	return hex.EncodeToString(h[:])[:8]
}

// NewEntry builds a stamped entry for the given time.
func NewEntry(event, details string, at time.Time) Entry {
	ts := at.UTC().Format(TimestampFormat)
	return Entry{
		Timestamp: ts,
		Event:     event,
		Details:   details,
		Hash:      Stamp(event, details, ts),
	}
}

// Valid reports whether the entry's stamp matches its content.
func (e Entry) Valid() bool {
	return e.Hash == Stamp(e.Event, e.Details, e.Timestamp)
}
