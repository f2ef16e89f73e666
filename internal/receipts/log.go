package receipts

import (
	"context"
	"encoding/json"
	"time"
)

// Receipt is one committed log entry. Decision holds the canonical bytes verbatim.
type Receipt struct {
	Seq      uint64          `json:"seq"`
	Hash     string          `json:"hash"`
	Decision json.RawMessage `json:"decision"`
}

// Entry is a receipt about to be appended.
type Entry struct {
	Hash      string
	FeatureID string
	Timestamp time.Time
	Canonical []byte
}

// Log is a durable, append-only receipt store. Sequence numbers start at 1
// and have no gaps. Entries are never edited or removed.
type Log interface {
	// Append commits e at the next sequence number. An error means nothing was committed.
	Append(ctx context.Context, e Entry) (Receipt, error)
	// Head returns the highest committed sequence number, 0 when empty.
	Head(ctx context.Context) (uint64, error)
	// Range returns every entry with Seq <= upTo in sequence order.
	Range(ctx context.Context, upTo uint64) ([]Receipt, error)
	// Close releases the log.
	Close() error
}
