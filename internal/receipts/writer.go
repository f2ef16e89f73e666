package receipts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Writer canonicalizes decisions and appends them to a Log. It is the single
// writer of the log: appends are serialized so sequence numbers stay gap-free.
type Writer struct {
	mu      sync.Mutex
	log     Log
	logger  *slog.Logger
	retries int
}

// NewWriter returns a Writer that retries a failed append once before surfacing it.
func NewWriter(log Log, logger *slog.Logger) *Writer {
	return &Writer{
		log:     log,
		logger:  logger.With("system", "receipts"),
		retries: 1,
	}
}

// Write appends d and sets d.Hash. The caller owns cancellation; a write that
// has started is not interrupted by anything but ctx.
func (w *Writer) Write(ctx context.Context, d *Decision) (Receipt, error) {
	canonical, err := Canonical(*d)
	if err != nil {
		return Receipt{}, err
	}

	entry := Entry{
		Hash:      Hash(canonical),
		FeatureID: d.FeatureID,
		Timestamp: d.Timestamp,
		Canonical: canonical,
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var rec Receipt
	for attempt := 0; ; attempt++ {
		rec, err = w.log.Append(ctx, entry)
		if err == nil {
			break
		}
		if attempt >= w.retries || ctx.Err() != nil {
			w.logger.Error("receipt write failed", "feature_id", d.FeatureID, "error", err)
			return Receipt{}, fmt.Errorf("write receipt for %s: %w", d.FeatureID, err)
		}
		w.logger.Warn("receipt append failed, retrying", "feature_id", d.FeatureID, "error", err)
	}

	d.Hash = entry.Hash

	w.logger.Info(
		"receipt written",
		"feature_id", d.FeatureID,
		"seq", rec.Seq,
		"hash", entry.Hash,
	)

	return rec, nil
}

// Head returns the log's last committed sequence number.
func (w *Writer) Head(ctx context.Context) (uint64, error) {
	return w.log.Head(ctx)
}

// Log returns the underlying log for readers.
func (w *Writer) Log() Log {
	return w.log
}
