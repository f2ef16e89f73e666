package receipts

import (
	"context"
	"fmt"

	"github.com/JaimeStill/geogov/pkg/merkle"
)

// Report summarizes a verified log.
type Report struct {
	Head    uint64 `json:"head"`
	Entries int    `json:"entries"`
	Root    string `json:"merkle_root"`
}

// Verify re-hashes every committed entry, checks that sequence numbers are
// contiguous from 1 and returns the Merkle root of the whole log.
func Verify(ctx context.Context, log Log) (Report, error) {
	head, err := log.Head(ctx)
	if err != nil {
		return Report{}, err
	}

	recs, err := log.Range(ctx, head)
	if err != nil {
		return Report{}, err
	}

	hashes := make([]string, len(recs))
	for i, rec := range recs {
		if want := uint64(i + 1); rec.Seq != want {
			return Report{}, fmt.Errorf("%w: seq %d at position %d", ErrLogCorrupt, rec.Seq, want)
		}
		if got := Hash(rec.Decision); got != rec.Hash {
			return Report{}, fmt.Errorf("%w: seq %d hash mismatch: stored %s, computed %s", ErrLogCorrupt, rec.Seq, rec.Hash, got)
		}
		if _, err := DecodeDecision(rec.Decision); err != nil {
			return Report{}, fmt.Errorf("%w: seq %d: %w", ErrLogCorrupt, rec.Seq, err)
		}
		hashes[i] = rec.Hash
	}

	if uint64(len(recs)) != head {
		return Report{}, fmt.Errorf("%w: head %d but %d entries", ErrLogCorrupt, head, len(recs))
	}

	root, err := merkle.Root(hashes)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %w", ErrLogCorrupt, err)
	}

	return Report{Head: head, Entries: len(recs), Root: root}, nil
}
