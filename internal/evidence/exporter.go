// Package evidence builds audit bundles from a bounded snapshot of the receipt log.
package evidence

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/geogov/internal/policy"
	"github.com/JaimeStill/geogov/internal/receipts"
	"github.com/JaimeStill/geogov/pkg/merkle"
	"github.com/JaimeStill/geogov/pkg/pagination"
	"github.com/JaimeStill/geogov/pkg/storage"
)

// KeyPrefix is the blob key prefix for published bundles.
const KeyPrefix = "evidence/"

// Exporter reads the log; it never writes to it.
type Exporter struct {
	log    receipts.Log
	policy *policy.Store
	blobs  storage.System
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Exporter. blobs may be nil, in which case Publish is unavailable.
func New(log receipts.Log, store *policy.Store, blobs storage.System, logger *slog.Logger) *Exporter {
	return &Exporter{
		log:    log,
		policy: store,
		blobs:  blobs,
		logger: logger.With("component", "evidence"),
		now:    time.Now,
	}
}

// Export snapshots the log at its current head and builds a bundle from the
// receipts matching f. Appends made after the head is read are not included.
func (e *Exporter) Export(ctx context.Context, f Filter) (*Bundle, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	snap, err := e.snapshot(ctx, f)
	if err != nil {
		return nil, err
	}

	b := &Bundle{
		ID:            uuid.New(),
		GeneratedAt:   e.now().UTC(),
		Filter:        f,
		Head:          snap.head,
		PolicyVersion: e.policy.Version(),
		PolicyHash:    e.policy.Hash(),
		Policy:        e.policy.Snapshot(),
		Receipts:      snap.receipts,
		Decisions:     snap.decisions,
	}

	hashes := make([]string, len(snap.receipts))
	for i, r := range snap.receipts {
		hashes[i] = r.Hash
	}

	if b.Root, err = merkle.Root(hashes); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExport, err)
	}
	b.Count = len(b.Receipts)

	e.logger.InfoContext(
		ctx, "evidence exported",
		"bundle_id", b.ID,
		"head", b.Head,
		"receipts", b.Count,
		"merkle_root", b.Root,
	)

	return b, nil
}

// DecisionRecord is a logged decision paired with its receipt sequence number.
type DecisionRecord struct {
	Seq uint64 `json:"seq"`
	receipts.Decision
}

// List returns one page of the decisions matching f, in log order, from a
// snapshot taken at the current head.
func (e *Exporter) List(ctx context.Context, f Filter, req pagination.PageRequest) (pagination.PageResult[DecisionRecord], error) {
	if err := f.Validate(); err != nil {
		return pagination.PageResult[DecisionRecord]{}, err
	}

	snap, err := e.snapshot(ctx, f)
	if err != nil {
		return pagination.PageResult[DecisionRecord]{}, err
	}

	records := make([]DecisionRecord, len(snap.receipts))
	for i, r := range snap.receipts {
		records[i] = DecisionRecord{Seq: r.Seq, Decision: snap.decisions[i]}
	}

	return pagination.Slice(records, req), nil
}

type snapshot struct {
	head      uint64
	receipts  []receipts.Receipt
	decisions []receipts.Decision
}

// snapshot reads the log up to its current head, re-hashes every receipt and
// keeps the ones matching f.
func (e *Exporter) snapshot(ctx context.Context, f Filter) (snapshot, error) {
	head, err := e.log.Head(ctx)
	if err != nil {
		return snapshot{}, fmt.Errorf("%w: read head: %w", ErrExport, err)
	}

	all, err := e.log.Range(ctx, head)
	if err != nil {
		return snapshot{}, fmt.Errorf("%w: read range: %w", ErrExport, err)
	}

	snap := snapshot{
		head:      head,
		receipts:  make([]receipts.Receipt, 0),
		decisions: make([]receipts.Decision, 0),
	}

	for _, r := range all {
		if got := receipts.Hash(r.Decision); got != r.Hash {
			return snapshot{}, fmt.Errorf("%w: seq %d: %w", ErrExport, r.Seq, receipts.ErrLogCorrupt)
		}

		d, err := receipts.DecodeDecision(r.Decision)
		if err != nil {
			return snapshot{}, fmt.Errorf("%w: seq %d: %w", ErrExport, r.Seq, err)
		}
		d.Hash = r.Hash

		if !f.Match(d) {
			continue
		}

		snap.receipts = append(snap.receipts, r)
		snap.decisions = append(snap.decisions, d)
	}

	return snap, nil
}

// Blob metadata recorded with each published bundle.
const (
	metaBundleID     = "bundle_id"
	metaMerkleRoot   = "merkle_root"
	metaReceiptHead  = "receipt_head"
	metaReceiptCount = "receipt_count"
	metaPolicyHash   = "policy_hash"
)

// Publish writes the bundle archive to blob storage and returns its key.
// Published bundles are immutable; publishing the same bundle twice fails
// with storage.ErrExists.
func (e *Exporter) Publish(ctx context.Context, b *Bundle) (string, error) {
	if e.blobs == nil {
		return "", ErrPublishUnavailable
	}

	data, err := b.Archive()
	if err != nil {
		return "", err
	}

	key := PublishedKey(b.ID)
	obj := storage.Object{
		ContentType: "application/zip",
		Metadata: map[string]string{
			metaBundleID:     b.ID.String(),
			metaMerkleRoot:   b.Root,
			metaReceiptHead:  strconv.FormatUint(b.Head, 10),
			metaReceiptCount: strconv.Itoa(b.Count),
			metaPolicyHash:   b.PolicyHash,
		},
	}
	if err := e.blobs.Put(ctx, key, bytes.NewReader(data), obj); err != nil {
		return "", fmt.Errorf("publish bundle: %w", err)
	}

	e.logger.InfoContext(ctx, "evidence published", "bundle_id", b.ID, "key", key, "merkle_root", b.Root)
	return key, nil
}

// PublishedKey is the blob key a bundle is published under.
func PublishedKey(id uuid.UUID) string {
	return KeyPrefix + id.String() + ".zip"
}

// VerifyPublished downloads a published bundle and verifies it offline. The
// root recorded in the blob metadata at publish time must match the root
// recomputed from the archive.
func (e *Exporter) VerifyPublished(ctx context.Context, id uuid.UUID) (Verification, error) {
	if e.blobs == nil {
		return Verification{}, ErrPublishUnavailable
	}

	body, obj, err := e.blobs.Get(ctx, PublishedKey(id))
	if err != nil {
		return Verification{}, fmt.Errorf("fetch bundle %s: %w", id, err)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxArchiveSize+1))
	if err != nil {
		return Verification{}, fmt.Errorf("fetch bundle %s: %w", id, err)
	}
	if len(data) > maxArchiveSize {
		return Verification{}, fmt.Errorf("%w: archive exceeds %d bytes", ErrBundleInvalid, maxArchiveSize)
	}

	v, err := VerifyArchive(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Verification{}, err
	}
	if root := obj.Metadata[metaMerkleRoot]; root != "" && root != v.Root {
		return Verification{}, fmt.Errorf("%w: published root %s, archive root %s", ErrBundleInvalid, root, v.Root)
	}
	return v, nil
}
