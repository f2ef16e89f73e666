package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/geogov/internal/artifacts"
)

// BatchResult aggregates per-artifact outcomes in input order.
type BatchResult struct {
	ID        uuid.UUID  `json:"id"`
	Outcomes  []*Outcome `json:"results"`
	Total     int        `json:"total"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	ElapsedMS int64      `json:"elapsed_ms"`
}

// Batch runs items with at most Options.Concurrency in flight. One item's
// failure never cancels its siblings. The result is always complete; the
// error is non-nil only when some item hit an internal failure.
func (o *Orchestrator) Batch(ctx context.Context, items []artifacts.Artifact) (*BatchResult, error) {
	start := time.Now()
	res := &BatchResult{
		ID:       uuid.New(),
		Outcomes: make([]*Outcome, len(items)),
		Total:    len(items),
	}
	internal := make([]error, len(items))

	o.rt.Metrics.batch(len(items))
	o.logger.InfoContext(ctx, "batch started", "batch_id", res.ID, "items", len(items), "concurrency", o.opts.Concurrency)

	var g errgroup.Group
	g.SetLimit(o.opts.Concurrency)

	for i, a := range items {
		g.Go(func() error {
			out, err := o.Analyze(ctx, a)
			res.Outcomes[i] = out
			if err != nil && KindOf(err) == KindInternal {
				internal[i] = err
			}
			return nil
		})
	}

	_ = g.Wait()

	for _, out := range res.Outcomes {
		if out.Failure != nil {
			res.Failed++
		} else {
			res.Succeeded++
		}
	}
	res.ElapsedMS = time.Since(start).Milliseconds()

	o.logger.InfoContext(
		ctx, "batch complete",
		"batch_id", res.ID,
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"elapsed_ms", res.ElapsedMS,
	)

	return res, errors.Join(internal...)
}
