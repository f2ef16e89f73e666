package pipeline

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// call runs op under the per-attempt timeout, retrying transient failures with
// exponential backoff. Collaborator calls are read-only, so retrying is safe.
// Cancellation of the parent context stops retries immediately.
func (o *Orchestrator) call(ctx context.Context, stage Stage, featureID string, op func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.opts.InitialBackoff
	b.MaxInterval = o.opts.MaxBackoff
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(o.opts.MaxRetries)), ctx)

	attempt := func() error {
		cctx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
		defer cancel()

		err := op(cctx)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		o.rt.Metrics.retried(stage)
		o.logger.WarnContext(
			ctx, "collaborator call failed, retrying",
			"stage", stage,
			"feature_id", featureID,
			"wait", wait,
			"error", err,
		)
	}

	return backoff.RetryNotify(attempt, policy, notify)
}
