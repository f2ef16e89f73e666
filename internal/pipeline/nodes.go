package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/JaimeStill/go-agents-orchestration/pkg/state"

	"github.com/JaimeStill/geogov/internal/artifacts"
	"github.com/JaimeStill/geogov/internal/judgment"
	"github.com/JaimeStill/geogov/internal/policy"
	"github.com/JaimeStill/geogov/internal/receipts"
	"github.com/JaimeStill/geogov/internal/retrieval"
	"github.com/JaimeStill/geogov/internal/signals"
)

func (o *Orchestrator) extract(_ context.Context, _ *run, s state.State) (state.State, error) {
	a, err := get[artifacts.Artifact](s, KeyArtifact)
	if err != nil {
		return s, err
	}
	return s.Set(KeySignals, signals.Extract(a)), nil
}

func (o *Orchestrator) retrieve(ctx context.Context, r *run, s state.State) (state.State, error) {
	a, err := get[artifacts.Artifact](s, KeyArtifact)
	if err != nil {
		return s, err
	}
	set, err := get[signals.Set](s, KeySignals)
	if err != nil {
		return s, err
	}

	query := signals.Query(a, set)

	var chunks []retrieval.Chunk
	err = o.call(ctx, StageRetrieved, r.featureID, func(ctx context.Context) error {
		c, err := o.rt.Retriever.Retrieve(ctx, query, o.opts.TopK)
		if err != nil {
			return err
		}
		chunks = c
		return nil
	})
	if err != nil {
		if !errors.Is(err, retrieval.ErrUnavailable) {
			err = fmt.Errorf("%w: %w", retrieval.ErrUnavailable, err)
		}
		return s, r.fail(KindCollaborator, StageRetrieved, err)
	}

	return s.Set(KeyChunks, chunks), nil
}

func (o *Orchestrator) judge(ctx context.Context, r *run, s state.State) (state.State, error) {
	a, err := get[artifacts.Artifact](s, KeyArtifact)
	if err != nil {
		return s, err
	}
	chunks, err := get[[]retrieval.Chunk](s, KeyChunks)
	if err != nil {
		return s, err
	}

	var j judgment.Judgment
	err = o.call(ctx, StageJudged, r.featureID, func(ctx context.Context) error {
		out, err := o.rt.Judge.Judge(ctx, a, chunks)
		if err != nil {
			return err
		}
		j = out
		return nil
	})
	if err != nil {
		if !errors.Is(err, judgment.ErrJudgmentFailed) {
			err = fmt.Errorf("%w: %w", judgment.ErrJudgmentFailed, err)
		}
		return s, r.fail(KindCollaborator, StageJudged, err)
	}

	return s.Set(KeyJudgment, j), nil
}

func (o *Orchestrator) rule(_ context.Context, _ *run, s state.State) (state.State, error) {
	a, err := get[artifacts.Artifact](s, KeyArtifact)
	if err != nil {
		return s, err
	}
	set, err := get[signals.Set](s, KeySignals)
	if err != nil {
		return s, err
	}
	j, err := get[judgment.Judgment](s, KeyJudgment)
	if err != nil {
		return s, err
	}

	verdict := o.rt.Policy.Evaluate(policy.Input{
		Signals: signals.Union(set.Tags, j.Signals),
		Text:    a.Text(),
	})

	return s.Set(KeyVerdict, verdict), nil
}

// receipt persists the decision. The write runs detached from request
// cancellation: once started it always completes or fails on its own.
func (o *Orchestrator) receipt(ctx context.Context, r *run, s state.State) (state.State, error) {
	a, err := get[artifacts.Artifact](s, KeyArtifact)
	if err != nil {
		return s, err
	}
	set, err := get[signals.Set](s, KeySignals)
	if err != nil {
		return s, err
	}
	chunks, err := get[[]retrieval.Chunk](s, KeyChunks)
	if err != nil {
		return s, err
	}
	j, err := get[judgment.Judgment](s, KeyJudgment)
	if err != nil {
		return s, err
	}
	v, err := get[policy.Verdict](s, KeyVerdict)
	if err != nil {
		return s, err
	}

	d := receipts.Decision{
		FeatureID:       a.FeatureID,
		Title:           a.Title,
		NeedsCompliance: v.NeedsCompliance,
		Reason:          v.Reason,
		Regulations:     v.Regulations,
		MatchedRules:    v.MatchedRules,
		Signals:         signals.Union(set.Tags, j.Signals),
		Hints:           set.Hints,
		Citations:       hydrate(j.References, chunks),
		Confidence:      j.Confidence,
		Notes:           j.Notes,
		PolicyVersion:   o.rt.Policy.Version(),
		PolicyHash:      o.rt.Policy.Hash(),
		Timestamp:       o.rt.Now().UTC(),
	}

	rec, err := o.rt.Writer.Write(context.WithoutCancel(ctx), &d)
	if err != nil {
		return s, r.fail(KindInternal, StageReceipted, err)
	}

	return s.Set(KeyDecision, d).Set(KeyReceipt, rec), nil
}
