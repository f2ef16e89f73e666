// Package pipeline drives artifacts through extraction, retrieval, judgment,
// rule evaluation and receipt persistence, singly or in bounded batches.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	gaoconfig "github.com/JaimeStill/go-agents-orchestration/pkg/config"
	"github.com/JaimeStill/go-agents-orchestration/pkg/state"

	"github.com/JaimeStill/geogov/internal/artifacts"
	"github.com/JaimeStill/geogov/internal/receipts"
)

const tracerName = "github.com/JaimeStill/geogov/internal/pipeline"

// Outcome is the result of one artifact's pipeline. Exactly one of Decision
// and Failure is set.
type Outcome struct {
	FeatureID string             `json:"feature_id"`
	Stage     Stage              `json:"stage"`
	Seq       uint64             `json:"seq,omitempty"`
	Decision  *receipts.Decision `json:"decision,omitempty"`
	Failure   *Failure           `json:"failure,omitempty"`
	ElapsedMS int64              `json:"elapsed_ms"`
}

// Orchestrator runs the per-artifact state machine. It is safe for concurrent use.
type Orchestrator struct {
	rt     Runtime
	opts   Options
	tracer trace.Tracer
	logger *slog.Logger
}

func New(rt Runtime) *Orchestrator {
	if rt.Now == nil {
		rt.Now = time.Now
	}
	return &Orchestrator{
		rt:     rt,
		opts:   rt.Options.withDefaults(),
		tracer: otel.Tracer(tracerName),
		logger: rt.Logger.With("system", "pipeline"),
	}
}

// Options returns the effective options after defaults.
func (o *Orchestrator) Options() Options { return o.opts }

// run tracks one artifact's progress through the graph.
type run struct {
	featureID string
	stage     Stage
	failure   *Failure
}

func (r *run) fail(kind Kind, stage Stage, err error) error {
	r.failure = newFailure(kind, stage, r.featureID, err)
	return r.failure
}

// Analyze runs one artifact to done or failed. On failure the outcome is
// still returned and the error is its *Failure.
func (o *Orchestrator) Analyze(ctx context.Context, a artifacts.Artifact) (*Outcome, error) {
	start := time.Now()
	out := &Outcome{FeatureID: a.FeatureID, Stage: StageReceived}

	ctx, span := o.tracer.Start(ctx, "pipeline.analyze", trace.WithAttributes(
		attribute.String("feature_id", a.FeatureID),
	))
	defer span.End()

	if err := a.Validate(); err != nil {
		return o.finish(ctx, span, out, newFailure(KindValidation, StageReceived, a.FeatureID, err), start)
	}

	r := &run{featureID: a.FeatureID, stage: StageReceived}

	graph, err := o.buildGraph(r)
	if err != nil {
		return o.finish(ctx, span, out, newFailure(KindInternal, StageReceived, a.FeatureID, fmt.Errorf("build graph: %w", err)), start)
	}

	final, err := graph.Execute(ctx, state.New(nil).Set(KeyArtifact, a))
	if err != nil {
		f := r.failure
		if f == nil {
			kind := KindInternal
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				kind = KindCollaborator
			}
			f = newFailure(kind, r.stage, a.FeatureID, fmt.Errorf("execute graph: %w", err))
		}
		return o.finish(ctx, span, out, f, start)
	}

	d, err := get[receipts.Decision](final, KeyDecision)
	if err != nil {
		return o.finish(ctx, span, out, newFailure(KindInternal, StageDone, a.FeatureID, err), start)
	}
	rec, err := get[receipts.Receipt](final, KeyReceipt)
	if err != nil {
		return o.finish(ctx, span, out, newFailure(KindInternal, StageDone, a.FeatureID, err), start)
	}

	out.Decision = &d
	out.Seq = rec.Seq
	out.Stage = StageDone

	return o.finish(ctx, span, out, nil, start)
}

func (o *Orchestrator) finish(ctx context.Context, span trace.Span, out *Outcome, f *Failure, start time.Time) (*Outcome, error) {
	out.ElapsedMS = time.Since(start).Milliseconds()

	if f == nil {
		o.rt.Metrics.succeeded()
		o.rt.Metrics.head(out.Seq)
		o.logger.InfoContext(
			ctx, "artifact analyzed",
			"feature_id", out.FeatureID,
			"seq", out.Seq,
			"needs_geo_compliance", out.Decision.NeedsCompliance,
			"matched_rules", out.Decision.MatchedRules,
			"elapsed_ms", out.ElapsedMS,
		)
		return out, nil
	}

	out.Stage = StageFailed
	out.Failure = f

	span.RecordError(f)
	span.SetStatus(codes.Error, string(f.Kind))
	o.rt.Metrics.failed(f.Kind)

	level := slog.LevelWarn
	if f.Kind == KindInternal {
		level = slog.LevelError
	}
	o.logger.Log(
		ctx, level, "artifact failed",
		"feature_id", out.FeatureID,
		"kind", f.Kind,
		"stage", f.Stage,
		"error", f.Message,
	)

	return out, f
}

func (o *Orchestrator) buildGraph(r *run) (state.StateGraph, error) {
	cfg := gaoconfig.DefaultGraphConfig("geogov-analyze")
	cfg.Observer = "noop"

	graph, err := state.NewGraph(cfg)
	if err != nil {
		return nil, err
	}

	nodes := []struct {
		name string
		node state.StateNode
	}{
		{nodeExtract, o.node(r, StageSignalsExtracted, o.extract)},
		{nodeRetrieve, o.node(r, StageRetrieved, o.retrieve)},
		{nodeJudge, o.node(r, StageJudged, o.judge)},
		{nodeRule, o.node(r, StageRuled, o.rule)},
		{nodeReceipt, o.node(r, StageReceipted, o.receipt)},
	}

	for _, n := range nodes {
		if err := graph.AddNode(n.name, n.node); err != nil {
			return nil, err
		}
	}

	for i := 1; i < len(nodes); i++ {
		if err := graph.AddEdge(nodes[i-1].name, nodes[i].name, nil); err != nil {
			return nil, err
		}
	}

	if err := graph.SetEntryPoint(nodeExtract); err != nil {
		return nil, err
	}

	if err := graph.SetExitPoint(nodeReceipt); err != nil {
		return nil, err
	}

	return graph, nil
}

type stageFunc func(ctx context.Context, r *run, s state.State) (state.State, error)

// node wraps a stage with its span, latency metric and stage transition.
func (o *Orchestrator) node(r *run, target Stage, fn stageFunc) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		ctx, span := o.tracer.Start(ctx, "pipeline."+string(target))
		defer span.End()

		start := time.Now()
		next, err := fn(ctx, r, s)
		o.rt.Metrics.observeStage(target, time.Since(start))

		if err != nil {
			if r.failure == nil {
				err = r.fail(KindInternal, target, err)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return s, err
		}

		r.stage = target
		o.logger.DebugContext(ctx, "stage complete", "feature_id", r.featureID, "stage", target)
		return next, nil
	})
}

func get[T any](s state.State, key string) (T, error) {
	var zero T

	val, ok := s.Get(key)
	if !ok {
		return zero, fmt.Errorf("missing %s in state", key)
	}

	v, ok := val.(T)
	if !ok {
		return zero, fmt.Errorf("%s is not %T", key, zero)
	}

	return v, nil
}
