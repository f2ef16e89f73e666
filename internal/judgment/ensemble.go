package judgment

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/geogov/internal/artifacts"
	"github.com/JaimeStill/geogov/internal/retrieval"
	"github.com/JaimeStill/geogov/internal/signals"
	"github.com/JaimeStill/geogov/pkg/formatting"
)

// Ensemble runs proposer and rebuttal concurrently, then hands both to the arbiter.
type Ensemble struct {
	model  Model
	logger *slog.Logger
}

func NewEnsemble(model Model, logger *slog.Logger) *Ensemble {
	return &Ensemble{
		model:  model,
		logger: logger.With("component", "judgment"),
	}
}

func (e *Ensemble) Judge(ctx context.Context, a artifacts.Artifact, chunks []retrieval.Chunk) (Judgment, error) {
	var (
		p proposal
		r rebuttal
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		out, err := ask[proposal](gctx, e.model, RoleProposer, ComposePrompt(RoleProposer, a, chunks))
		p = out
		return err
	})

	g.Go(func() error {
		out, err := ask[rebuttal](gctx, e.model, RoleRebuttal, ComposePrompt(RoleRebuttal, a, chunks))
		r = out
		return err
	})

	if err := g.Wait(); err != nil {
		return Judgment{}, err
	}

	prompt, err := composeArbiter(a, p, r)
	if err != nil {
		return Judgment{}, fmt.Errorf("%w: %s: %w", ErrJudgmentFailed, RoleArbiter, err)
	}

	out, err := ask[ruling](ctx, e.model, RoleArbiter, prompt)
	if err != nil {
		return Judgment{}, err
	}

	j := merge(p, r, out)

	e.logger.DebugContext(
		ctx, "judgment complete",
		"feature_id", a.FeatureID,
		"signals", len(j.Signals),
		"confidence", j.Confidence,
	)

	return j, nil
}

func ask[T any](ctx context.Context, m Model, role Role, prompt string) (T, error) {
	var zero T

	content, err := m.Chat(ctx, prompt)
	if err != nil {
		return zero, fmt.Errorf("%w: %s call: %w", ErrJudgmentFailed, role, err)
	}

	parsed, err := formatting.Parse[T](content)
	if err != nil {
		return zero, fmt.Errorf("%w: %s response: %w", ErrJudgmentFailed, role, err)
	}

	return parsed, nil
}

// merge folds the role outputs into a Judgment. The arbiter's signals win;
// when it names none, the proposer's signals and the rebuttal's missing
// signals stand in. A missing confidence is treated as zero.
func merge(p proposal, r rebuttal, out ruling) Judgment {
	sigs := out.Signals
	if len(sigs) == 0 {
		sigs = signals.Union(p.Signals, r.MissingSignals)
	}

	var confidence float64
	if out.Confidence != nil {
		confidence = clamp(*out.Confidence)
	}

	lists := [][]string{p.Citations}
	for _, c := range p.Claims {
		lists = append(lists, c.Citations)
	}
	lists = append(lists, r.Citations)

	return Judgment{
		Signals:    signals.Union(sigs),
		Notes:      strings.TrimSpace(out.Notes),
		Confidence: confidence,
		References: firstSeen(lists...),
	}
}

func firstSeen(lists ...[]string) []string {
	var out []string
	for _, list := range lists {
		for _, v := range list {
			if v = strings.TrimSpace(v); v != "" && !slices.Contains(out, v) {
				out = append(out, v)
			}
		}
	}
	return out
}
