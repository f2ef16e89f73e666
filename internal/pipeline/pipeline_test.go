package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/geogov/internal/artifacts"
	"github.com/JaimeStill/geogov/internal/judgment"
	"github.com/JaimeStill/geogov/internal/policy"
	"github.com/JaimeStill/geogov/internal/receipts"
	"github.com/JaimeStill/geogov/internal/retrieval"
	"github.com/JaimeStill/geogov/internal/signals"
)

const rulesYAML = `version: v-test
rules:
  - id: R1
    when_any:
      tags: [recommender]
    and_text: [EU]
    verdict: true
    regulations: [EU-DSA]
    reason: "Recommender in EU triggers {regulations}"
  - id: R2
    when_all_text: [geofence, market test, US]
    verdict: false
    reason: "Geofenced market test is a business decision"
`

var fixed = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type retrieverFunc func(ctx context.Context, query string, k int) ([]retrieval.Chunk, error)

func (f retrieverFunc) Retrieve(ctx context.Context, query string, k int) ([]retrieval.Chunk, error) {
	return f(ctx, query, k)
}

type judgeFunc func(ctx context.Context, a artifacts.Artifact, chunks []retrieval.Chunk) (judgment.Judgment, error)

func (f judgeFunc) Judge(ctx context.Context, a artifacts.Artifact, chunks []retrieval.Chunk) (judgment.Judgment, error) {
	return f(ctx, a, chunks)
}

var dsaChunks = []retrieval.Chunk{
	{ID: "dsa#1", Source: "https://eur-lex.europa.eu/dsa", Content: "Article 38. Recommender systems shall offer a non-profiling option."},
	{ID: "dsa#0", Source: "https://eur-lex.europa.eu/dsa-28", Content: "Article 28. Protection of minors."},
}

func staticRetriever() retrieval.Retriever {
	return retrieverFunc(func(context.Context, string, int) ([]retrieval.Chunk, error) {
		return dsaChunks, nil
	})
}

func staticJudge(sigs ...string) judgment.Judge {
	return judgeFunc(func(context.Context, artifacts.Artifact, []retrieval.Chunk) (judgment.Judgment, error) {
		return judgment.Judgment{
			Signals:    sigs,
			Notes:      "reviewed",
			Confidence: 0.9,
			References: []string{"dsa#1"},
		}, nil
	})
}

type harness struct {
	log     *receipts.FileLog
	reg     *prometheus.Registry
	metrics *Metrics
	rt      Runtime
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store, err := policy.Parse([]byte(rulesYAML), "")
	require.NoError(t, err)

	log, err := receipts.OpenFileLog(filepath.Join(t.TempDir(), "receipts.jsonl"), discard())
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	return &harness{
		log:     log,
		reg:     reg,
		metrics: metrics,
		rt: Runtime{
			Policy:    store,
			Retriever: staticRetriever(),
			Judge:     staticJudge(),
			Writer:    receipts.NewWriter(log, discard()),
			Metrics:   metrics,
			Logger:    discard(),
			Options: Options{
				Concurrency:    3,
				CallTimeout:    50 * time.Millisecond,
				MaxRetries:     1,
				InitialBackoff: time.Millisecond,
				MaxBackoff:     2 * time.Millisecond,
			},
			Now: func() time.Time { return fixed },
		},
	}
}

func recommenderArtifact(id string) artifacts.Artifact {
	return artifacts.Artifact{
		FeatureID:   id,
		Title:       "Personalized feed",
		Description: "Roll out the personalized feed to users in the EU",
		Tags:        []string{"recommender"},
	}
}

func TestAnalyzeRecommenderInEU(t *testing.T) {
	h := newHarness(t)
	o := New(h.rt)

	out, err := o.Analyze(context.Background(), recommenderArtifact("F-1"))
	require.NoError(t, err)

	assert.Equal(t, StageDone, out.Stage)
	assert.Equal(t, uint64(1), out.Seq)
	assert.Nil(t, out.Failure)

	d := out.Decision
	require.NotNil(t, d)
	assert.True(t, d.NeedsCompliance)
	assert.Equal(t, []string{"R1"}, d.MatchedRules)
	assert.Equal(t, []string{"EU-DSA"}, d.Regulations)
	assert.Equal(t, "Recommender in EU triggers EU-DSA", d.Reason)
	assert.Contains(t, d.Signals, "recommender")
	assert.Contains(t, d.Signals, "personalization")
	assert.Equal(t, "v-test", d.PolicyVersion)
	assert.Equal(t, h.rt.Policy.Hash(), d.PolicyHash)
	assert.Equal(t, fixed, d.Timestamp)
	assert.InDelta(t, 0.9, d.Confidence, 1e-9)
	assert.Equal(t, "reviewed", d.Notes)
	require.Len(t, d.Citations, 1)
	assert.Equal(t, "https://eur-lex.europa.eu/dsa", d.Citations[0].Source)

	report, err := receipts.Verify(context.Background(), h.log)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), report.Head)

	rs, err := h.log.Range(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, d.Hash, rs[0].Hash)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Outcomes.WithLabelValues("done", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ReceiptHead))
}

func TestAnalyzeRecordsHints(t *testing.T) {
	h := newHarness(t)
	o := New(h.rt)

	a := recommenderArtifact("F-6")
	a.CodeHints = []string{"  if region == 'EU' ", "ageGate(user)", "ageGate(user)"}

	out, err := o.Analyze(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, []string{"if region == 'EU'", "ageGate(user)"}, out.Decision.Hints)

	rs, err := h.log.Range(context.Background(), 1)
	require.NoError(t, err)
	stored, err := receipts.DecodeDecision(rs[0].Decision)
	require.NoError(t, err)
	assert.Equal(t, out.Decision.Hints, stored.Hints)

	set := signals.Extract(a)
	assert.Equal(t, signals.Query(a, set), signals.Query(a, signals.Set{Hints: stored.Hints}))
}

func TestAnalyzeFalseOnlyRule(t *testing.T) {
	h := newHarness(t)
	o := New(h.rt)

	out, err := o.Analyze(context.Background(), artifacts.Artifact{
		FeatureID:   "F-2",
		Title:       "Geofence rollout",
		Description: "A geofence limited market test in the US",
	})
	require.NoError(t, err)

	assert.False(t, out.Decision.NeedsCompliance)
	assert.Equal(t, []string{"R2"}, out.Decision.MatchedRules)
	assert.Empty(t, out.Decision.Regulations)
	assert.Equal(t, "Geofenced market test is a business decision", out.Decision.Reason)
}

func TestAnalyzeJudgeSignalsReachRules(t *testing.T) {
	h := newHarness(t)
	h.rt.Judge = staticJudge("Recommender")
	o := New(h.rt)

	a := recommenderArtifact("F-3")
	a.Tags = nil
	a.Title = "Feed"
	a.Description = "Ship the new home feed in the EU"

	out, err := o.Analyze(context.Background(), a)
	require.NoError(t, err)
	assert.True(t, out.Decision.NeedsCompliance)
	assert.Equal(t, []string{"R1"}, out.Decision.MatchedRules)
}

func TestAnalyzeValidationFailure(t *testing.T) {
	h := newHarness(t)
	o := New(h.rt)

	out, err := o.Analyze(context.Background(), artifacts.Artifact{FeatureID: "F-4"})
	require.Error(t, err)

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, KindValidation, f.Kind)
	assert.Equal(t, StageReceived, f.Stage)
	assert.ErrorIs(t, err, artifacts.ErrInvalid)
	assert.Equal(t, http.StatusUnprocessableEntity, MapHTTPStatus(err))

	assert.Equal(t, StageFailed, out.Stage)
	assert.Same(t, f, out.Failure)
	assert.Nil(t, out.Decision)

	head, err := h.log.Head(context.Background())
	require.NoError(t, err)
	assert.Zero(t, head)
}

func TestAnalyzeRejectsPaddedFeatureID(t *testing.T) {
	h := newHarness(t)
	o := New(h.rt)

	for _, id := range []string{" F-5", "F-5\n", "\tF-5 "} {
		_, err := o.Analyze(context.Background(), recommenderArtifact(id))
		assert.Equal(t, KindValidation, KindOf(err), "id %q", id)
		assert.ErrorIs(t, err, artifacts.ErrInvalid, "id %q", id)
	}

	head, err := h.log.Head(context.Background())
	require.NoError(t, err)
	assert.Zero(t, head)
}

func TestAnalyzeRetrievalExhaustsRetries(t *testing.T) {
	h := newHarness(t)
	var calls atomic.Int32
	h.rt.Retriever = retrieverFunc(func(context.Context, string, int) ([]retrieval.Chunk, error) {
		calls.Add(1)
		return nil, errors.New("index offline")
	})
	o := New(h.rt)

	out, err := o.Analyze(context.Background(), recommenderArtifact("F-5"))
	require.Error(t, err)

	assert.Equal(t, KindCollaborator, KindOf(err))
	assert.ErrorIs(t, err, retrieval.ErrUnavailable)
	assert.Equal(t, StageRetrieved, out.Failure.Stage)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, http.StatusBadGateway, MapHTTPStatus(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Retries.WithLabelValues(string(StageRetrieved))))
}

func TestAnalyzeJudgeRecoversOnRetry(t *testing.T) {
	h := newHarness(t)
	var calls atomic.Int32
	inner := staticJudge()
	h.rt.Judge = judgeFunc(func(ctx context.Context, a artifacts.Artifact, c []retrieval.Chunk) (judgment.Judgment, error) {
		if calls.Add(1) == 1 {
			return judgment.Judgment{}, judgment.ErrJudgmentFailed
		}
		return inner.Judge(ctx, a, c)
	})
	o := New(h.rt)

	out, err := o.Analyze(context.Background(), recommenderArtifact("F-6"))
	require.NoError(t, err)
	assert.Equal(t, StageDone, out.Stage)
	assert.Equal(t, int32(2), calls.Load())
}

type brokenLog struct {
	receipts.Log
}

func (brokenLog) Append(context.Context, receipts.Entry) (receipts.Receipt, error) {
	return receipts.Receipt{}, receipts.ErrAppend
}

func TestAnalyzeWriteFailureIsInternal(t *testing.T) {
	h := newHarness(t)
	h.rt.Writer = receipts.NewWriter(brokenLog{h.log}, discard())
	o := New(h.rt)

	out, err := o.Analyze(context.Background(), recommenderArtifact("F-7"))
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, StageReceipted, out.Failure.Stage)
	assert.ErrorIs(t, err, receipts.ErrAppend)
	assert.Equal(t, http.StatusInternalServerError, MapHTTPStatus(err))

	res, err := o.Batch(context.Background(), []artifacts.Artifact{recommenderArtifact("F-8")})
	require.Error(t, err)
	assert.Equal(t, 1, res.Failed)
}

func TestBatchIsolatesTimeout(t *testing.T) {
	h := newHarness(t)
	inner := staticJudge()
	h.rt.Judge = judgeFunc(func(ctx context.Context, a artifacts.Artifact, c []retrieval.Chunk) (judgment.Judgment, error) {
		if a.FeatureID == "F3" {
			<-ctx.Done()
			return judgment.Judgment{}, ctx.Err()
		}
		return inner.Judge(ctx, a, c)
	})
	o := New(h.rt)

	items := make([]artifacts.Artifact, 5)
	for i := range items {
		items[i] = recommenderArtifact("F" + string(rune('1'+i)))
	}

	res, err := o.Batch(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 4, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Outcomes, 5)

	var seqs []uint64
	for i, out := range res.Outcomes {
		assert.Equal(t, items[i].FeatureID, out.FeatureID)
		if i == 2 {
			require.NotNil(t, out.Failure)
			assert.Equal(t, KindCollaborator, out.Failure.Kind)
			assert.Equal(t, StageJudged, out.Failure.Stage)
			assert.ErrorIs(t, out.Failure, context.DeadlineExceeded)
			assert.ErrorIs(t, out.Failure, judgment.ErrJudgmentFailed)
			continue
		}
		require.NotNil(t, out.Decision, out.FeatureID)
		seqs = append(seqs, out.Seq)
	}

	slices.Sort(seqs)
	assert.Equal(t, []uint64{1, 2, 3, 4}, seqs)

	report, err := receipts.Verify(context.Background(), h.log)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), report.Head)
}

func TestBatchEmpty(t *testing.T) {
	h := newHarness(t)
	res, err := New(h.rt).Batch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.Empty(t, res.Outcomes)
}

func TestHydrate(t *testing.T) {
	long := strings.Repeat("x", maxSnippetRune+10)
	chunks := []retrieval.Chunk{
		{ID: "a#0", Source: "src-a", Content: "alpha"},
		{ID: "b#0", Source: "src-b", Content: long},
		{ID: "c#0", Content: "gamma"},
		{ID: "d#0", Source: "src-d", Content: "delta"},
	}

	tests := []struct {
		name string
		refs []string
		want []receipts.Citation
	}{
		{
			name: "by id and source in reference order",
			refs: []string{"src-b", "a#0"},
			want: []receipts.Citation{
				{Source: "src-b", Snippet: strings.Repeat("x", maxSnippetRune) + "..."},
				{Source: "src-a", Snippet: "alpha"},
			},
		},
		{
			name: "source falls back to id",
			refs: []string{"c#0"},
			want: []receipts.Citation{{Source: "c#0", Snippet: "gamma"}},
		},
		{
			name: "capped at three and deduplicated",
			refs: []string{"a#0", "src-a", "c#0", "d#0", "b#0"},
			want: []receipts.Citation{
				{Source: "src-a", Snippet: "alpha"},
				{Source: "c#0", Snippet: "gamma"},
				{Source: "src-d", Snippet: "delta"},
			},
		},
		{
			name: "unresolved references fall back to top chunk",
			refs: []string{"nowhere"},
			want: []receipts.Citation{{Source: "src-a", Snippet: "alpha"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hydrate(tt.refs, chunks))
		})
	}

	assert.Empty(t, hydrate([]string{"a#0"}, nil))
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{MaxRetries: -1}.withDefaults()
	d := DefaultOptions()
	assert.Equal(t, d.Concurrency, o.Concurrency)
	assert.Equal(t, d.TopK, o.TopK)
	assert.Equal(t, d.CallTimeout, o.CallTimeout)
	assert.Zero(t, o.MaxRetries)
}
