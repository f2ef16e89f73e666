package judgment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/geogov/internal/artifacts"
	"github.com/JaimeStill/geogov/internal/retrieval"
)

type fakeModel struct {
	mu      sync.Mutex
	replies map[Role]string
	errs    map[Role]error
	calls   []Role
}

func (f *fakeModel) Chat(_ context.Context, prompt string) (string, error) {
	role := RoleArbiter
	switch {
	case strings.HasPrefix(prompt, proposerInstructions):
		role = RoleProposer
	case strings.HasPrefix(prompt, rebuttalInstructions):
		role = RoleRebuttal
	}

	f.mu.Lock()
	f.calls = append(f.calls, role)
	f.mu.Unlock()

	if err := f.errs[role]; err != nil {
		return "", err
	}
	return f.replies[role], nil
}

func (f *fakeModel) called(role Role) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == role {
			return true
		}
	}
	return false
}

func newEnsemble(m Model) *Ensemble {
	return NewEnsemble(m, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var testArtifact = artifacts.Artifact{
	FeatureID:   "F-1",
	Title:       "Teen feed limits",
	Description: "Disable personalized feed for minors in California",
	Tags:        []string{"minors"},
}

var testChunks = []retrieval.Chunk{
	{ID: "sb976#0", Source: "leginfo", Title: "SB 976", Content: "Operators shall not provide an addictive feed to a minor."},
}

const (
	proposerReply = `{"signals":["minors","Personalization"],"claims":[{"regulation":"CA-SB976","why":"addictive feeds","citations":["sb976#0"]}],"citations":["sb976#0"]}`
	rebuttalReply = `{"counter_points":["limited rollout"],"missing_signals":["age verification"],"citations":["dsa#1"]}`
)

func TestEnsembleJudge(t *testing.T) {
	m := &fakeModel{replies: map[Role]string{
		RoleProposer: proposerReply,
		RoleRebuttal: rebuttalReply,
		RoleArbiter:  "```json\n{\"signals\":[\"Minors\",\"age gate\"],\"notes\":\" weighs SB 976 \",\"confidence\":0.8}\n```",
	}}

	j, err := newEnsemble(m).Judge(context.Background(), testArtifact, testChunks)
	require.NoError(t, err)

	assert.Equal(t, []string{"age_gate", "minors"}, j.Signals)
	assert.Equal(t, "weighs SB 976", j.Notes)
	assert.InDelta(t, 0.8, j.Confidence, 1e-9)
	assert.Equal(t, []string{"sb976#0", "dsa#1"}, j.References)
}

func TestEnsembleArbiterFallbacks(t *testing.T) {
	tests := []struct {
		name       string
		arbiter    string
		signals    []string
		confidence float64
	}{
		{
			name:       "empty signals fall back to proposer and missing",
			arbiter:    `{"notes":"n","confidence":0.4}`,
			signals:    []string{"age_verification", "minors", "personalization"},
			confidence: 0.4,
		},
		{
			name:       "confidence above range is clamped",
			arbiter:    `{"signals":["x"],"confidence":1.7}`,
			signals:    []string{"x"},
			confidence: 1,
		},
		{
			name:       "negative confidence is clamped",
			arbiter:    `{"signals":["x"],"confidence":-2}`,
			signals:    []string{"x"},
			confidence: 0,
		},
		{
			name:       "missing confidence is zero",
			arbiter:    `{"signals":["x"]}`,
			signals:    []string{"x"},
			confidence: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeModel{replies: map[Role]string{
				RoleProposer: proposerReply,
				RoleRebuttal: rebuttalReply,
				RoleArbiter:  tt.arbiter,
			}}

			j, err := newEnsemble(m).Judge(context.Background(), testArtifact, testChunks)
			require.NoError(t, err)
			assert.Equal(t, tt.signals, j.Signals)
			assert.InDelta(t, tt.confidence, j.Confidence, 1e-9)
		})
	}
}

func TestEnsembleFailures(t *testing.T) {
	t.Run("proposer error skips arbiter", func(t *testing.T) {
		boom := errors.New("upstream 503")
		m := &fakeModel{
			replies: map[Role]string{RoleRebuttal: rebuttalReply, RoleArbiter: `{}`},
			errs:    map[Role]error{RoleProposer: boom},
		}

		_, err := newEnsemble(m).Judge(context.Background(), testArtifact, testChunks)
		assert.ErrorIs(t, err, ErrJudgmentFailed)
		assert.ErrorIs(t, err, boom)
		assert.False(t, m.called(RoleArbiter))
	})

	t.Run("unparseable reply", func(t *testing.T) {
		m := &fakeModel{replies: map[Role]string{
			RoleProposer: proposerReply,
			RoleRebuttal: "I cannot help with that",
			RoleArbiter:  `{}`,
		}}

		_, err := newEnsemble(m).Judge(context.Background(), testArtifact, testChunks)
		assert.ErrorIs(t, err, ErrJudgmentFailed)
		assert.ErrorContains(t, err, "rebuttal response")
	})

	t.Run("arbiter error", func(t *testing.T) {
		m := &fakeModel{
			replies: map[Role]string{RoleProposer: proposerReply, RoleRebuttal: rebuttalReply},
			errs:    map[Role]error{RoleArbiter: context.DeadlineExceeded},
		}

		_, err := newEnsemble(m).Judge(context.Background(), testArtifact, testChunks)
		assert.ErrorIs(t, err, ErrJudgmentFailed)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestComposePromptBoundsContext(t *testing.T) {
	long := strings.Repeat("é", maxChunkRunes+50)
	chunks := make([]retrieval.Chunk, 7)
	for i := range chunks {
		chunks[i] = retrieval.Chunk{ID: "c" + string(rune('0'+i)), Content: long}
	}

	prompt := ComposePrompt(RoleProposer, testArtifact, chunks)

	assert.True(t, strings.HasPrefix(prompt, proposerInstructions))
	assert.Contains(t, prompt, "[c4]")
	assert.NotContains(t, prompt, "[c5]")
	assert.Contains(t, prompt, strings.Repeat("é", maxChunkRunes)+"...")
	assert.NotContains(t, prompt, strings.Repeat("é", maxChunkRunes+1))

	empty := ComposePrompt(RoleRebuttal, testArtifact, nil)
	assert.True(t, strings.HasPrefix(empty, rebuttalInstructions))
	assert.Contains(t, empty, "(none retrieved)")
}

func TestDisabled(t *testing.T) {
	j, err := Disabled{}.Judge(context.Background(), testArtifact, testChunks)
	require.NoError(t, err)
	assert.Empty(t, j.Signals)
	assert.Zero(t, j.Confidence)
}

func TestMapHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, MapHTTPStatus(ErrJudgmentFailed))
	assert.Equal(t, http.StatusInternalServerError, MapHTTPStatus(errors.New("x")))
}
