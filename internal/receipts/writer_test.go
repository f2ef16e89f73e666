package receipts_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/geogov/internal/receipts"
)

func TestWriterConcurrentAppendsAreGapFree(t *testing.T) {
	ctx := context.Background()
	l := openLog(t, filepath.Join(t.TempDir(), "receipts.jsonl"))
	w := receipts.NewWriter(l, discard())

	const writers = 40
	seqs := make([]uint64, writers)

	var wg sync.WaitGroup
	for i := range writers {
		wg.Go(func() {
			d := sampleDecision()
			d.FeatureID = fmt.Sprintf("feat-%02d", i)
			rec, err := w.Write(ctx, &d)
			if err != nil {
				t.Errorf("write %d: %v", i, err)
				return
			}
			if d.Hash != rec.Hash {
				t.Errorf("write %d: decision hash %s, receipt hash %s", i, d.Hash, rec.Hash)
			}
			seqs[i] = rec.Seq
		})
	}
	wg.Wait()

	slices.Sort(seqs)
	for i, seq := range seqs {
		assert.Equal(t, uint64(i+1), seq)
	}

	report, err := receipts.Verify(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, writers, report.Entries)
}

type flakyLog struct {
	receipts.Log
	failures int
	calls    int
}

func (f *flakyLog) Append(ctx context.Context, e receipts.Entry) (receipts.Receipt, error) {
	f.calls++
	if f.calls <= f.failures {
		return receipts.Receipt{}, fmt.Errorf("%w: disk full", receipts.ErrAppend)
	}
	return f.Log.Append(ctx, e)
}

func TestWriterRetriesOnce(t *testing.T) {
	ctx := context.Background()
	inner := openLog(t, filepath.Join(t.TempDir(), "receipts.jsonl"))

	t.Run("recovers after one failure", func(t *testing.T) {
		log := &flakyLog{Log: inner, failures: 1}
		w := receipts.NewWriter(log, discard())

		d := sampleDecision()
		rec, err := w.Write(ctx, &d)
		require.NoError(t, err)
		assert.Equal(t, 2, log.calls)
		assert.Equal(t, uint64(1), rec.Seq)
		assert.NotEmpty(t, d.Hash)
	})

	t.Run("surfaces persistent failure", func(t *testing.T) {
		log := &flakyLog{Log: inner, failures: 5}
		w := receipts.NewWriter(log, discard())

		d := sampleDecision()
		_, err := w.Write(ctx, &d)
		assert.ErrorIs(t, err, receipts.ErrAppend)
		assert.Equal(t, 2, log.calls)
		assert.Empty(t, d.Hash)

		head, err := w.Head(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), head)
	})
}

func TestWriterRejectsInvalidDecision(t *testing.T) {
	l := openLog(t, filepath.Join(t.TempDir(), "receipts.jsonl"))
	w := receipts.NewWriter(l, discard())

	d := sampleDecision()
	d.Confidence = 2
	_, err := w.Write(context.Background(), &d)
	assert.True(t, errors.Is(err, receipts.ErrInvalidDecision))
}

func TestVerifyDetectsTampering(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "receipts.jsonl")

	l := openLog(t, path)
	w := receipts.NewWriter(l, discard())
	for _, id := range []string{"a", "b", "c"} {
		d := sampleDecision()
		d.FeatureID = id
		_, err := w.Write(ctx, &d)
		require.NoError(t, err)
	}

	clean, err := receipts.Verify(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), clean.Head)
	assert.Len(t, clean.Root, 64)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), `"needs_geo_compliance":true`, `"needs_geo_compliance":false`, 1)
	require.NotEqual(t, string(data), tampered)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0o644))

	reopened := openLog(t, path)
	_, err = receipts.Verify(ctx, reopened)
	assert.ErrorIs(t, err, receipts.ErrLogCorrupt)
}
