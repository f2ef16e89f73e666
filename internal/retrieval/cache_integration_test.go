//go:build integration

package retrieval

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type countingRetriever struct {
	inner Retriever
	calls atomic.Int32
}

func (c *countingRetriever) Retrieve(ctx context.Context, query string, k int) ([]Chunk, error) {
	c.calls.Add(1)
	return c.inner.Retrieve(ctx, query, k)
}

func TestCachedRetrieverRedis(t *testing.T) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	idx := loadIndex(t)
	inner := &countingRetriever{inner: idx}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cached := NewCached(inner, client, idx.Digest(), time.Minute, logger)

	first, err := cached.Retrieve(ctx, "recommender profiling", 2)
	require.NoError(t, err)
	second, err := cached.Retrieve(ctx, "recommender profiling", 2)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())

	_, err = cached.Retrieve(ctx, "recommender profiling", 3)
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}
