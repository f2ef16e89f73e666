package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cached fronts a Retriever with a redis result cache. Cache faults are logged
// and bypassed; only the inner retriever's errors reach the caller.
type Cached struct {
	inner     Retriever
	client    redis.Cmdable
	ttl       time.Duration
	namespace string
	logger    *slog.Logger
}

// NewCached wraps inner. namespace scopes keys to one corpus, typically Index.Digest().
func NewCached(inner Retriever, client redis.Cmdable, namespace string, ttl time.Duration, logger *slog.Logger) *Cached {
	return &Cached{
		inner:     inner,
		client:    client,
		ttl:       ttl,
		namespace: namespace,
		logger:    logger.With("component", "retrieval.cache"),
	}
}

func (c *Cached) Retrieve(ctx context.Context, query string, k int) ([]Chunk, error) {
	key := c.key(query, k)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var chunks []Chunk
		if err := json.Unmarshal(data, &chunks); err == nil {
			return chunks, nil
		}
		c.logger.Warn("discarding undecodable cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("cache read failed", "error", err)
	}

	chunks, err := c.inner.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(chunks); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("cache write failed", "error", err)
		}
	}

	return chunks, nil
}

func (c *Cached) key(query string, k int) string {
	return fmt.Sprintf("geogov:retrieval:%s:%d:%s", c.namespace, k, hashQuery(query))
}
