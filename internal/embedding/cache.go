package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/voterprime/catmatch/internal/domain"
	"github.com/voterprime/catmatch/internal/metrics"
	"go.uber.org/zap"
)

const DefaultCacheTTL = 24 * time.Hour

// CachedClient is a read-through redis cache in front of another Embedder.
// Only single Embed calls are cached; EmbedBatch always reaches the provider
// so every category load is encoded fresh. Redis failures are logged and the
// request falls through to the wrapped client.
type CachedClient struct {
	inner   domain.Embedder
	rdb     redis.Cmdable
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewCachedClient(inner domain.Embedder, rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) *CachedClient {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedClient{
		inner:   inner,
		rdb:     rdb,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
	}
}

func (c *CachedClient) Model() string {
	return c.inner.Model()
}

func (c *CachedClient) Dimension() int {
	return c.inner.Dimension()
}

func (c *CachedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var vec []float32
		if jerr := json.Unmarshal(data, &vec); jerr == nil && len(vec) > 0 {
			c.metrics.ObserveCache(true)
			return vec, nil
		}
		c.logger.Warn("discarding corrupt cached embedding", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("embedding cache read failed", zap.Error(err))
	}
	c.metrics.ObserveCache(false)

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if payload, jerr := json.Marshal(vec); jerr == nil {
		if serr := c.rdb.Set(ctx, key, payload, c.ttl).Err(); serr != nil {
			c.logger.Warn("embedding cache write failed", zap.Error(serr))
		}
	}
	return vec, nil
}

func (c *CachedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.EmbedBatch(ctx, texts)
}

func (c *CachedClient) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embedding:" + c.inner.Model() + ":" + hex.EncodeToString(sum[:])
}
