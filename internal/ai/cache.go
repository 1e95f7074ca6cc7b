package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"ai-search-service/internal/logger"
)

// CachedEmbeddingClient decorates an EmbeddingClient with a Redis cache
// keyed by a hash of the preprocessed text. A cache failure is never fatal:
// the call falls through to the inner client. The core functions correctly
// (if slower) without this wrapper.
type CachedEmbeddingClient struct {
	inner EmbeddingClient
	rdb   *redis.Client
	model string
	ttl   time.Duration
}

func NewCachedEmbeddingClient(inner EmbeddingClient, rdb *redis.Client, model string, ttl time.Duration) *CachedEmbeddingClient {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedEmbeddingClient{
		inner: inner,
		rdb:   rdb,
		model: model,
		ttl:   ttl,
	}
}

func (cc *CachedEmbeddingClient) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(PreprocessText(text, 0)))
	return "embed:" + cc.model + ":" + hex.EncodeToString(sum[:])
}

func (cc *CachedEmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := cc.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch serves cached vectors where possible and embeds only the
// misses, preserving positional order.
func (cc *CachedEmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = cc.cacheKey(text)
	}

	cached, err := cc.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		logger.Debug("Embedding cache read failed", "error", err)
		cached = make([]interface{}, len(texts))
	}

	for i := range texts {
		raw, ok := cached[i].(string)
		if !ok {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
			continue
		}
		var vec []float32
		if err := json.Unmarshal([]byte(raw), &vec); err != nil || len(vec) == 0 {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
			continue
		}
		results[i] = vec
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	fresh, err := cc.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	pipe := cc.rdb.Pipeline()
	for j, idx := range missIdx {
		results[idx] = fresh[j]
		if encoded, err := json.Marshal(fresh[j]); err == nil {
			pipe.Set(ctx, keys[idx], encoded, cc.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Debug("Embedding cache write failed", "error", err)
	}

	return results, nil
}
