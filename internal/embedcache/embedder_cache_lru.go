// Package embedcache puts an in-memory LRU in front of a TextEmbedder so
// re-ingesting identical chunk content does not hit the wrapper again.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/harshkolte01/tutor-bot/internal/rag"
)

func WrapLRU(next rag.TextEmbedder, size int, ttl time.Duration) rag.TextEmbedder {
	if next == nil || size <= 0 || ttl <= 0 {
		return next
	}
	return &lruEmbedder{
		next:  next,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next  rag.TextEmbedder
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) ModelName() string {
	return l.next.ModelName()
}

func (l *lruEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var missTexts []string
	var missAt []int
	for i, text := range texts {
		if cached, ok := l.cache.Get(l.cacheKey(text)); ok {
			vectors[i] = cloneEmbedding(cached)
			continue
		}
		missTexts = append(missTexts, text)
		missAt = append(missAt, i)
	}

	if len(missTexts) > 0 {
		fresh, err := l.next.EmbedTexts(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		if len(fresh) != len(missTexts) {
			return nil, fmt.Errorf("embedding result mismatch: expected %d, got %d", len(missTexts), len(fresh))
		}
		for j, vec := range fresh {
			vectors[missAt[j]] = vec
			l.cache.Add(l.cacheKey(missTexts[j]), cloneEmbedding(vec))
		}
	}

	if hits := len(texts) - len(missTexts); hits > 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hits (lru)",
			zap.Int("hits", hits),
			zap.Int("misses", len(missTexts)),
		)
	}
	return vectors, nil
}

func (l *lruEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(l.next.ModelName() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
