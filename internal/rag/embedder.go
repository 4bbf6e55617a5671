package rag

import (
	"context"
	"fmt"
	"sort"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/harshkolte01/tutor-bot/internal/model"
	"github.com/harshkolte01/tutor-bot/internal/wrapper"
)

// DefaultEmbedBatchSize is the maximum number of texts sent to the wrapper
// in one embeddings call.
const DefaultEmbedBatchSize = 100

// TextEmbedder turns a batch of texts into vectors aligned with the input
// order, one vector per text.
type TextEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// Embedder batches texts through the wrapper's embeddings endpoint.
// Vectors longer than the configured dimensionality are truncated to their
// leading prefix. That is only sound for models whose embeddings are
// priority-ordered (Matryoshka-style); gemini-embedding-001 is.
type Embedder struct {
	client     *wrapper.Client
	model      string
	dimensions int
	batchSize  int
}

func NewEmbedder(client *wrapper.Client, model string, dimensions, batchSize int) *Embedder {
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	return &Embedder{
		client:     client,
		model:      model,
		dimensions: dimensions,
		batchSize:  batchSize,
	}
}

func (e *Embedder) ModelName() string {
	return e.model
}

func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		resp, err := e.client.Embeddings(ctx, e.model, batch)
		if err != nil {
			return nil, err
		}
		items := append([]wrapper.EmbeddingItem(nil), resp.Data...)
		// The wrapper does not guarantee item order within a batch.
		sort.Slice(items, func(i, j int) bool { return items[i].Index < items[j].Index })
		if len(items) != len(batch) {
			return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(batch), len(items))
		}
		for _, item := range items {
			if item.Embedding == nil {
				return nil, fmt.Errorf("embedding response missing 'embedding' field")
			}
			vectors = append(vectors, truncateVector(item.Embedding, e.dimensions))
		}
		logutil.GetLogger(ctx).Debug("embedded batch",
			zap.String("model", e.model),
			zap.Int("batch", len(batch)),
			zap.Int("total", len(vectors)),
		)
	}
	return vectors, nil
}

func truncateVector(vec []float32, dimensions int) []float32 {
	if dimensions <= 0 || len(vec) <= dimensions {
		return vec
	}
	return vec[:dimensions]
}

// EmbedChunks embeds chunk contents, returning one vector per chunk in the
// same order as the input.
func EmbedChunks(ctx context.Context, embedder TextEmbedder, chunks []model.TextChunk) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vectors, err := embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding result mismatch: expected %d, got %d", len(chunks), len(vectors))
	}
	return vectors, nil
}
