package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xxxsen/common/logutil"

	"github.com/harshkolte01/tutor-bot/internal/extract"
	"github.com/harshkolte01/tutor-bot/internal/model"
	"github.com/harshkolte01/tutor-bot/internal/pkg/timeutil"
	"github.com/harshkolte01/tutor-bot/internal/rag"
)

var (
	errNoExtractableText = errors.New("no extractable text in document")
	errNoChunksFromFile  = errors.New("no chunks produced from uploaded document")
	errNoChunksFromText  = errors.New("no chunks produced from text")
)

// IngestionStore is the slice of the ingestion repo the orchestrator needs.
type IngestionStore interface {
	Create(ctx context.Context, ing *model.DocumentIngestion) error
	MarkReady(ctx context.Context, ing *model.DocumentIngestion, completedAt int64) error
	MarkFailed(ctx context.Context, ingestionID, errorMessage string, completedAt int64) error
}

type ChunkStore interface {
	SaveBatch(ctx context.Context, chunks []model.Chunk) error
}

// IngestionService runs the chunk-embed-persist pipeline synchronously.
// Every run leaves its ingestion row in a terminal state: ready with the
// document pointer repointed, or failed with the reason recorded.
type IngestionService struct {
	ingestions IngestionStore
	chunks     ChunkStore
	embedder   rag.TextEmbedder
	extractor  extract.PageExtractor
}

func NewIngestionService(ingestions IngestionStore, chunks ChunkStore, embedder rag.TextEmbedder, extractor extract.PageExtractor) *IngestionService {
	return &IngestionService{
		ingestions: ingestions,
		chunks:     chunks,
		embedder:   embedder,
		extractor:  extractor,
	}
}

// IngestUpload chunks an uploaded file and embeds it. PDF uploads go
// through page extraction so chunks carry page ranges; everything else is
// treated as plain text after invalid UTF-8 byte replacement.
func (s *IngestionService) IngestUpload(ctx context.Context, doc *model.Document, fileKey string, data []byte) (*model.DocumentIngestion, error) {
	ing := &model.DocumentIngestion{
		ID:         newID(),
		DocumentID: doc.ID,
		UserID:     doc.UserID,
		SourceType: model.SourceTypeUpload,
		FileKey:    fileKey,
		Status:     model.IngestionStatusProcessing,
		CreatedAt:  timeutil.NowUnix(),
	}
	if err := s.ingestions.Create(ctx, ing); err != nil {
		return nil, err
	}
	err := s.run(ctx, ing, func() ([]model.TextChunk, error) {
		if extract.IsPDF(doc.MimeType, doc.Filename) {
			pages, err := s.extractor.ExtractPages(ctx, data)
			if err != nil {
				return nil, err
			}
			chunks := rag.ChunkPages(pages)
			if len(chunks) == 0 {
				return nil, errNoExtractableText
			}
			return chunks, nil
		}
		text := strings.ToValidUTF8(string(data), "�")
		chunks := rag.ChunkPlainText(text)
		if len(chunks) == 0 {
			return nil, errNoChunksFromFile
		}
		return chunks, nil
	})
	return ing, err
}

// IngestText chunks raw text submitted with the document.
func (s *IngestionService) IngestText(ctx context.Context, doc *model.Document, text string) (*model.DocumentIngestion, error) {
	ing := &model.DocumentIngestion{
		ID:           newID(),
		DocumentID:   doc.ID,
		UserID:       doc.UserID,
		SourceType:   model.SourceTypeText,
		TextSnapshot: text,
		Status:       model.IngestionStatusProcessing,
		CreatedAt:    timeutil.NowUnix(),
	}
	if err := s.ingestions.Create(ctx, ing); err != nil {
		return nil, err
	}
	err := s.run(ctx, ing, func() ([]model.TextChunk, error) {
		chunks := rag.ChunkPlainText(text)
		if len(chunks) == 0 {
			return nil, errNoChunksFromText
		}
		return chunks, nil
	})
	return ing, err
}

// run executes the pipeline and settles the ingestion row. A failure at
// any stage is written back once; the returned error is the stage error.
func (s *IngestionService) run(ctx context.Context, ing *model.DocumentIngestion, chunkFn func() ([]model.TextChunk, error)) error {
	logger := logutil.GetLogger(ctx).With(
		zap.String("ingestion_id", ing.ID),
		zap.String("document_id", ing.DocumentID))

	textChunks, err := chunkFn()
	if err != nil {
		return s.fail(ctx, ing, err)
	}
	vectors, err := rag.EmbedChunks(ctx, s.embedder, textChunks)
	if err != nil {
		return s.fail(ctx, ing, fmt.Errorf("embed chunks: %w", err))
	}
	now := timeutil.NowUnix()
	rows := make([]model.Chunk, 0, len(textChunks))
	for i, chunk := range textChunks {
		rows = append(rows, model.Chunk{
			UserID:      ing.UserID,
			DocumentID:  ing.DocumentID,
			IngestionID: ing.ID,
			ChunkIndex:  chunk.Index,
			PageStart:   chunk.PageStart,
			PageEnd:     chunk.PageEnd,
			Content:     chunk.Content,
			Embedding:   vectors[i],
			CreatedAt:   now,
		})
	}
	if err := s.chunks.SaveBatch(ctx, rows); err != nil {
		return s.fail(ctx, ing, fmt.Errorf("save chunks: %w", err))
	}
	completedAt := timeutil.NowUnix()
	if err := s.ingestions.MarkReady(ctx, ing, completedAt); err != nil {
		return s.fail(ctx, ing, fmt.Errorf("mark ready: %w", err))
	}
	ing.Status = model.IngestionStatusReady
	ing.CompletedAt = completedAt
	logger.Info("ingestion completed", zap.Int("chunk_count", len(rows)))
	return nil
}

func (s *IngestionService) fail(ctx context.Context, ing *model.DocumentIngestion, cause error) error {
	completedAt := timeutil.NowUnix()
	if err := s.ingestions.MarkFailed(ctx, ing.ID, cause.Error(), completedAt); err != nil {
		logutil.GetLogger(ctx).Error("record ingestion failure",
			zap.String("ingestion_id", ing.ID), zap.Error(err))
	} else {
		ing.Status = model.IngestionStatusFailed
		ing.ErrorMessage = cause.Error()
		ing.CompletedAt = completedAt
	}
	logutil.GetLogger(ctx).Warn("ingestion failed",
		zap.String("ingestion_id", ing.ID),
		zap.String("document_id", ing.DocumentID),
		zap.Error(cause))
	return cause
}
