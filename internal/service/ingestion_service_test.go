package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harshkolte01/tutor-bot/internal/model"
	"github.com/harshkolte01/tutor-bot/internal/rag"
)

type fakeIngestionStore struct {
	mu    sync.Mutex
	items map[string]*model.DocumentIngestion
}

func newFakeIngestionStore() *fakeIngestionStore {
	return &fakeIngestionStore{items: map[string]*model.DocumentIngestion{}}
}

func (s *fakeIngestionStore) Create(ctx context.Context, ing *model.DocumentIngestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ing
	s.items[ing.ID] = &cp
	return nil
}

func (s *fakeIngestionStore) MarkReady(ctx context.Context, ing *model.DocumentIngestion, completedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[ing.ID]
	if !ok || item.Status != model.IngestionStatusProcessing {
		return errors.New("not found")
	}
	item.Status = model.IngestionStatusReady
	item.CompletedAt = completedAt
	return nil
}

func (s *fakeIngestionStore) MarkFailed(ctx context.Context, ingestionID, errorMessage string, completedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[ingestionID]
	if !ok || item.Status != model.IngestionStatusProcessing {
		return errors.New("not found")
	}
	if runes := []rune(errorMessage); len(runes) > model.MaxIngestionErrorChars {
		errorMessage = string(runes[:model.MaxIngestionErrorChars])
	}
	item.Status = model.IngestionStatusFailed
	item.ErrorMessage = errorMessage
	item.CompletedAt = completedAt
	return nil
}

func (s *fakeIngestionStore) get(id string) *model.DocumentIngestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id]
}

type fakeChunkStore struct {
	mu       sync.Mutex
	saved    []model.Chunk
	failWith error
}

func (s *fakeChunkStore) SaveBatch(ctx context.Context, chunks []model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.saved = append(s.saved, chunks...)
	return nil
}

type stubEmbedder struct {
	dim int
	err error
}

func (e *stubEmbedder) ModelName() string { return "stub" }

func (e *stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, e.dim)
		out[i][0] = float32(i)
	}
	return out, nil
}

type stubExtractor struct {
	pages []rag.Page
	err   error
}

func (e *stubExtractor) ExtractPages(ctx context.Context, data []byte) ([]rag.Page, error) {
	return e.pages, e.err
}

func testDoc(mimeType, filename string) *model.Document {
	return &model.Document{
		ID:       "doc-1",
		UserID:   "user-1",
		Title:    "doc",
		MimeType: mimeType,
		Filename: filename,
	}
}

func TestIngestTextSuccess(t *testing.T) {
	ingestions := newFakeIngestionStore()
	chunks := &fakeChunkStore{}
	svc := NewIngestionService(ingestions, chunks, &stubEmbedder{dim: 4}, &stubExtractor{})

	text := strings.Repeat("a", 1200)
	ing, err := svc.IngestText(context.Background(), testDoc("", ""), text)
	require.NoError(t, err)
	require.Equal(t, model.IngestionStatusReady, ing.Status)
	require.NotZero(t, ing.CompletedAt)

	stored := ingestions.get(ing.ID)
	require.Equal(t, model.IngestionStatusReady, stored.Status)

	require.Len(t, chunks.saved, 2)
	require.Equal(t, 0, chunks.saved[0].ChunkIndex)
	require.Equal(t, 1, chunks.saved[1].ChunkIndex)
	require.Equal(t, "user-1", chunks.saved[0].UserID)
	require.Equal(t, ing.ID, chunks.saved[0].IngestionID)
	require.Len(t, chunks.saved[0].Embedding, 4)
	require.Zero(t, chunks.saved[0].PageStart)
}

func TestIngestTextEmptyFailsWithoutChunks(t *testing.T) {
	ingestions := newFakeIngestionStore()
	chunks := &fakeChunkStore{}
	svc := NewIngestionService(ingestions, chunks, &stubEmbedder{dim: 4}, &stubExtractor{})

	ing, err := svc.IngestText(context.Background(), testDoc("", ""), "   \n\t ")
	require.ErrorIs(t, err, errNoChunksFromText)
	require.Equal(t, model.IngestionStatusFailed, ing.Status)
	require.Equal(t, errNoChunksFromText.Error(), ing.ErrorMessage)
	require.Empty(t, chunks.saved)

	stored := ingestions.get(ing.ID)
	require.Equal(t, model.IngestionStatusFailed, stored.Status)
	require.NotZero(t, stored.CompletedAt)
}

func TestIngestUploadPDFCarriesPageRanges(t *testing.T) {
	ingestions := newFakeIngestionStore()
	chunks := &fakeChunkStore{}
	extractor := &stubExtractor{pages: []rag.Page{
		{Number: 1, Text: strings.Repeat("x", 700)},
		{Number: 2, Text: strings.Repeat("y", 700)},
	}}
	svc := NewIngestionService(ingestions, chunks, &stubEmbedder{dim: 4}, extractor)

	ing, err := svc.IngestUpload(context.Background(), testDoc("application/pdf", "slides.pdf"), "key", []byte("%PDF"))
	require.NoError(t, err)
	require.Equal(t, model.IngestionStatusReady, ing.Status)
	require.NotEmpty(t, chunks.saved)
	require.Equal(t, 1, chunks.saved[0].PageStart)
	require.NotZero(t, chunks.saved[0].PageEnd)
}

func TestIngestUploadBlankPDFFails(t *testing.T) {
	ingestions := newFakeIngestionStore()
	chunks := &fakeChunkStore{}
	extractor := &stubExtractor{pages: []rag.Page{{Number: 1, Text: "  \n "}}}
	svc := NewIngestionService(ingestions, chunks, &stubEmbedder{dim: 4}, extractor)

	ing, err := svc.IngestUpload(context.Background(), testDoc("application/pdf", "blank.pdf"), "key", []byte("%PDF"))
	require.ErrorIs(t, err, errNoExtractableText)
	require.Equal(t, model.IngestionStatusFailed, ing.Status)
	require.Empty(t, chunks.saved)
}

func TestIngestUploadExtractorErrorRecorded(t *testing.T) {
	ingestions := newFakeIngestionStore()
	chunks := &fakeChunkStore{}
	extractor := &stubExtractor{err: errors.New("pdf extraction failed: broken xref")}
	svc := NewIngestionService(ingestions, chunks, &stubEmbedder{dim: 4}, extractor)

	ing, err := svc.IngestUpload(context.Background(), testDoc("application/pdf", "broken.pdf"), "key", []byte("%PDF"))
	require.Error(t, err)
	require.Equal(t, model.IngestionStatusFailed, ing.Status)
	require.Contains(t, ing.ErrorMessage, "broken xref")
}

func TestIngestUploadPlainTextPath(t *testing.T) {
	ingestions := newFakeIngestionStore()
	chunks := &fakeChunkStore{}
	svc := NewIngestionService(ingestions, chunks, &stubEmbedder{dim: 4}, &stubExtractor{})

	data := append([]byte("hello "), 0xFF, 0xFE)
	data = append(data, []byte(" world")...)
	ing, err := svc.IngestUpload(context.Background(), testDoc("text/plain", "notes.txt"), "key", data)
	require.NoError(t, err)
	require.Equal(t, model.IngestionStatusReady, ing.Status)
	require.Len(t, chunks.saved, 1)
	require.Contains(t, chunks.saved[0].Content, "hello")
	require.Contains(t, chunks.saved[0].Content, "�")
}

func TestIngestEmbedFailureTruncatesError(t *testing.T) {
	ingestions := newFakeIngestionStore()
	chunks := &fakeChunkStore{}
	longErr := errors.New(strings.Repeat("upstream exploded ", 200))
	svc := NewIngestionService(ingestions, chunks, &stubEmbedder{err: longErr}, &stubExtractor{})

	ing, err := svc.IngestText(context.Background(), testDoc("", ""), "some text to ingest")
	require.Error(t, err)
	require.Equal(t, model.IngestionStatusFailed, ing.Status)
	require.LessOrEqual(t, len([]rune(ing.ErrorMessage)), model.MaxIngestionErrorChars)
	require.Empty(t, chunks.saved)
}

func TestIngestSaveFailureFailsIngestion(t *testing.T) {
	ingestions := newFakeIngestionStore()
	chunks := &fakeChunkStore{failWith: errors.New("insert rejected")}
	svc := NewIngestionService(ingestions, chunks, &stubEmbedder{dim: 4}, &stubExtractor{})

	ing, err := svc.IngestText(context.Background(), testDoc("", ""), "some text to ingest")
	require.Error(t, err)
	require.Equal(t, model.IngestionStatusFailed, ing.Status)
	require.Contains(t, ing.ErrorMessage, "insert rejected")
}
