package service

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"

	"github.com/xxxsen/common/logutil"

	"github.com/harshkolte01/tutor-bot/internal/filestore"
	"github.com/harshkolte01/tutor-bot/internal/model"
	appErr "github.com/harshkolte01/tutor-bot/internal/pkg/errors"
	"github.com/harshkolte01/tutor-bot/internal/pkg/timeutil"
)

// DocumentStore is the slice of the document repo the service needs.
type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByID(ctx context.Context, userID, docID string) (*model.Document, error)
	List(ctx context.Context, userID string, limit, offset uint) ([]model.Document, error)
	SoftDelete(ctx context.Context, userID, docID string) error
}

type IngestionGetter interface {
	Get(ctx context.Context, userID, docID, ingestionID string) (*model.DocumentIngestion, error)
}

type ChunkCounter interface {
	CountByIngestion(ctx context.Context, userID, ingestionID string) (int, error)
}

var allowedUploadTypes = map[string]bool{
	"application/pdf": true,
	"text/plain":      true,
	"text/markdown":   true,
	"text/x-markdown": true,
}

var allowedUploadExts = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".md":   true,
	".text": true,
}

type DocumentService struct {
	docs           DocumentStore
	ingestionsRead IngestionGetter
	chunks         ChunkCounter
	files          filestore.Store
	ingester       *IngestionService
	maxUploadBytes int64
	maxTextChars   int
}

func NewDocumentService(docs DocumentStore, ingestions IngestionGetter, chunks ChunkCounter, files filestore.Store, ingester *IngestionService, maxUploadBytes int64, maxTextChars int) *DocumentService {
	return &DocumentService{
		docs:           docs,
		ingestionsRead: ingestions,
		chunks:         chunks,
		files:          files,
		ingester:       ingester,
		maxUploadBytes: maxUploadBytes,
		maxTextChars:   maxTextChars,
	}
}

// CreateFromUpload stores the raw file, creates the document row and runs
// ingestion synchronously. A nil document means nothing was created; a
// non-nil document with a non-nil error means the document exists but its
// ingestion failed.
func (s *DocumentService) CreateFromUpload(ctx context.Context, userID, title, filename, mimeType string, data []byte) (*model.Document, *model.DocumentIngestion, error) {
	if filename == "" || len(data) == 0 {
		return nil, nil, appErr.ErrInvalid
	}
	if int64(len(data)) > s.maxUploadBytes {
		return nil, nil, appErr.ErrTooLarge
	}
	if !uploadTypeAllowed(mimeType, filename) {
		return nil, nil, appErr.ErrUnsupportedMedia
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = deriveTitle(filename, data)
	}

	fileKey := newID() + "_" + sanitizeFilename(filename)
	if err := s.files.Save(ctx, fileKey, data); err != nil {
		return nil, nil, err
	}
	doc := &model.Document{
		ID:         newID(),
		UserID:     userID,
		Title:      title,
		SourceType: model.SourceTypeUpload,
		Filename:   filename,
		MimeType:   mimeType,
		CreatedAt:  timeutil.NowUnix(),
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, nil, err
	}
	logutil.GetLogger(ctx).Info("document created",
		zap.String("document_id", doc.ID),
		zap.String("source_type", doc.SourceType),
		zap.Int("size", len(data)))

	ing, err := s.ingester.IngestUpload(ctx, doc, fileKey, data)
	if err != nil {
		return doc, ing, err
	}
	doc.CurrentIngestionID = ing.ID
	return doc, ing, nil
}

// CreateFromText creates a document from pasted text and ingests it.
func (s *DocumentService) CreateFromText(ctx context.Context, userID, title, content string) (*model.Document, *model.DocumentIngestion, error) {
	title = strings.TrimSpace(title)
	if title == "" || content == "" {
		return nil, nil, appErr.ErrInvalid
	}
	if len([]rune(content)) > s.maxTextChars {
		return nil, nil, appErr.ErrTooLarge
	}
	doc := &model.Document{
		ID:           newID(),
		UserID:       userID,
		Title:        title,
		SourceType:   model.SourceTypeText,
		OriginalText: content,
		CreatedAt:    timeutil.NowUnix(),
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, nil, err
	}
	logutil.GetLogger(ctx).Info("document created",
		zap.String("document_id", doc.ID),
		zap.String("source_type", doc.SourceType))

	ing, err := s.ingester.IngestText(ctx, doc, content)
	if err != nil {
		return doc, ing, err
	}
	doc.CurrentIngestionID = ing.ID
	return doc, ing, nil
}

func (s *DocumentService) List(ctx context.Context, userID string, limit, offset uint) ([]model.Document, error) {
	return s.docs.List(ctx, userID, limit, offset)
}

// Get returns the document with its current ingestion, when one succeeded.
func (s *DocumentService) Get(ctx context.Context, userID, docID string) (*model.Document, *model.DocumentIngestion, error) {
	doc, err := s.docs.GetByID(ctx, userID, docID)
	if err != nil {
		return nil, nil, err
	}
	if doc.CurrentIngestionID == "" {
		return doc, nil, nil
	}
	ing, err := s.ingestionsRead.Get(ctx, userID, docID, doc.CurrentIngestionID)
	if err != nil {
		return nil, nil, err
	}
	return doc, ing, nil
}

func (s *DocumentService) Delete(ctx context.Context, userID, docID string) error {
	return s.docs.SoftDelete(ctx, userID, docID)
}

// Status returns one ingestion attempt; chunk_count is populated only for
// ready ingestions.
func (s *DocumentService) Status(ctx context.Context, userID, docID, ingestionID string) (*model.DocumentIngestion, int, error) {
	ing, err := s.ingestionsRead.Get(ctx, userID, docID, ingestionID)
	if err != nil {
		return nil, 0, err
	}
	if ing.Status != model.IngestionStatusReady {
		return ing, 0, nil
	}
	count, err := s.chunks.CountByIngestion(ctx, userID, ingestionID)
	if err != nil {
		return nil, 0, err
	}
	return ing, count, nil
}

func uploadTypeAllowed(mimeType, filename string) bool {
	base := strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(base, ";"); idx >= 0 {
		base = strings.TrimSpace(base[:idx])
	}
	if allowedUploadTypes[base] {
		return true
	}
	return allowedUploadExts[strings.ToLower(filepath.Ext(filename))]
}

func sanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	var sb strings.Builder
	for _, r := range filename {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

// deriveTitle falls back to the filename stem, or for markdown uploads the
// first level-1/2 heading when one exists.
func deriveTitle(filename string, data []byte) string {
	if strings.EqualFold(filepath.Ext(filename), ".md") {
		if heading := firstMarkdownHeading(data); heading != "" {
			return heading
		}
	}
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if stem == "" {
		return filename
	}
	return stem
}

func firstMarkdownHeading(data []byte) string {
	md := goldmark.New()
	reader := text.NewReader(data)
	doc := md.Parser().Parse(reader)
	var heading string
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := node.(*ast.Heading); ok && (h.Level == 1 || h.Level == 2) {
			heading = strings.TrimSpace(string(h.Text(reader.Source())))
			if heading != "" {
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	return heading
}
