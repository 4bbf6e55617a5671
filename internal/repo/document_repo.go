package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/harshkolte01/tutor-bot/internal/model"
	"github.com/harshkolte01/tutor-bot/internal/pkg/dbutil"
	appErr "github.com/harshkolte01/tutor-bot/internal/pkg/errors"
)

var documentFields = []string{"id", "user_id", "title", "source_type", "filename", "mime_type", "original_text", "created_at", "is_deleted", "current_ingestion_id"}

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	data := map[string]interface{}{
		"id":            doc.ID,
		"user_id":       doc.UserID,
		"title":         doc.Title,
		"source_type":   doc.SourceType,
		"filename":      nullIfEmpty(doc.Filename),
		"mime_type":     nullIfEmpty(doc.MimeType),
		"original_text": nullIfEmpty(doc.OriginalText),
		"created_at":    doc.CreatedAt,
		"is_deleted":    doc.IsDeleted,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *DocumentRepo) GetByID(ctx context.Context, userID, docID string) (*model.Document, error) {
	where := map[string]interface{}{
		"id":         docID,
		"user_id":    userID,
		"is_deleted": false,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	doc, err := scanDocument(rows)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepo) List(ctx context.Context, userID string, limit, offset uint) ([]model.Document, error) {
	where := map[string]interface{}{
		"user_id":    userID,
		"is_deleted": false,
		"_orderby":   "created_at desc",
	}
	if limit > 0 {
		where["_limit"] = []uint{offset, limit}
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	docs := make([]model.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (r *DocumentRepo) Count(ctx context.Context, userID string) (int, error) {
	row := r.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM documents WHERE user_id = $1 AND is_deleted = FALSE", userID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *DocumentRepo) SoftDelete(ctx context.Context, userID, docID string) error {
	where := map[string]interface{}{
		"id":         docID,
		"user_id":    userID,
		"is_deleted": false,
	}
	update := map[string]interface{}{
		"is_deleted": true,
	}
	sqlStr, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func scanDocument(rows *sql.Rows) (*model.Document, error) {
	var doc model.Document
	var filename, mimeType, originalText, currentIngestionID sql.NullString
	if err := rows.Scan(&doc.ID, &doc.UserID, &doc.Title, &doc.SourceType, &filename, &mimeType, &originalText, &doc.CreatedAt, &doc.IsDeleted, &currentIngestionID); err != nil {
		return nil, err
	}
	doc.Filename = filename.String
	doc.MimeType = mimeType.String
	doc.OriginalText = originalText.String
	doc.CurrentIngestionID = currentIngestionID.String
	return &doc, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
