package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/harshkolte01/tutor-bot/internal/model"
	"github.com/harshkolte01/tutor-bot/internal/pkg/dbutil"
	appErr "github.com/harshkolte01/tutor-bot/internal/pkg/errors"
)

var ingestionFields = []string{"id", "document_id", "user_id", "source_type", "file_key", "text_snapshot", "status", "error_message", "created_at", "completed_at"}

type IngestionRepo struct {
	db *sql.DB
}

func NewIngestionRepo(db *sql.DB) *IngestionRepo {
	return &IngestionRepo{db: db}
}

func (r *IngestionRepo) Create(ctx context.Context, ing *model.DocumentIngestion) error {
	data := map[string]interface{}{
		"id":            ing.ID,
		"document_id":   ing.DocumentID,
		"user_id":       ing.UserID,
		"source_type":   ing.SourceType,
		"file_key":      nullIfEmpty(ing.FileKey),
		"text_snapshot": nullIfEmpty(ing.TextSnapshot),
		"status":        ing.Status,
		"created_at":    ing.CreatedAt,
	}
	sqlStr, args, err := builder.BuildInsert("document_ingestions", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *IngestionRepo) Get(ctx context.Context, userID, docID, ingestionID string) (*model.DocumentIngestion, error) {
	where := map[string]interface{}{
		"id":          ingestionID,
		"document_id": docID,
		"user_id":     userID,
	}
	sqlStr, args, err := builder.BuildSelect("document_ingestions", where, ingestionFields)
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
	return scanIngestion(rows)
}

// GetLatest returns the most recently started ingestion for a document,
// whatever its status.
func (r *IngestionRepo) GetLatest(ctx context.Context, userID, docID string) (*model.DocumentIngestion, error) {
	where := map[string]interface{}{
		"document_id": docID,
		"user_id":     userID,
		"_orderby":    "created_at desc",
		"_limit":      []uint{0, 1},
	}
	sqlStr, args, err := builder.BuildSelect("document_ingestions", where, ingestionFields)
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
	return scanIngestion(rows)
}

// MarkReady flips a processing ingestion to ready and repoints the owning
// document's current_ingestion_id at it, in one transaction.
func (r *IngestionRepo) MarkReady(ctx context.Context, ing *model.DocumentIngestion, completedAt int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	result, err := tx.ExecContext(ctx,
		"UPDATE document_ingestions SET status = $1, completed_at = $2 WHERE id = $3 AND status = $4",
		model.IngestionStatusReady, completedAt, ing.ID, model.IngestionStatusProcessing)
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
	if _, err := tx.ExecContext(ctx,
		"UPDATE documents SET current_ingestion_id = $1 WHERE id = $2 AND user_id = $3",
		ing.ID, ing.DocumentID, ing.UserID); err != nil {
		return err
	}
	return tx.Commit()
}

// MarkFailed records the failure reason, truncated to the column bound.
// The document's current ingestion pointer is left untouched.
func (r *IngestionRepo) MarkFailed(ctx context.Context, ingestionID, errorMessage string, completedAt int64) error {
	if runes := []rune(errorMessage); len(runes) > model.MaxIngestionErrorChars {
		errorMessage = string(runes[:model.MaxIngestionErrorChars])
	}
	result, err := r.db.ExecContext(ctx,
		"UPDATE document_ingestions SET status = $1, error_message = $2, completed_at = $3 WHERE id = $4 AND status = $5",
		model.IngestionStatusFailed, errorMessage, completedAt, ingestionID, model.IngestionStatusProcessing)
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

// ListStale returns ingestions still marked processing that started
// before the cutoff, oldest first.
func (r *IngestionRepo) ListStale(ctx context.Context, cutoff int64, limit uint) ([]model.DocumentIngestion, error) {
	where := map[string]interface{}{
		"status":       model.IngestionStatusProcessing,
		"created_at <": cutoff,
		"_orderby":     "created_at asc",
	}
	if limit > 0 {
		where["_limit"] = []uint{0, limit}
	}
	sqlStr, args, err := builder.BuildSelect("document_ingestions", where, ingestionFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := make([]model.DocumentIngestion, 0)
	for rows.Next() {
		item, err := scanIngestion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func scanIngestion(rows *sql.Rows) (*model.DocumentIngestion, error) {
	var ing model.DocumentIngestion
	var fileKey, textSnapshot, errorMessage sql.NullString
	var completedAt sql.NullInt64
	if err := rows.Scan(&ing.ID, &ing.DocumentID, &ing.UserID, &ing.SourceType, &fileKey, &textSnapshot, &ing.Status, &errorMessage, &ing.CreatedAt, &completedAt); err != nil {
		return nil, err
	}
	ing.FileKey = fileKey.String
	ing.TextSnapshot = textSnapshot.String
	ing.ErrorMessage = errorMessage.String
	ing.CompletedAt = completedAt.Int64
	return &ing, nil
}
