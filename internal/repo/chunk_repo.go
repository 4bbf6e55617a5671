package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/harshkolte01/tutor-bot/internal/model"
	"github.com/harshkolte01/tutor-bot/internal/pkg/dbutil"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// SaveBatch inserts every chunk of one ingestion in a single statement.
// The unique (ingestion_id, chunk_index) constraint rejects duplicates.
func (r *ChunkRepo) SaveBatch(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	data := make([]map[string]interface{}, 0, len(chunks))
	for _, chunk := range chunks {
		data = append(data, map[string]interface{}{
			"user_id":      chunk.UserID,
			"document_id":  chunk.DocumentID,
			"ingestion_id": chunk.IngestionID,
			"chunk_index":  chunk.ChunkIndex,
			"page_start":   nullIfZero(chunk.PageStart),
			"page_end":     nullIfZero(chunk.PageEnd),
			"content":      chunk.Content,
			"embedding":    pgvector.NewVector(chunk.Embedding),
			"created_at":   chunk.CreatedAt,
		})
	}
	sqlStr, args, err := builder.BuildInsert("chunks", data)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *ChunkRepo) CountByIngestion(ctx context.Context, userID, ingestionID string) (int, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM chunks WHERE user_id = $1 AND ingestion_id = $2", userID, ingestionID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ChunkRepo) ListByIngestion(ctx context.Context, userID, ingestionID string, limit, offset uint) ([]model.Chunk, error) {
	where := map[string]interface{}{
		"user_id":      userID,
		"ingestion_id": ingestionID,
		"_orderby":     "chunk_index asc",
	}
	if limit > 0 {
		where["_limit"] = []uint{offset, limit}
	}
	sqlStr, args, err := builder.BuildSelect("chunks", where,
		[]string{"id", "user_id", "document_id", "ingestion_id", "chunk_index", "page_start", "page_end", "content", "created_at"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	chunks := make([]model.Chunk, 0)
	for rows.Next() {
		var chunk model.Chunk
		var pageStart, pageEnd sql.NullInt64
		if err := rows.Scan(&chunk.ID, &chunk.UserID, &chunk.DocumentID, &chunk.IngestionID, &chunk.ChunkIndex, &pageStart, &pageEnd, &chunk.Content, &chunk.CreatedAt); err != nil {
			return nil, err
		}
		chunk.PageStart = int(pageStart.Int64)
		chunk.PageEnd = int(pageEnd.Int64)
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func nullIfZero(v int) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
