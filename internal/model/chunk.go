package model

// TextChunk is the chunker's output: a bounded, possibly overlapping slice
// of a document's text. Index is zero-based and strictly increasing within
// one ingestion. PageStart/PageEnd are 1-based and 0 when the chunk did not
// come from paginated input.
type TextChunk struct {
	Index     int
	Content   string
	PageStart int
	PageEnd   int
}

// Chunk is the persisted row: one TextChunk plus its embedding, keyed by
// (ingestion_id, chunk_index).
type Chunk struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	DocumentID  string    `json:"document_id"`
	IngestionID string    `json:"ingestion_id"`
	ChunkIndex  int       `json:"chunk_index"`
	PageStart   int       `json:"page_start,omitempty"`
	PageEnd     int       `json:"page_end,omitempty"`
	Content     string    `json:"content"`
	Embedding   []float32 `json:"-"`
	CreatedAt   int64     `json:"created_at"`
}
