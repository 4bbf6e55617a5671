package model

const (
	IngestionStatusProcessing = "processing"
	IngestionStatusReady      = "ready"
	IngestionStatusFailed     = "failed"
)

// MaxIngestionErrorChars bounds the error_message column; anything longer
// is truncated before it is written.
const MaxIngestionErrorChars = 2000

// DocumentIngestion is one attempt to produce the full chunk set for a
// document. It starts in processing and transitions exactly once to ready
// or failed; both are terminal.
type DocumentIngestion struct {
	ID           string `json:"id"`
	DocumentID   string `json:"document_id"`
	UserID       string `json:"user_id"`
	SourceType   string `json:"source_type"`
	FileKey      string `json:"-"`
	TextSnapshot string `json:"-"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	CompletedAt  int64  `json:"completed_at,omitempty"`
}
