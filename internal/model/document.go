package model

const (
	SourceTypeUpload = "upload"
	SourceTypeText   = "text"
)

type Document struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	Title        string `json:"title"`
	SourceType   string `json:"source_type"`
	Filename     string `json:"filename,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	OriginalText string `json:"-"`
	CreatedAt    int64  `json:"created_at"`
	IsDeleted    bool   `json:"is_deleted"`
	// CurrentIngestionID points at the most recent successful ingestion.
	// It is only ever set on success; a failed attempt leaves it untouched.
	CurrentIngestionID string `json:"current_ingestion_id,omitempty"`
}
