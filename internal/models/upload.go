package models

import (
	"time"

	"docuchat/internal/filerouter"
)

// Upload statuses track the extraction pipeline.
const (
	UploadPending   = "pending"
	UploadExtracted = "extracted"
	UploadFailed    = "failed"
	UploadNative    = "native" // model accepts the file directly, no extraction
)

// Upload represents a user-uploaded document attached to a session. Uploads
// are temporary and expire after a configured TTL.
type Upload struct {
	ID            int64               `json:"id"`
	UserID        int64               `json:"user_id"`
	SessionID     int64               `json:"session_id"`
	FileName      string              `json:"file_name"`
	StoredPath    string              `json:"-"`
	MimeType      string              `json:"mime_type"`
	Size          int64               `json:"size"`
	FileType      filerouter.FileType `json:"file_type"`
	Status        string              `json:"status"`
	ExtractedText string              `json:"-"`
	PageCount     int                 `json:"page_count"`
	CreatedAt     time.Time           `json:"created_at"`
	ExpiresAt     time.Time           `json:"expires_at"`
}
