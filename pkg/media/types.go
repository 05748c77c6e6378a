// Package media manages project assets stored in S3-compatible object
// storage. Uploads and downloads go through presigned URLs so asset bytes
// never pass through the API server.
package media

import (
	"errors"
	"time"
)

// ErrNotFound indicates the requested asset does not exist
var ErrNotFound = errors.New("asset not found")

// Asset is an uploaded file attached to a project
type Asset struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	UploaderID  int64     `json:"uploader_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	StorageKey  string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// UploadTicket is returned when an upload is initiated: the client PUTs
// the file to URL before the ticket expires.
type UploadTicket struct {
	Asset     *Asset    `json:"asset"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
