package models

import (
	"time"

	"github.com/google/uuid"
)

// File status labels
const (
	FileStatusUploaded = "uploaded"
	FileStatusEdited   = "edited"
)

// UploadedFile is the metadata row for a CSV blob kept in object storage
type UploadedFile struct {
	ID         uuid.UUID `db:"id" json:"id"`
	OwnerID    uuid.UUID `db:"owner_id" json:"owner_id"`
	FileName   string    `db:"file_name" json:"file_name"`
	FilePath   string    `db:"file_path" json:"file_path"`
	FileSize   int64     `db:"file_size" json:"file_size"`
	RowCount   *int      `db:"row_count" json:"row_count"`
	Status     string    `db:"status" json:"status"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
}
