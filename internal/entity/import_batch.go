package entity

import (
	"time"

	"github.com/google/uuid"
)

// ImportBatch records one committed (or failed) bulk import.
type ImportBatch struct {
	ID            uuid.UUID     `json:"id"`
	FileName      string        `json:"file_name"`
	FileExt       string        `json:"file_ext"`
	FileSize      int64         `json:"file_size"`
	ContentHash   string        `json:"content_hash"`
	Status        string        `json:"status"`
	RowCount      int           `json:"row_count"`
	ImportedCount int           `json:"imported_count"`
	ClientID      *int64        `json:"client_id,omitempty"`
	Mapping       ColumnMapping `json:"mapping"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
}
