package models

import (
	"time"
)

// BlobDeletionStatus represents the state of a queued blob release
type BlobDeletionStatus string

const (
	BlobDeletionPending    BlobDeletionStatus = "pending"
	BlobDeletionProcessing BlobDeletionStatus = "processing"
	BlobDeletionDone       BlobDeletionStatus = "done"
	BlobDeletionFailed     BlobDeletionStatus = "failed"
)

// BlobDeletion is a blob release that failed inline and is retried in the background
type BlobDeletion struct {
	ID        string             `json:"id" db:"id"`
	Ref       string             `json:"ref" db:"ref"`
	Status    BlobDeletionStatus `json:"status" db:"status"`
	Attempts  int                `json:"attempts" db:"attempts"`
	LastError string             `json:"last_error,omitempty" db:"last_error"`
	CreatedAt time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" db:"updated_at"`
}
