package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/brainblog/internal/database"
	"github.com/brainblog/internal/models"
)

// blobDeletionRepo is the PostgreSQL implementation of BlobDeletionRepository
type blobDeletionRepo struct {
	db *database.DB
}

// NewBlobDeletionRepo creates a new blob deletion repository
func NewBlobDeletionRepo(db *database.DB) BlobDeletionRepository {
	return &blobDeletionRepo{db: db}
}

// Enqueue inserts a new pending deletion
func (r *blobDeletionRepo) Enqueue(ctx context.Context, d *models.BlobDeletion) error {
	query := `
		INSERT INTO blob_deletions (id, ref, status, attempts, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.Ref, d.Status, d.Attempts, nullString(d.LastError), d.CreatedAt, d.UpdatedAt,
	)
	return err
}

// GetPending retrieves the oldest pending deletions
func (r *blobDeletionRepo) GetPending(ctx context.Context, limit int) ([]*models.BlobDeletion, error) {
	query := `
		SELECT id, ref, status, attempts, last_error, created_at, updated_at
		FROM blob_deletions WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deletions []*models.BlobDeletion
	for rows.Next() {
		var d models.BlobDeletion
		var lastError sql.NullString
		if err := rows.Scan(&d.ID, &d.Ref, &d.Status, &d.Attempts, &lastError, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.LastError = lastError.String
		deletions = append(deletions, &d)
	}
	return deletions, rows.Err()
}

// MarkAsProcessing atomically moves a deletion from pending to processing
func (r *blobDeletionRepo) MarkAsProcessing(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE blob_deletions SET status = 'processing', updated_at = NOW() WHERE id = $1 AND status = 'pending'",
		id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Update stores status, attempts and last error. Completed rows are removed.
func (r *blobDeletionRepo) Update(ctx context.Context, d *models.BlobDeletion) error {
	if d.Status == models.BlobDeletionDone {
		_, err := r.db.ExecContext(ctx, "DELETE FROM blob_deletions WHERE id = $1", d.ID)
		return err
	}

	query := `
		UPDATE blob_deletions SET status = $1, attempts = $2, last_error = $3, updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, d.Status, d.Attempts, nullString(d.LastError), d.UpdatedAt, d.ID)
	return err
}

// RequeueStale returns abandoned claims to the queue
func (r *blobDeletionRepo) RequeueStale(ctx context.Context, before time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE blob_deletions SET status = 'pending', updated_at = NOW() WHERE status = 'processing' AND updated_at < $1",
		before,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// CountPending returns the number of deletions waiting for a retry
func (r *blobDeletionRepo) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM blob_deletions WHERE status IN ('pending', 'processing')").Scan(&count)
	return count, err
}
