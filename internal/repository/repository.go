package repository

import (
	"context"
	"time"

	"github.com/brainblog/internal/database"
	"github.com/brainblog/internal/models"
	"github.com/go-redis/redis/v8"
)

// ArticleRepository defines the interface for article data operations
type ArticleRepository interface {
	Create(ctx context.Context, article *models.Article) error
	// Update overwrites the editable fields; ID and CreatedAt are never changed.
	// Returns models.ErrNotFound when the article does not exist.
	Update(ctx context.Context, article *models.Article) error
	// Delete returns models.ErrNotFound when the article does not exist
	Delete(ctx context.Context, id string) error
	// GetByID returns nil, nil when the article does not exist
	GetByID(ctx context.Context, id string) (*models.Article, error)
	// List returns up to limit articles, newest first; limit <= 0 means all
	List(ctx context.Context, limit int) ([]*models.Article, error)
	Count(ctx context.Context) (int, error)
	StreamAll(ctx context.Context, callback func(*models.Article) error) error
}

// BlobDeletionRepository defines the interface for the blob cleanup queue
type BlobDeletionRepository interface {
	Enqueue(ctx context.Context, deletion *models.BlobDeletion) error
	GetPending(ctx context.Context, limit int) ([]*models.BlobDeletion, error)
	// MarkAsProcessing claims a pending deletion; false when another worker got it first
	MarkAsProcessing(ctx context.Context, id string) (bool, error)
	Update(ctx context.Context, deletion *models.BlobDeletion) error
	// RequeueStale moves deletions claimed before the cutoff back to pending
	// and returns how many were moved
	RequeueStale(ctx context.Context, before time.Time) (int, error)
	CountPending(ctx context.Context) (int, error)
}

// Repositories holds all repository interfaces
type Repositories struct {
	Article      ArticleRepository
	BlobDeletion BlobDeletionRepository
}

// New creates PostgreSQL-backed repositories
func New(db *database.DB) *Repositories {
	return &Repositories{
		Article:      NewArticleRepo(db),
		BlobDeletion: NewBlobDeletionRepo(db),
	}
}

// NewRedis creates Redis-backed repositories
func NewRedis(client *redis.Client) *Repositories {
	return &Repositories{
		Article:      NewRedisArticleRepo(client),
		BlobDeletion: NewRedisBlobDeletionRepo(client),
	}
}
