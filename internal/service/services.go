package service

import (
	"context"
	"io"
	"net/http"

	"github.com/brainblog/internal/articleview"
	"github.com/brainblog/internal/blobstore"
	"github.com/brainblog/internal/config"
	"github.com/brainblog/internal/models"
	"github.com/brainblog/internal/repository"
	"github.com/rs/zerolog"
)

// Upload is an attachment received with a create or edit
type Upload struct {
	Name     string
	MimeType string
	Size     int64
	Reader   io.Reader
}

// ArticleService defines the interface for article operations
type ArticleService interface {
	// List filters and sorts the newest articles
	List(ctx context.Context, search string, sort articleview.SortKey) ([]*models.Article, error)
	// Get returns models.ErrNotFound when the article does not exist
	Get(ctx context.Context, id string) (*models.ArticleDetail, error)
	Create(ctx context.Context, input *models.ArticleInput, upload *Upload) (*models.Article, error)
	Update(ctx context.Context, id string, input *models.ArticleInput, upload *Upload) (*models.Article, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	WriteHighlightCSS(w io.Writer) error
}

// ExportService defines the interface for export operations
type ExportService interface {
	StreamArticles(ctx context.Context, w http.ResponseWriter, format string) error
	GetCount(ctx context.Context) (int, error)
}

// FeedService defines the interface for the syndication feed
type FeedService interface {
	WriteRSS(ctx context.Context, w io.Writer) error
}

// CleanupService defines the interface for blob release and retry
type CleanupService interface {
	StartProcessor(ctx context.Context)
	StopProcessor()
	// Sweep retries one batch of queued deletions and returns how many were released
	Sweep(ctx context.Context) (int, error)
	// Reclaim requeues deletions left in processing past the stale threshold
	Reclaim(ctx context.Context) (int, error)
	// Release deletes a blob, queueing it for retry when the store fails
	Release(ctx context.Context, ref string)
	CountPending(ctx context.Context) (int, error)
}

// Services holds all service interfaces
type Services struct {
	Article ArticleService
	Export  ExportService
	Feed    FeedService
	Cleanup CleanupService
}

// NewServices creates all services
func NewServices(repos *repository.Repositories, blobs blobstore.Store, cfg *config.Config, log zerolog.Logger) *Services {
	cleanupSvc := newCleanupService(repos.BlobDeletion, blobs, &cfg.Cleanup, log)
	articleSvc := newArticleService(repos.Article, blobs, cleanupSvc, cfg, log)

	return &Services{
		Article: articleSvc,
		Export:  newExportService(repos.Article, log),
		Feed:    newFeedService(repos.Article, &cfg.Feed, log),
		Cleanup: cleanupSvc,
	}
}
