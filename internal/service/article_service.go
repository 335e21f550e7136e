package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/brainblog/internal/articleview"
	"github.com/brainblog/internal/attachment"
	"github.com/brainblog/internal/blobstore"
	"github.com/brainblog/internal/config"
	"github.com/brainblog/internal/content"
	"github.com/brainblog/internal/models"
	"github.com/brainblog/internal/repository"
	"github.com/brainblog/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
)

// articleService is the concrete implementation of ArticleService
type articleService struct {
	repo        repository.ArticleRepository
	blobs       blobstore.Store
	cleanup     CleanupService
	validator   *validation.Validator
	view        *articleview.View
	highlighter *content.Highlighter
	listLimit   int
	now         func() time.Time
	log         zerolog.Logger
}

// newArticleService creates a new ArticleService
func newArticleService(
	repo repository.ArticleRepository,
	blobs blobstore.Store,
	cleanup CleanupService,
	cfg *config.Config,
	log zerolog.Logger,
) *articleService {
	log = log.With().Str("service", "article").Logger()

	lang, err := language.Parse(cfg.Blog.Locale)
	if err != nil {
		log.Warn().Err(err).Str("locale", cfg.Blog.Locale).Msg("Unknown locale, using default collation")
		lang = articleview.DefaultLanguage
	}

	return &articleService{
		repo:        repo,
		blobs:       blobs,
		cleanup:     cleanup,
		validator:   validation.NewValidator(cfg.Blob.MaxUploadSize),
		view:        articleview.New(lang),
		highlighter: content.NewHighlighter(cfg.Blog.HighlightStyle),
		listLimit:   cfg.Blog.ListLimit,
		now:         time.Now,
		log:         log,
	}
}

// List loads the newest articles and applies the collection view
func (s *articleService) List(ctx context.Context, search string, sort articleview.SortKey) ([]*models.Article, error) {
	if !sort.Valid() {
		return nil, fmt.Errorf("unknown sort key %q: %w", sort, models.ErrInvalidArgument)
	}

	articles, err := s.repo.List(ctx, s.listLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}

	return s.view.FilterAndSort(articles, search, sort)
}

// Get returns an article with its attachment presentation and rendered body
func (s *articleService) Get(ctx context.Context, id string) (*models.ArticleDetail, error) {
	article, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	variant, err := attachment.ClassifyArticle(article)
	if err != nil {
		return nil, fmt.Errorf("article %s has an inconsistent attachment: %w", id, err)
	}

	segments, err := s.highlighter.Render(article.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to render article %s: %w", id, err)
	}

	return &models.ArticleDetail{
		Article:    *article,
		Attachment: attachment.Describe(variant),
		Segments:   segments,
	}, nil
}

// Create stores the attachment first, then the record
func (s *articleService) Create(ctx context.Context, input *models.ArticleInput, upload *Upload) (*models.Article, error) {
	if err := s.validate(input, upload); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	article := &models.Article{
		ID:        uuid.New().String(),
		Title:     strings.TrimSpace(input.Title),
		Theme:     strings.TrimSpace(input.Theme),
		Content:   content.NormalizeNewlines(input.Content),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if upload != nil {
		ref, err := s.blobs.Upload(ctx, upload.Name, upload.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to store attachment: %w", err)
		}
		article.File = ref
		article.FileType = upload.MimeType
	}

	if err := s.checkRecord(article); err != nil {
		if article.HasAttachment() {
			s.cleanup.Release(ctx, article.File)
		}
		return nil, err
	}

	if err := s.repo.Create(ctx, article); err != nil {
		if article.HasAttachment() {
			s.cleanup.Release(ctx, article.File)
		}
		return nil, fmt.Errorf("failed to create article: %w", err)
	}

	s.log.Info().
		Str("article_id", article.ID).
		Str("file_type", article.FileType).
		Msg("Article created")

	return article, nil
}

// Update edits an article; an upload replaces the attachment, RemoveFile drops it
func (s *articleService) Update(ctx context.Context, id string, input *models.ArticleInput, upload *Upload) (*models.Article, error) {
	if err := s.validate(input, upload); err != nil {
		return nil, err
	}
	if upload != nil && input.RemoveFile {
		return nil, validation.Errors{{
			Field:   "remove_file",
			Message: "cannot remove and replace the file in the same edit",
		}}
	}

	existing, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.Title = strings.TrimSpace(input.Title)
	updated.Theme = strings.TrimSpace(input.Theme)
	updated.Content = content.NormalizeNewlines(input.Content)
	updated.UpdatedAt = s.now().UTC()

	var released string
	switch {
	case upload != nil:
		ref, err := s.blobs.Upload(ctx, upload.Name, upload.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to store attachment: %w", err)
		}
		updated.File = ref
		updated.FileType = upload.MimeType
		released = existing.File
	case input.RemoveFile:
		updated.File = ""
		updated.FileType = ""
		released = existing.File
	}

	if err := s.checkRecord(&updated); err != nil {
		if upload != nil {
			s.cleanup.Release(ctx, updated.File)
		}
		return nil, err
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		if upload != nil {
			s.cleanup.Release(ctx, updated.File)
		}
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("article %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update article: %w", err)
	}

	if released != "" {
		s.cleanup.Release(ctx, released)
	}

	s.log.Info().
		Str("article_id", id).
		Bool("attachment_replaced", upload != nil).
		Bool("attachment_removed", input.RemoveFile && released != "").
		Msg("Article updated")

	return &updated, nil
}

// Delete releases the attachment, then removes the record
func (s *articleService) Delete(ctx context.Context, id string) error {
	existing, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	if existing.HasAttachment() {
		s.cleanup.Release(ctx, existing.File)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("article %s: %w", id, models.ErrNotFound)
		}
		return fmt.Errorf("failed to delete article: %w", err)
	}

	s.log.Info().Str("article_id", id).Msg("Article deleted")
	return nil
}

// Count returns the number of stored articles
func (s *articleService) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// WriteHighlightCSS writes the stylesheet for rendered code blocks
func (s *articleService) WriteHighlightCSS(w io.Writer) error {
	return s.highlighter.WriteCSS(w)
}

func (s *articleService) find(ctx context.Context, id string) (*models.Article, error) {
	article, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	if article == nil {
		return nil, fmt.Errorf("article %s: %w", id, models.ErrNotFound)
	}
	return article, nil
}

// checkRecord enforces the stored-record invariants, such as file and file_type being set together
func (s *articleService) checkRecord(article *models.Article) error {
	if errs := s.validator.ValidateArticle(article); len(errs) > 0 {
		return fmt.Errorf("refusing to store inconsistent article: %s", validation.Errors(errs).Error())
	}
	return nil
}

func (s *articleService) validate(input *models.ArticleInput, upload *Upload) error {
	errs := validation.Errors(s.validator.ValidateArticleInput(input))
	if upload != nil {
		errs = append(errs, s.validator.ValidateUpload(&validation.Upload{
			Name:     upload.Name,
			MimeType: upload.MimeType,
			Size:     upload.Size,
		})...)
	}
	return errs.Err()
}
