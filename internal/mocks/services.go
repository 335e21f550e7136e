package mocks

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/brainblog/internal/articleview"
	"github.com/brainblog/internal/models"
	"github.com/brainblog/internal/service"
)

// MockArticleService is a mock implementation of ArticleService
type MockArticleService struct {
	ListFunc   func(ctx context.Context, search string, sort articleview.SortKey) ([]*models.Article, error)
	GetFunc    func(ctx context.Context, id string) (*models.ArticleDetail, error)
	CreateFunc func(ctx context.Context, input *models.ArticleInput, upload *service.Upload) (*models.Article, error)
	UpdateFunc func(ctx context.Context, id string, input *models.ArticleInput, upload *service.Upload) (*models.Article, error)
	DeleteFunc func(ctx context.Context, id string) error
	Articles   []*models.Article
	// Recorded calls
	ListCalls []articleview.SortKey
	Uploads   []*service.Upload
	Deleted   []string
}

// Verify interface compliance
var _ service.ArticleService = (*MockArticleService)(nil)

func NewMockArticleService() *MockArticleService {
	return &MockArticleService{
		Articles: make([]*models.Article, 0),
	}
}

func (m *MockArticleService) List(ctx context.Context, search string, sort articleview.SortKey) ([]*models.Article, error) {
	m.ListCalls = append(m.ListCalls, sort)
	if m.ListFunc != nil {
		return m.ListFunc(ctx, search, sort)
	}
	return articleview.FilterAndSort(m.Articles, search, sort)
}

func (m *MockArticleService) Get(ctx context.Context, id string) (*models.ArticleDetail, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	for _, a := range m.Articles {
		if a.ID == id {
			return &models.ArticleDetail{
				Article:    *a,
				Attachment: models.AttachmentView{Kind: "none"},
				Segments:   []models.SegmentView{},
			}, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MockArticleService) Create(ctx context.Context, input *models.ArticleInput, upload *service.Upload) (*models.Article, error) {
	m.Uploads = append(m.Uploads, upload)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, input, upload)
	}
	article := &models.Article{
		ID:        "test-article-id",
		Title:     input.Title,
		Theme:     input.Theme,
		Content:   input.Content,
		CreatedAt: time.Now().UTC(),
	}
	if upload != nil {
		article.File = "/files/1-" + upload.Name
		article.FileType = upload.MimeType
	}
	m.Articles = append(m.Articles, article)
	return article, nil
}

func (m *MockArticleService) Update(ctx context.Context, id string, input *models.ArticleInput, upload *service.Upload) (*models.Article, error) {
	m.Uploads = append(m.Uploads, upload)
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, input, upload)
	}
	for _, a := range m.Articles {
		if a.ID == id {
			a.Title = input.Title
			a.Theme = input.Theme
			a.Content = input.Content
			return a, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MockArticleService) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	for i, a := range m.Articles {
		if a.ID == id {
			m.Articles = append(m.Articles[:i], m.Articles[i+1:]...)
			m.Deleted = append(m.Deleted, id)
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *MockArticleService) Count(ctx context.Context) (int, error) {
	return len(m.Articles), nil
}

func (m *MockArticleService) WriteHighlightCSS(w io.Writer) error {
	_, err := io.WriteString(w, ".chroma { }\n")
	return err
}

// MockExportService is a mock implementation of ExportService
type MockExportService struct {
	StreamArticlesFunc func(ctx context.Context, w http.ResponseWriter, format string) error
	Count              int
}

// Verify interface compliance
var _ service.ExportService = (*MockExportService)(nil)

func NewMockExportService() *MockExportService {
	return &MockExportService{}
}

func (m *MockExportService) StreamArticles(ctx context.Context, w http.ResponseWriter, format string) error {
	if m.StreamArticlesFunc != nil {
		return m.StreamArticlesFunc(ctx, w, format)
	}
	return nil
}

func (m *MockExportService) GetCount(ctx context.Context) (int, error) {
	return m.Count, nil
}

// MockFeedService is a mock implementation of FeedService
type MockFeedService struct {
	WriteRSSFunc func(ctx context.Context, w io.Writer) error
}

// Verify interface compliance
var _ service.FeedService = (*MockFeedService)(nil)

func NewMockFeedService() *MockFeedService {
	return &MockFeedService{}
}

func (m *MockFeedService) WriteRSS(ctx context.Context, w io.Writer) error {
	if m.WriteRSSFunc != nil {
		return m.WriteRSSFunc(ctx, w)
	}
	_, err := io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel></channel></rss>`)
	return err
}

// MockCleanupService is a mock implementation of CleanupService
type MockCleanupService struct {
	Released []string
	Pending  int
	Started  bool
	Stopped  bool
}

// Verify interface compliance
var _ service.CleanupService = (*MockCleanupService)(nil)

func NewMockCleanupService() *MockCleanupService {
	return &MockCleanupService{}
}

func (m *MockCleanupService) StartProcessor(ctx context.Context) {
	m.Started = true
}

func (m *MockCleanupService) StopProcessor() {
	m.Stopped = true
}

func (m *MockCleanupService) Sweep(ctx context.Context) (int, error) {
	return 0, nil
}

func (m *MockCleanupService) Reclaim(ctx context.Context) (int, error) {
	return 0, nil
}

func (m *MockCleanupService) Release(ctx context.Context, ref string) {
	m.Released = append(m.Released, ref)
}

func (m *MockCleanupService) CountPending(ctx context.Context) (int, error) {
	return m.Pending, nil
}
