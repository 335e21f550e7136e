package mocks

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brainblog/internal/blobstore"
	"github.com/brainblog/internal/models"
	"github.com/brainblog/internal/repository"
)

// MockArticleRepository is an in-memory ArticleRepository
type MockArticleRepository struct {
	mu          sync.Mutex
	Articles    map[string]*models.Article
	CreateError error
	UpdateError error
	DeleteError error
	ListError   error
	ListLimits  []int
}

// Verify interface compliance
var _ repository.ArticleRepository = (*MockArticleRepository)(nil)

func NewMockArticleRepository() *MockArticleRepository {
	return &MockArticleRepository{
		Articles: make(map[string]*models.Article),
	}
}

func (m *MockArticleRepository) Create(ctx context.Context, article *models.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return m.CreateError
	}
	stored := *article
	m.Articles[article.ID] = &stored
	return nil
}

func (m *MockArticleRepository) Update(ctx context.Context, article *models.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateError != nil {
		return m.UpdateError
	}
	existing, ok := m.Articles[article.ID]
	if !ok {
		return models.ErrNotFound
	}
	stored := *article
	stored.CreatedAt = existing.CreatedAt
	m.Articles[article.ID] = &stored
	return nil
}

func (m *MockArticleRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteError != nil {
		return m.DeleteError
	}
	if _, ok := m.Articles[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.Articles, id)
	return nil
}

func (m *MockArticleRepository) GetByID(ctx context.Context, id string) (*models.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	article, ok := m.Articles[id]
	if !ok {
		return nil, nil
	}
	copied := *article
	return &copied, nil
}

func (m *MockArticleRepository) List(ctx context.Context, limit int) ([]*models.Article, error) {
	m.mu.Lock()
	m.ListLimits = append(m.ListLimits, limit)
	m.mu.Unlock()

	if m.ListError != nil {
		return nil, m.ListError
	}

	all := m.sorted()
	// Newest first
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *MockArticleRepository) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Articles), nil
}

func (m *MockArticleRepository) StreamAll(ctx context.Context, callback func(*models.Article) error) error {
	for _, a := range m.sorted() {
		if err := callback(a); err != nil {
			return err
		}
	}
	return nil
}

// sorted returns copies ordered by CreatedAt then ID
func (m *MockArticleRepository) sorted() []*models.Article {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.Article, 0, len(m.Articles))
	for _, a := range m.Articles {
		copied := *a
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MockBlobDeletionRepository is an in-memory BlobDeletionRepository
type MockBlobDeletionRepository struct {
	mu           sync.Mutex
	Deletions    map[string]*models.BlobDeletion
	EnqueueError error
	Claimed      []string
	// OnClaim runs after a successful claim, before the worker starts
	OnClaim func(id string)
}

// Verify interface compliance
var _ repository.BlobDeletionRepository = (*MockBlobDeletionRepository)(nil)

func NewMockBlobDeletionRepository() *MockBlobDeletionRepository {
	return &MockBlobDeletionRepository{
		Deletions: make(map[string]*models.BlobDeletion),
	}
}

func (m *MockBlobDeletionRepository) Enqueue(ctx context.Context, deletion *models.BlobDeletion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EnqueueError != nil {
		return m.EnqueueError
	}
	stored := *deletion
	m.Deletions[deletion.ID] = &stored
	return nil
}

func (m *MockBlobDeletionRepository) GetPending(ctx context.Context, limit int) ([]*models.BlobDeletion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []*models.BlobDeletion
	for _, d := range m.Deletions {
		if d.Status == models.BlobDeletionPending {
			copied := *d
			pending = append(pending, &copied)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (m *MockBlobDeletionRepository) MarkAsProcessing(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.Deletions[id]
	if !ok || d.Status != models.BlobDeletionPending {
		return false, nil
	}
	d.Status = models.BlobDeletionProcessing
	d.UpdatedAt = time.Now().UTC()
	m.Claimed = append(m.Claimed, id)
	if m.OnClaim != nil {
		m.OnClaim(id)
	}
	return true, nil
}

func (m *MockBlobDeletionRepository) Update(ctx context.Context, deletion *models.BlobDeletion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if deletion.Status == models.BlobDeletionDone {
		delete(m.Deletions, deletion.ID)
		return nil
	}
	stored := *deletion
	m.Deletions[deletion.ID] = &stored
	return nil
}

func (m *MockBlobDeletionRepository) RequeueStale(ctx context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	requeued := 0
	for _, d := range m.Deletions {
		if d.Status == models.BlobDeletionProcessing && d.UpdatedAt.Before(before) {
			d.Status = models.BlobDeletionPending
			d.UpdatedAt = time.Now().UTC()
			requeued++
		}
	}
	return requeued, nil
}

func (m *MockBlobDeletionRepository) CountPending(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, d := range m.Deletions {
		if d.Status == models.BlobDeletionPending || d.Status == models.BlobDeletionProcessing {
			count++
		}
	}
	return count, nil
}

// Get returns a copy of a queued deletion
func (m *MockBlobDeletionRepository) Get(id string) *models.BlobDeletion {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.Deletions[id]
	if !ok {
		return nil
	}
	copied := *d
	return &copied
}

// All returns copies of every queued deletion
func (m *MockBlobDeletionRepository) All() []*models.BlobDeletion {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.BlobDeletion, 0, len(m.Deletions))
	for _, d := range m.Deletions {
		copied := *d
		out = append(out, &copied)
	}
	return out
}

// MockBlobStore is an in-memory blobstore.Store
type MockBlobStore struct {
	mu          sync.Mutex
	Blobs       map[string][]byte
	UploadError error
	// DeleteErrors are returned by Delete, in order, before it succeeds
	DeleteErrors []error
	Deleted      []string
	seq          int
}

// Verify interface compliance
var _ blobstore.Store = (*MockBlobStore)(nil)

func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{
		Blobs: make(map[string][]byte),
	}
}

func (m *MockBlobStore) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UploadError != nil {
		return "", m.UploadError
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.seq++
	ref := fmt.Sprintf("/files/%d-%s", m.seq, strings.ReplaceAll(name, " ", "_"))
	m.Blobs[ref] = data
	return ref, nil
}

func (m *MockBlobStore) Delete(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.DeleteErrors) > 0 {
		err := m.DeleteErrors[0]
		m.DeleteErrors = m.DeleteErrors[1:]
		if err != nil {
			return err
		}
	}
	if _, ok := m.Blobs[ref]; !ok {
		return blobstore.ErrNotFound
	}
	delete(m.Blobs, ref)
	m.Deleted = append(m.Deleted, ref)
	return nil
}

// Has reports whether ref is still stored
func (m *MockBlobStore) Has(ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Blobs[ref]
	return ok
}
