package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/brainblog/internal/models"
	"github.com/brainblog/internal/repository"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// redisRepos connects to REDIS_ADDR and flushes a dedicated DB, or skips
func redisRepos(t *testing.T) *repository.Repositories {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping redis integration test")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx := context.Background()
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("failed to flush redis DB: %v", err)
	}
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return repository.NewRedis(client)
}

func newArticle(title string, createdAt time.Time) *models.Article {
	return &models.Article{
		ID:        uuid.New().String(),
		Title:     title,
		Theme:     "test",
		Content:   "body",
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestRedisArticleRepo_CRUD(t *testing.T) {
	repos := redisRepos(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a := newArticle("first", base)
	b := newArticle("second", base.Add(time.Hour))
	for _, article := range []*models.Article{a, b} {
		if err := repos.Article.Create(ctx, article); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	// Newest first
	list, err := repos.Article.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != b.ID {
		t.Fatalf("Expected [second, first], got %+v", list)
	}

	limited, _ := repos.Article.List(ctx, 1)
	if len(limited) != 1 {
		t.Errorf("Expected 1 article with limit, got %d", len(limited))
	}

	// Update keeps CreatedAt even if the caller sends another one
	edited := *a
	edited.Title = "first, edited"
	edited.File = "/files/1-a.png"
	edited.FileType = "image/png"
	edited.CreatedAt = base.Add(48 * time.Hour)
	if err := repos.Article.Update(ctx, &edited); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := repos.Article.GetByID(ctx, a.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Title != "first, edited" || got.FileType != "image/png" {
		t.Errorf("Update not stored: %+v", got)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt changed to %s", got.CreatedAt)
	}

	count, _ := repos.Article.Count(ctx)
	if count != 2 {
		t.Errorf("Expected 2, got %d", count)
	}

	if err := repos.Article.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := repos.Article.Delete(ctx, a.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
	if missing, _ := repos.Article.GetByID(ctx, a.ID); missing != nil {
		t.Error("Deleted article should not be found")
	}
	if err := repos.Article.Update(ctx, a); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound updating deleted article, got %v", err)
	}
}

func TestRedisArticleRepo_StreamAll(t *testing.T) {
	repos := redisRepos(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// More than one chunk
	for i := 0; i < 150; i++ {
		if err := repos.Article.Create(ctx, newArticle("a", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	var last time.Time
	streamed := 0
	err := repos.Article.StreamAll(ctx, func(a *models.Article) error {
		if a.CreatedAt.Before(last) {
			t.Errorf("stream out of order at %d", streamed)
		}
		last = a.CreatedAt
		streamed++
		return nil
	})
	if err != nil {
		t.Fatalf("StreamAll failed: %v", err)
	}
	if streamed != 150 {
		t.Errorf("Expected 150 streamed, got %d", streamed)
	}
}

func TestRedisBlobDeletionRepo_Queue(t *testing.T) {
	repos := redisRepos(t)
	ctx := context.Background()
	now := time.Now().UTC()

	d := &models.BlobDeletion{
		ID:        uuid.New().String(),
		Ref:       "/files/1-a.png",
		Status:    models.BlobDeletionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repos.BlobDeletion.Enqueue(ctx, d); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	pending, err := repos.BlobDeletion.GetPending(ctx, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("Expected 1 pending, got %d (%v)", len(pending), err)
	}

	claimed, err := repos.BlobDeletion.MarkAsProcessing(ctx, d.ID)
	if err != nil || !claimed {
		t.Fatalf("Expected claim, got %v (%v)", claimed, err)
	}
	if again, _ := repos.BlobDeletion.MarkAsProcessing(ctx, d.ID); again {
		t.Error("Deletion should not be claimed twice")
	}

	count, _ := repos.BlobDeletion.CountPending(ctx)
	if count != 1 {
		t.Errorf("Expected in-flight deletion counted, got %d", count)
	}

	// Requeue after a failed attempt
	d.Status = models.BlobDeletionPending
	d.Attempts = 1
	if err := repos.BlobDeletion.Update(ctx, d); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	pending, _ = repos.BlobDeletion.GetPending(ctx, 10)
	if len(pending) != 1 || pending[0].Attempts != 1 {
		t.Fatalf("Expected requeued deletion with 1 attempt, got %+v", pending)
	}

	d.Status = models.BlobDeletionDone
	if err := repos.BlobDeletion.Update(ctx, d); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	count, _ = repos.BlobDeletion.CountPending(ctx)
	if count != 0 {
		t.Errorf("Expected empty queue, got %d", count)
	}
}

func TestRedisBlobDeletionRepo_RequeueStale(t *testing.T) {
	repos := redisRepos(t)
	ctx := context.Background()
	now := time.Now().UTC()

	d := &models.BlobDeletion{
		ID:        uuid.New().String(),
		Ref:       "/files/1-a.png",
		Status:    models.BlobDeletionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repos.BlobDeletion.Enqueue(ctx, d); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if claimed, err := repos.BlobDeletion.MarkAsProcessing(ctx, d.ID); err != nil || !claimed {
		t.Fatalf("Expected claim, got %v (%v)", claimed, err)
	}

	// A claim newer than the cutoff stays in flight
	n, err := repos.BlobDeletion.RequeueStale(ctx, now.Add(-time.Minute))
	if err != nil || n != 0 {
		t.Fatalf("Expected nothing requeued, got %d (%v)", n, err)
	}
	if pending, _ := repos.BlobDeletion.GetPending(ctx, 10); len(pending) != 0 {
		t.Fatalf("Expected empty pending set, got %+v", pending)
	}

	n, err = repos.BlobDeletion.RequeueStale(ctx, time.Now().UTC().Add(time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("Expected 1 requeued, got %d (%v)", n, err)
	}
	pending, _ := repos.BlobDeletion.GetPending(ctx, 10)
	if len(pending) != 1 || pending[0].Status != models.BlobDeletionPending {
		t.Fatalf("Expected requeued deletion, got %+v", pending)
	}
	if count, _ := repos.BlobDeletion.CountPending(ctx); count != 1 {
		t.Errorf("Expected 1 counted once, got %d", count)
	}

	// Claimable again
	if claimed, _ := repos.BlobDeletion.MarkAsProcessing(ctx, d.ID); !claimed {
		t.Error("requeued deletion should be claimable")
	}
}
