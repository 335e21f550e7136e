package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/brainblog/internal/models"
	"github.com/go-redis/redis/v8"
)

const (
	articleKeyPrefix = "article:"
	articleIndexKey  = "articles:by_created"

	redisStreamChunk = 100
)

// redisArticleRepo stores articles as JSON documents, indexed by creation time
type redisArticleRepo struct {
	client *redis.Client
}

// NewRedisArticleRepo creates a Redis-backed article repository
func NewRedisArticleRepo(client *redis.Client) ArticleRepository {
	return &redisArticleRepo{client: client}
}

func articleKey(id string) string {
	return articleKeyPrefix + id
}

// Create stores a new article document and indexes it
func (r *redisArticleRepo) Create(ctx context.Context, article *models.Article) error {
	data, err := json.Marshal(article)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, articleKey(article.ID), data, 0)
		pipe.ZAdd(ctx, articleIndexKey, &redis.Z{
			Score:  float64(article.CreatedAt.UnixMilli()),
			Member: article.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store article: %w", err)
	}
	return nil
}

// Update overwrites an existing document, keeping its creation time
func (r *redisArticleRepo) Update(ctx context.Context, article *models.Article) error {
	existing, err := r.GetByID(ctx, article.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return models.ErrNotFound
	}

	updated := *article
	updated.CreatedAt = existing.CreatedAt

	data, err := json.Marshal(&updated)
	if err != nil {
		return err
	}

	ok, err := r.client.SetXX(ctx, articleKey(article.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to update article: %w", err)
	}
	if !ok {
		// Deleted between the read and the write
		return models.ErrNotFound
	}
	return nil
}

// Delete removes the document and its index entry
func (r *redisArticleRepo) Delete(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, articleKey(id))
		pipe.ZRem(ctx, articleIndexKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}
	if del.Val() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// GetByID retrieves an article document
func (r *redisArticleRepo) GetByID(ctx context.Context, id string) (*models.Article, error) {
	data, err := r.client.Get(ctx, articleKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	var article models.Article
	if err := json.Unmarshal(data, &article); err != nil {
		return nil, fmt.Errorf("failed to decode article %s: %w", id, err)
	}
	return &article, nil
}

// List returns the newest articles using the creation-time index
func (r *redisArticleRepo) List(ctx context.Context, limit int) ([]*models.Article, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ids, err := r.client.ZRevRange(ctx, articleIndexKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read article index: %w", err)
	}
	return r.fetch(ctx, ids)
}

// Count returns the number of indexed articles
func (r *redisArticleRepo) Count(ctx context.Context) (int, error) {
	n, err := r.client.ZCard(ctx, articleIndexKey).Result()
	return int(n), err
}

// StreamAll walks the index oldest first in chunks
func (r *redisArticleRepo) StreamAll(ctx context.Context, callback func(*models.Article) error) error {
	for start := int64(0); ; start += redisStreamChunk {
		ids, err := r.client.ZRange(ctx, articleIndexKey, start, start+redisStreamChunk-1).Result()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		articles, err := r.fetch(ctx, ids)
		if err != nil {
			return err
		}
		for _, article := range articles {
			if err := callback(article); err != nil {
				return err
			}
		}

		if len(ids) < redisStreamChunk {
			return nil
		}
	}
}

// fetch loads documents in one pipeline, preserving order and skipping
// index entries whose document is gone
func (r *redisArticleRepo) fetch(ctx context.Context, ids []string) ([]*models.Article, error) {
	articles := make([]*models.Article, 0, len(ids))
	if len(ids) == 0 {
		return articles, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, articleKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}

		var article models.Article
		if err := json.Unmarshal(data, &article); err != nil {
			return nil, err
		}
		articles = append(articles, &article)
	}
	return articles, nil
}
