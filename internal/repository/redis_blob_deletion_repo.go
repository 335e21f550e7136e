package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/brainblog/internal/models"
	"github.com/go-redis/redis/v8"
)

const (
	blobDeletionKeyPrefix  = "blob_deletion:"
	blobDeletionPendingKey = "blob_deletions:pending"
	blobDeletionActiveKey  = "blob_deletions:processing"
)

// redisBlobDeletionRepo keeps the cleanup queue in a sorted set of pending ids
type redisBlobDeletionRepo struct {
	client *redis.Client
}

// NewRedisBlobDeletionRepo creates a Redis-backed blob deletion repository
func NewRedisBlobDeletionRepo(client *redis.Client) BlobDeletionRepository {
	return &redisBlobDeletionRepo{client: client}
}

func blobDeletionKey(id string) string {
	return blobDeletionKeyPrefix + id
}

// Enqueue stores a deletion and queues it
func (r *redisBlobDeletionRepo) Enqueue(ctx context.Context, d *models.BlobDeletion) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, blobDeletionKey(d.ID), data, 0)
		pipe.ZAdd(ctx, blobDeletionPendingKey, &redis.Z{
			Score:  float64(d.CreatedAt.UnixMilli()),
			Member: d.ID,
		})
		return nil
	})
	return err
}

// GetPending returns the oldest queued deletions
func (r *redisBlobDeletionRepo) GetPending(ctx context.Context, limit int) ([]*models.BlobDeletion, error) {
	ids, err := r.client.ZRange(ctx, blobDeletionPendingKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	var deletions []*models.BlobDeletion
	for _, id := range ids {
		d, err := r.get(ctx, id)
		if err != nil {
			return nil, err
		}
		if d != nil {
			deletions = append(deletions, d)
		}
	}
	return deletions, nil
}

// claimScript moves an id from the pending set to the processing set and
// stores the claimed document in one step
var claimScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 1 then
	redis.call('SADD', KEYS[2], ARGV[1])
	redis.call('SET', KEYS[3], ARGV[2])
	return 1
end
return 0
`)

// requeueScript moves an id from the processing set back to pending unless
// a worker already recorded an outcome for it
var requeueScript = redis.NewScript(`
if redis.call('SREM', KEYS[1], ARGV[1]) == 1 then
	redis.call('SET', KEYS[3], ARGV[3])
	redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
	return 1
end
return 0
`)

// MarkAsProcessing claims a deletion. Only the caller whose ZREM succeeds
// gets it, and the id is never left outside both sets.
func (r *redisBlobDeletionRepo) MarkAsProcessing(ctx context.Context, id string) (bool, error) {
	d, err := r.get(ctx, id)
	if err != nil || d == nil {
		return false, err
	}

	d.Status = models.BlobDeletionProcessing
	d.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(d)
	if err != nil {
		return false, err
	}

	claimed, err := claimScript.Run(ctx, r.client,
		[]string{blobDeletionPendingKey, blobDeletionActiveKey, blobDeletionKey(id)},
		id, data,
	).Int()
	if err != nil {
		return false, err
	}
	return claimed == 1, nil
}

// RequeueStale walks the processing set and requeues claims older than before
func (r *redisBlobDeletionRepo) RequeueStale(ctx context.Context, before time.Time) (int, error) {
	ids, err := r.client.SMembers(ctx, blobDeletionActiveKey).Result()
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, id := range ids {
		d, err := r.get(ctx, id)
		if err != nil {
			return requeued, err
		}
		if d == nil {
			// Document gone, drop the dangling id
			if err := r.client.SRem(ctx, blobDeletionActiveKey, id).Err(); err != nil {
				return requeued, err
			}
			continue
		}
		if !d.UpdatedAt.Before(before) {
			continue
		}

		d.Status = models.BlobDeletionPending
		d.UpdatedAt = time.Now().UTC()
		data, err := json.Marshal(d)
		if err != nil {
			return requeued, err
		}

		moved, err := requeueScript.Run(ctx, r.client,
			[]string{blobDeletionActiveKey, blobDeletionPendingKey, blobDeletionKey(id)},
			id, d.CreatedAt.UnixMilli(), data,
		).Int()
		if err != nil {
			return requeued, err
		}
		requeued += moved
	}
	return requeued, nil
}

// Update stores the new state; done deletions are dropped, pending ones requeued
func (r *redisBlobDeletionRepo) Update(ctx context.Context, d *models.BlobDeletion) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, blobDeletionActiveKey, d.ID)

		switch d.Status {
		case models.BlobDeletionDone:
			pipe.Del(ctx, blobDeletionKey(d.ID))
			pipe.ZRem(ctx, blobDeletionPendingKey, d.ID)
		case models.BlobDeletionPending:
			pipe.Set(ctx, blobDeletionKey(d.ID), data, 0)
			pipe.ZAdd(ctx, blobDeletionPendingKey, &redis.Z{
				Score:  float64(d.CreatedAt.UnixMilli()),
				Member: d.ID,
			})
		case models.BlobDeletionProcessing:
			pipe.Set(ctx, blobDeletionKey(d.ID), data, 0)
			pipe.SAdd(ctx, blobDeletionActiveKey, d.ID)
		default:
			pipe.Set(ctx, blobDeletionKey(d.ID), data, 0)
			pipe.ZRem(ctx, blobDeletionPendingKey, d.ID)
		}
		return nil
	})
	return err
}

// CountPending returns queued plus in-flight deletions
func (r *redisBlobDeletionRepo) CountPending(ctx context.Context) (int, error) {
	pipe := r.client.Pipeline()
	pending := pipe.ZCard(ctx, blobDeletionPendingKey)
	active := pipe.SCard(ctx, blobDeletionActiveKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(pending.Val() + active.Val()), nil
}

func (r *redisBlobDeletionRepo) get(ctx context.Context, id string) (*models.BlobDeletion, error) {
	data, err := r.client.Get(ctx, blobDeletionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var d models.BlobDeletion
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to decode blob deletion %s: %w", id, err)
	}
	return &d, nil
}
