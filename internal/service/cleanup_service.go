package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brainblog/internal/blobstore"
	"github.com/brainblog/internal/config"
	"github.com/brainblog/internal/models"
	"github.com/brainblog/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// cleanupService is the concrete implementation of CleanupService
type cleanupService struct {
	repo        repository.BlobDeletionRepository
	blobs       blobstore.Store
	interval    time.Duration
	batchSize   int
	maxAttempts int
	staleAfter  time.Duration
	now         func() time.Time
	log         zerolog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	running     bool
	mu          sync.Mutex
	// Semaphore bounding concurrent blob deletions
	sem chan struct{}
}

// newCleanupService creates a new CleanupService
func newCleanupService(
	repo repository.BlobDeletionRepository,
	blobs blobstore.Store,
	cfg *config.CleanupConfig,
	log zerolog.Logger,
) *cleanupService {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 10 * cfg.Interval
	}

	log.Info().Int("max_workers", workers).Msg("Initializing blob cleanup worker pool")

	return &cleanupService{
		repo:        repo,
		blobs:       blobs,
		interval:    cfg.Interval,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		staleAfter:  staleAfter,
		now:         time.Now,
		log:         log.With().Str("service", "cleanup").Logger(),
		sem:         make(chan struct{}, workers),
	}
}

// StartProcessor sweeps the queue every interval until stopped
func (s *cleanupService) StartProcessor(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	s.log.Info().Dur("interval", s.interval).Msg("Cleanup processor started")

	// Claims left behind by a crashed process
	s.reclaim(s.ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("Cleanup processor stopping")
			return
		case <-ticker.C:
			s.reclaim(s.ctx)
			if _, err := s.Sweep(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error().Err(err).Msg("Cleanup sweep failed")
			}
		}
	}
}

// StopProcessor stops the processor and waits for in-flight deletions
func (s *cleanupService) StopProcessor() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	s.wg.Wait()
	s.running = false
	s.log.Info().Msg("Cleanup processor stopped")
}

// Reclaim returns deletions stuck in processing for longer than the stale
// threshold to the pending queue
func (s *cleanupService) Reclaim(ctx context.Context) (int, error) {
	return s.repo.RequeueStale(ctx, s.now().UTC().Add(-s.staleAfter))
}

func (s *cleanupService) reclaim(ctx context.Context) {
	n, err := s.Reclaim(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.log.Error().Err(err).Msg("Failed to reclaim stale blob deletions")
		}
		return
	}
	if n > 0 {
		s.log.Warn().Int("reclaimed", n).Dur("stale_after", s.staleAfter).Msg("Requeued stale blob deletions")
	}
}

// Sweep claims one batch of pending deletions and waits for them to finish
func (s *cleanupService) Sweep(ctx context.Context) (int, error) {
	deletions, err := s.repo.GetPending(ctx, s.batchSize)
	if err != nil {
		return 0, err
	}

	var (
		wg       sync.WaitGroup
		released atomic.Int64
	)

	for _, deletion := range deletions {
		// Blocks while all workers are busy
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return int(released.Load()), ctx.Err()
		}

		claimed, err := s.repo.MarkAsProcessing(ctx, deletion.ID)
		if err != nil || !claimed {
			<-s.sem
			continue // Another worker already picked it up
		}

		wg.Add(1)
		go func(d *models.BlobDeletion) {
			defer wg.Done()
			defer func() { <-s.sem }()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error().
						Interface("panic", r).
						Str("deletion_id", d.ID).
						Msg("Blob deletion panicked - recovered")
					d.Status = models.BlobDeletionFailed
					s.repo.Update(context.WithoutCancel(ctx), d)
				}
			}()
			if s.process(ctx, d) {
				released.Add(1)
			}
		}(deletion)
	}

	wg.Wait()

	if n := released.Load(); n > 0 {
		s.log.Info().Int64("released", n).Int("batch", len(deletions)).Msg("Cleanup sweep completed")
	}
	return int(released.Load()), nil
}

// process retries one deletion and records the outcome
func (s *cleanupService) process(ctx context.Context, d *models.BlobDeletion) bool {
	// Shutdown began after the claim; hand it back without spending an attempt
	if ctx.Err() != nil {
		d.Status = models.BlobDeletionPending
		d.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(context.WithoutCancel(ctx), d); err != nil {
			s.log.Error().Err(err).Str("deletion_id", d.ID).Msg("Failed to requeue blob deletion")
		}
		return false
	}

	d.Attempts++
	err := s.blobs.Delete(ctx, d.Ref)

	switch {
	case err == nil, errors.Is(err, blobstore.ErrNotFound):
		d.Status = models.BlobDeletionDone
		d.LastError = ""
	case d.Attempts >= s.maxAttempts:
		d.Status = models.BlobDeletionFailed
		d.LastError = err.Error()
		s.log.Error().Err(err).Str("ref", d.Ref).Int("attempts", d.Attempts).Msg("Giving up on blob deletion")
	default:
		d.Status = models.BlobDeletionPending
		d.LastError = err.Error()
		s.log.Warn().Err(err).Str("ref", d.Ref).Int("attempts", d.Attempts).Msg("Blob deletion failed, will retry")
	}
	d.UpdatedAt = s.now().UTC()

	// The outcome must be recorded even when shutdown cancelled the sweep
	if err := s.repo.Update(context.WithoutCancel(ctx), d); err != nil {
		s.log.Error().Err(err).Str("deletion_id", d.ID).Msg("Failed to record blob deletion outcome")
	}

	return d.Status == models.BlobDeletionDone
}

// Release deletes a blob inline; failures other than not-found are queued
func (s *cleanupService) Release(ctx context.Context, ref string) {
	err := s.blobs.Delete(ctx, ref)
	if err == nil {
		return
	}
	if errors.Is(err, blobstore.ErrNotFound) {
		s.log.Warn().Str("ref", ref).Msg("Blob already gone")
		return
	}

	s.log.Error().Err(err).Str("ref", ref).Msg("Blob release failed, queued for cleanup")

	now := s.now().UTC()
	deletion := &models.BlobDeletion{
		ID:        uuid.New().String(),
		Ref:       ref,
		Status:    models.BlobDeletionPending,
		LastError: err.Error(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Enqueue(context.WithoutCancel(ctx), deletion); err != nil {
		s.log.Error().Err(err).Str("ref", ref).Msg("Failed to queue blob deletion, blob is orphaned")
	}
}

// CountPending returns queued and in-flight deletions
func (s *cleanupService) CountPending(ctx context.Context) (int, error) {
	return s.repo.CountPending(ctx)
}
