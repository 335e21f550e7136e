package database

import (
	"context"
	"fmt"
	"time"

	"github.com/brainblog/internal/config"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// NewRedis creates a Redis client and verifies the connection
func NewRedis(cfg *config.RedisConfig, log zerolog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	redisLog := log.With().Str("component", "redis").Logger()
	redisLog.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("Redis connection established")

	return client, nil
}
