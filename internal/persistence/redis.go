package persistence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eternalApril/actorhost/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisTimeout = 5 * time.Second

// RedisSnapshot keeps the snapshot payload under a single redis key,
// so several hosts can share one external store
type RedisSnapshot struct {
	client redis.Cmdable
	key    string
	logger *zap.Logger
}

func NewRedisSnapshot(client redis.Cmdable, key string, logger *zap.Logger) *RedisSnapshot {
	return &RedisSnapshot{
		client: client,
		key:    key,
		logger: logger,
	}
}

// Save replaces the stored payload with the current table
func (r *RedisSnapshot) Save(db storage.Registry) error {
	start := time.Now()

	var buf bytes.Buffer
	if err := encodeSnapshot(&buf, db); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := r.client.Set(ctx, r.key, buf.Bytes(), 0).Err(); err != nil {
		return fmt.Errorf("snapshot: redis set %s: %w", r.key, err)
	}

	r.logger.Info("Redis snapshot saved",
		zap.String("key", r.key),
		zap.Int("bytes", buf.Len()),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Load restores the stored payload into db. A missing key is not an error
func (r *RedisSnapshot) Load(db storage.Registry) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	payload, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("snapshot: redis get %s: %w", r.key, err)
	}

	if err := decodeSnapshot(bytes.NewReader(payload), db); err != nil {
		return err
	}

	r.logger.Info("Redis snapshot loaded", zap.String("key", r.key), zap.Int("actors", db.Len()))
	return nil
}
