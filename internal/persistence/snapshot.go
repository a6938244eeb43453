package persistence

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/eternalApril/actorhost/internal/config"
	"github.com/eternalApril/actorhost/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// snapshotMagic prefixes every snapshot payload, whatever the backend
const snapshotMagic = "ACTRDB01"

// ErrBadSnapshot means the payload does not start with snapshotMagic
var ErrBadSnapshot = errors.New("snapshot: invalid header")

// Snapshotter dumps and restores the activation table
type Snapshotter interface {
	Save(db storage.Registry) error
	Load(db storage.Registry) error
}

// encodeSnapshot writes the header followed by every activation
func encodeSnapshot(w io.Writer, db storage.Registry) error {
	if _, err := io.WriteString(w, snapshotMagic); err != nil {
		return err
	}
	return db.Snapshot(w)
}

// decodeSnapshot checks the header and restores the activations into db
func decodeSnapshot(r io.Reader, db storage.Registry) error {
	br := bufio.NewReader(r)

	header := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(br, header); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	if string(header) != snapshotMagic {
		return fmt.Errorf("%w: %q", ErrBadSnapshot, header)
	}

	return db.Restore(br)
}

// OpenSnapshotter builds the backend named in cfg.Backend. The returned func releases
// the resources the backend holds
func OpenSnapshotter(cfg config.SnapshotConfig, logger *zap.Logger) (Snapshotter, func() error, error) {
	switch cfg.Backend {
	case "", "file":
		return NewRDB(cfg.Filename, logger), func() error { return nil }, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			client.Close() //nolint:errcheck
			return nil, nil, fmt.Errorf("snapshot: redis %s: %w", cfg.Redis.Addr, err)
		}

		return NewRedisSnapshot(client, cfg.Redis.Key, logger), client.Close, nil
	}

	return nil, nil, fmt.Errorf("snapshot: unknown backend %q", cfg.Backend)
}
