package persistence

import (
	"bufio"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/eternalApril/actorhost/internal/storage"
	"go.uber.org/zap"
)

// RDB keeps snapshots of the activation table in a local file
type RDB struct {
	filename string
	mu       sync.Mutex // SAVE, BGSAVE and the auto-save share the temp file
	logger   *zap.Logger
}

func NewRDB(filename string, logger *zap.Logger) *RDB {
	return &RDB{
		filename: filename,
		logger:   logger,
	}
}

// Save performs an atomic save operation: write a temp file, fsync, rename
func (r *RDB) Save(db storage.Registry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	tmpFile := r.filename + ".tmp"

	f, err := os.Create(tmpFile)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	writer := bufio.NewWriterSize(f, 4*1024*1024)

	if err := encodeSnapshot(writer, db); err != nil {
		return err
	}

	if err := writer.Flush(); err != nil {
		return err
	}

	if err := f.Sync(); err != nil {
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpFile, r.filename); err != nil {
		return err
	}

	r.logger.Info("RDB saved successfully",
		zap.String("file", r.filename),
		zap.Int("actors", db.Len()),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Load restores the file into db. A missing file is not an error
func (r *RDB) Load(db storage.Registry) error {
	f, err := os.Open(r.filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close() //nolint:errcheck

	start := time.Now()
	if err := decodeSnapshot(f, db); err != nil {
		if errors.Is(err, ErrBadSnapshot) {
			r.logger.Warn("Invalid RDB header, assuming empty or incompatible", zap.Error(err))
			return nil
		}
		return err
	}

	r.logger.Info("RDB loaded", zap.Int("actors", db.Len()), zap.Duration("duration", time.Since(start)))
	return nil
}
