package persistence

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrJournalClosed is returned by Write after Close
var ErrJournalClosed = errors.New("aof: journal closed")

type fsyncStrategy int

const (
	fsyncAlways fsyncStrategy = iota + 1
	fsyncEverySec
	fsyncNo
)

// AOF is the append only journal of activation changes
type AOF struct {
	file     *os.File
	writer   *bufio.Writer
	filename string
	strategy fsyncStrategy

	commandsChan chan []byte

	mu        sync.RWMutex // Write holds it shared, Close exclusive
	stopped   bool
	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
	logger    *zap.Logger
}

// NewAOF opens (or creates) the journal and starts the background writer
func NewAOF(filename string, strategyStr string, logger *zap.Logger) (*AOF, error) {
	// open file in Append mode, Create if not exists, Read/Write
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("aof: open %s: %w", filename, err)
	}

	aof := &AOF{
		file:         f,
		writer:       bufio.NewWriter(f), // default 4KB buffer
		filename:     filename,
		strategy:     parseStrategy(strategyStr),
		commandsChan: make(chan []byte, 10000), // buffer for burst writes
		closed:       make(chan struct{}),
		logger:       logger.With(zap.String("aof", filename)),
	}

	aof.wg.Add(1)
	go aof.listen()

	return aof, nil
}

// Write queues an encoded command. If the queue is full, this blocks, providing backpressure.
// A payload accepted here is always written before Close returns
func (a *AOF) Write(payload []byte) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.stopped {
		return ErrJournalClosed
	}
	a.commandsChan <- payload
	return nil
}

func (a *AOF) listen() {
	defer a.wg.Done()

	// the ticker only drives everysec; the other strategies never read it
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case p := <-a.commandsChan:
			a.append(p)

		case <-ticker.C:
			if a.strategy == fsyncEverySec {
				a.sync()
			}

		case <-a.closed:
			// drain what was queued before Close
			for {
				select {
				case p := <-a.commandsChan:
					a.append(p)
				default:
					a.sync()
					return
				}
			}
		}
	}
}

func (a *AOF) append(p []byte) {
	if _, err := a.writer.Write(p); err != nil {
		a.logger.Error("AOF write error", zap.Error(err))
		return
	}

	if a.strategy == fsyncAlways {
		a.sync()
	}
}

// sync flushes the buffer and, unless fsync is "no", asks the OS to persist it
func (a *AOF) sync() {
	if err := a.writer.Flush(); err != nil {
		a.logger.Error("AOF flush error", zap.Error(err))
		return
	}

	if a.strategy == fsyncNo {
		return
	}

	if err := a.file.Sync(); err != nil {
		a.logger.Error("AOF fsync error", zap.Error(err))
	}
}

// Close flushes the pending commands and closes the file
func (a *AOF) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.stopped = true
		a.mu.Unlock()

		close(a.closed)
		a.wg.Wait() // wait for background routine to finish last flush
		err = a.file.Close()
	})
	return err
}

func parseStrategy(s string) fsyncStrategy {
	switch s {
	case "always":
		return fsyncAlways
	case "no":
		return fsyncNo
	default:
		return fsyncEverySec
	}
}
