// Package gc deactivates actors that stay idle for longer than the configured timeout.
package gc

//go:generate mockgen -source=collector.go -destination=mock_table_test.go -package=gc

import (
	"sync"
	"time"

	"github.com/eternalApril/actorhost/internal/config"
	"github.com/eternalApril/actorhost/internal/storage"
	"go.uber.org/zap"
)

// Table is the part of the activation table the collector needs
type Table interface {
	CollectIdle(maxIdleScans int64) storage.ScanResult
}

// Stats describes the work done by the collector so far
type Stats struct {
	Scans         uint64    `json:"scans"`
	Collected     uint64    `json:"collected"`
	LastScan      time.Time `json:"last_scan"`
	LastScanned   int       `json:"last_scanned"`
	LastCollected int       `json:"last_collected"`
}

// Option customizes a Collector
type Option func(c *Collector)

// WithOnCollect registers a hook called with the ids removed by every pass that removed something
func WithOnCollect(fn func(ids []string)) Option {
	return func(c *Collector) {
		c.onCollect = fn
	}
}

// WithLocker makes every pass hold l from the table sweep until the hook returns,
// so writers taking the same lock observe removals and their hook side effects together
func WithLocker(l sync.Locker) Option {
	return func(c *Collector) {
		c.locker = l
	}
}

// Collector periodically scans the activation table and removes idle actors
type Collector struct {
	table     Table
	settings  config.GCSettings
	onCollect func(ids []string)
	locker    sync.Locker
	logger    *zap.Logger

	scanMu sync.Mutex // one pass at a time
	mu     sync.RWMutex
	stats  Stats

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// New creates a collector. It does nothing until Start or Scan is called
func New(table Table, settings config.GCSettings, logger *zap.Logger, opts ...Option) *Collector {
	c := &Collector{
		table:    table,
		settings: settings,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Settings returns the timing the collector runs with
func (c *Collector) Settings() config.GCSettings {
	return c.settings
}

// Stats returns a copy of the collector counters
func (c *Collector) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Scan runs a single pass and returns its result
func (c *Collector) Scan() storage.ScanResult {
	c.scanMu.Lock()
	defer c.scanMu.Unlock()

	if c.locker != nil {
		c.locker.Lock()
		defer c.locker.Unlock()
	}

	start := time.Now()
	res := c.table.CollectIdle(c.settings.IdleScans())

	c.mu.Lock()
	c.stats.Scans++
	c.stats.Collected += uint64(len(res.Collected))
	c.stats.LastScan = start
	c.stats.LastScanned = res.Scanned
	c.stats.LastCollected = len(res.Collected)
	c.mu.Unlock()

	if len(res.Collected) > 0 {
		c.logger.Info("idle actors collected",
			zap.Int("collected", len(res.Collected)),
			zap.Int("scanned", res.Scanned),
			zap.Duration("took", time.Since(start)),
		)

		if c.onCollect != nil {
			c.onCollect(res.Collected)
		}
	} else if c.logger.Core().Enabled(zap.DebugLevel) {
		c.logger.Debug("gc scan finished", zap.Int("scanned", res.Scanned))
	}

	return res
}

// Start launches the background loop. Calling it more than once has no effect
func (c *Collector) Start() {
	c.startOnce.Do(func() {
		c.logger.Info("GC started", zap.Object("settings", c.settings))
		go c.loop()
	})
}

// loop triggers a scan every scan interval
func (c *Collector) loop() {
	defer close(c.done)

	ticker := time.NewTicker(c.settings.ScanInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Scan()
		case <-c.stop:
			c.logger.Info("GC stopped")
			return
		}
	}
}

// Stop signals the loop to exit and waits for it. Safe to call several times,
// and also when Start was never called
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)

		started := true
		c.startOnce.Do(func() { started = false })
		if started {
			<-c.done
		}
	})
}
