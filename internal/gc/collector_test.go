package gc

import (
	"sync"
	"testing"
	"time"

	"github.com/eternalApril/actorhost/internal/config"
	"github.com/eternalApril/actorhost/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"
)

func mustSettings(t *testing.T, idleTimeout, scanInterval int64) config.GCSettings {
	t.Helper()
	s, err := config.NewGCSettings(idleTimeout, scanInterval)
	require.NoError(t, err)
	return s
}

func TestCollector_ScanUsesIdleScans(t *testing.T) {
	ctrl := gomock.NewController(t)
	table := NewMockTable(ctrl)

	table.EXPECT().
		CollectIdle(int64(4)).
		Return(storage.ScanResult{Scanned: 10, Collected: []string{"a", "b"}})

	c := New(table, mustSettings(t, 120, 30), zaptest.NewLogger(t))
	res := c.Scan()

	assert.Equal(t, 10, res.Scanned)
	assert.Equal(t, []string{"a", "b"}, res.Collected)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Scans)
	assert.Equal(t, uint64(2), stats.Collected)
	assert.Equal(t, 10, stats.LastScanned)
	assert.Equal(t, 2, stats.LastCollected)
	assert.False(t, stats.LastScan.IsZero())
}

func TestCollector_TruncatedRatio(t *testing.T) {
	ctrl := gomock.NewController(t)
	table := NewMockTable(ctrl)

	// 19/10 truncates to a single idle scan
	table.EXPECT().CollectIdle(int64(1)).Return(storage.ScanResult{})

	New(table, mustSettings(t, 19, 10), zaptest.NewLogger(t)).Scan()
}

func TestCollector_OnCollectHook(t *testing.T) {
	ctrl := gomock.NewController(t)
	table := NewMockTable(ctrl)

	gomock.InOrder(
		table.EXPECT().CollectIdle(gomock.Any()).Return(storage.ScanResult{Scanned: 3}),
		table.EXPECT().CollectIdle(gomock.Any()).Return(storage.ScanResult{Scanned: 3, Collected: []string{"x"}}),
	)

	var got [][]string
	c := New(table, config.DefaultGCSettings(), zaptest.NewLogger(t), WithOnCollect(func(ids []string) {
		got = append(got, ids)
	}))

	c.Scan()
	c.Scan()

	assert.Equal(t, [][]string{{"x"}}, got, "hook runs only when something was collected")
	assert.Equal(t, uint64(2), c.Stats().Scans)
	assert.Equal(t, uint64(1), c.Stats().Collected)
}

func TestCollector_LockerCoversSweepAndHook(t *testing.T) {
	ctrl := gomock.NewController(t)
	table := NewMockTable(ctrl)

	var mu sync.Mutex
	table.EXPECT().CollectIdle(gomock.Any()).DoAndReturn(func(int64) storage.ScanResult {
		assert.False(t, mu.TryLock(), "sweep runs under the lock")
		return storage.ScanResult{Scanned: 1, Collected: []string{"x"}}
	})

	hookCalled := false
	c := New(table, config.DefaultGCSettings(), zaptest.NewLogger(t),
		WithLocker(&mu),
		WithOnCollect(func([]string) {
			hookCalled = true
			assert.False(t, mu.TryLock(), "hook runs under the lock")
		}),
	)
	c.Scan()

	assert.True(t, hookCalled)
	require.True(t, mu.TryLock(), "lock is released after the pass")
	mu.Unlock()
}

func TestCollector_Settings(t *testing.T) {
	s := mustSettings(t, 120, 30)
	c := New(storage.NewActivationTable(), s, zaptest.NewLogger(t))
	assert.Equal(t, s, c.Settings())
}

func TestCollector_LoopCollectsIdleActors(t *testing.T) {
	table := storage.NewActivationTable()
	table.Activate("sleepy")
	table.Activate("busy")
	require.True(t, table.Acquire("busy"))

	var mu sync.Mutex
	var collected []string

	c := New(table, mustSettings(t, 1, 1), zaptest.NewLogger(t), WithOnCollect(func(ids []string) {
		mu.Lock()
		collected = append(collected, ids...)
		mu.Unlock()
	}))
	c.Start()
	c.Start() // second call is a no-op
	defer c.Stop()

	assert.Eventually(t, func() bool {
		return !table.Exists("sleepy")
	}, 5*time.Second, 50*time.Millisecond)

	assert.True(t, table.Exists("busy"))

	mu.Lock()
	assert.Equal(t, []string{"sleepy"}, collected)
	mu.Unlock()
}

func TestCollector_StopIsIdempotent(t *testing.T) {
	c := New(storage.NewActivationTable(), config.DefaultGCSettings(), zaptest.NewLogger(t))
	c.Start()

	done := make(chan struct{})
	go func() {
		c.Stop()
		c.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestCollector_StopWithoutStart(t *testing.T) {
	c := New(storage.NewActivationTable(), config.DefaultGCSettings(), zaptest.NewLogger(t))

	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a collector that never started")
	}
}
