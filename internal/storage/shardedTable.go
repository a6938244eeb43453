package storage

import (
	"errors"
	"hash/fnv"
	"io"
	"math/bits"
	"sync"
)

// ShardedTable is a thread-safe activation table,
// divided into segments (shards) to reduce contention for locking
type ShardedTable struct {
	shards    []*ActivationTable
	shardMask uint32
}

// NewShardedTable creates a new instance of ShardedTable.
// The requestedShards parameter must be a power of two for efficient allocation.
// The maximum allowed number of shards is 64.
func NewShardedTable(requestedShards uint) (*ShardedTable, error) {
	if bits.OnesCount(requestedShards) != 1 {
		return nil, errors.New("requested shards must be a power of 2")
	}

	if requestedShards > 64 {
		return nil, errors.New("requested shards must be less or equal than 64")
	}

	s := &ShardedTable{
		shards:    make([]*ActivationTable, requestedShards),
		shardMask: uint32(requestedShards - 1),
	}

	for i := range s.shards {
		s.shards[i] = NewActivationTable()
	}

	return s, nil
}

// getShardIndex returns index of shard by actor id
func (s *ShardedTable) getShardIndex(id string) uint32 {
	hash := fnv.New32a()
	hash.Write([]byte(id)) //nolint:errcheck

	return hash.Sum32() & s.shardMask
}

func (s *ShardedTable) shard(id string) *ActivationTable {
	return s.shards[s.getShardIndex(id)]
}

// Activate creates the activation if needed. Returns true if it was created
func (s *ShardedTable) Activate(id string) bool {
	return s.shard(id).Activate(id)
}

// Touch marks the actor as accessed. Returns false if it is not active
func (s *ShardedTable) Touch(id string) bool {
	return s.shard(id).Touch(id)
}

// Deactivate removes the activation. Returns true if the actor was active
func (s *ShardedTable) Deactivate(id string) bool {
	return s.shard(id).Deactivate(id)
}

// Exists reports whether the actor is active
func (s *ShardedTable) Exists(id string) bool {
	return s.shard(id).Exists(id)
}

// Info returns a copy of the activation record
func (s *ShardedTable) Info(id string) (Activation, bool) {
	return s.shard(id).Info(id)
}

// Acquire registers a call in flight
func (s *ShardedTable) Acquire(id string) bool {
	return s.shard(id).Acquire(id)
}

// Release ends a call started with Acquire
func (s *ShardedTable) Release(id string) bool {
	return s.shard(id).Release(id)
}

// Len sums the size of every shard
func (s *ShardedTable) Len() int {
	n := 0
	for _, shard := range s.shards {
		n += shard.Len()
	}
	return n
}

// CollectIdle runs a pass over every shard in parallel and merges the results
func (s *ShardedTable) CollectIdle(maxIdleScans int64) ScanResult {
	var wg sync.WaitGroup
	var total ScanResult
	var mu sync.Mutex // protects total

	wg.Add(len(s.shards))

	for _, shard := range s.shards {
		go func(t *ActivationTable) {
			defer wg.Done()

			res := t.CollectIdle(maxIdleScans)

			mu.Lock()
			total.merge(res)
			mu.Unlock()
		}(shard)
	}

	wg.Wait()

	return total
}

// Snapshot iterates over all shards sequentially to minimize locking time
func (s *ShardedTable) Snapshot(w io.Writer) error {
	for _, shard := range s.shards {
		if err := shard.Snapshot(w); err != nil {
			return err
		}
	}
	return nil
}

// Restore reads the stream and routes every activation to its shard.
// Nothing is applied unless the whole stream decodes
func (s *ShardedTable) Restore(r io.Reader) error {
	records, err := readRecords(r)
	if err != nil {
		return err
	}

	for _, a := range records {
		target := s.shard(a.ID)
		target.mu.Lock()
		target.data[a.ID] = a
		target.mu.Unlock()
	}
	return nil
}
