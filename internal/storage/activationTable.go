package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// recordHeaderSize is idLen(4) + activatedAt(8) + lastAccess(8) + idleScans(8)
const recordHeaderSize = 28

// MaxIDLen bounds the length of an actor id
const MaxIDLen = 64 * 1024

// ErrCorruptRecord is returned by Restore when a snapshot record cannot be decoded
var ErrCorruptRecord = errors.New("storage: corrupt snapshot record")

// ActivationTable is a thread-safe table of actor activations
type ActivationTable struct {
	data map[string]*Activation // actor id - activation
	mu   sync.RWMutex
}

// NewActivationTable creates a new instance of ActivationTable
func NewActivationTable() *ActivationTable {
	return &ActivationTable{
		data: make(map[string]*Activation),
	}
}

// Activate creates the activation if needed. Returns true if it was created
func (t *ActivationTable) Activate(id string) bool {
	now := time.Now().UnixNano()

	t.mu.Lock()
	defer t.mu.Unlock()

	if a, ok := t.data[id]; ok {
		a.markAccessed(now)
		return false
	}

	t.data[id] = &Activation{
		ID:          id,
		ActivatedAt: now,
		LastAccess:  now,
		accessed:    true,
	}
	return true
}

// Touch marks the actor as accessed. Returns false if it is not active
func (t *ActivationTable) Touch(id string) bool {
	now := time.Now().UnixNano()

	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.data[id]
	if !ok {
		return false
	}
	a.markAccessed(now)
	return true
}

// Deactivate removes the activation. Returns true if the actor was active
func (t *ActivationTable) Deactivate(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.data[id]; ok {
		delete(t.data, id)
		return true
	}
	return false
}

// Exists reports whether the actor is active
func (t *ActivationTable) Exists(id string) bool {
	t.mu.RLock()
	_, ok := t.data[id]
	t.mu.RUnlock()
	return ok
}

// Info returns a copy of the activation record
func (t *ActivationTable) Info(id string) (Activation, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	a, ok := t.data[id]
	if !ok {
		return Activation{}, false
	}
	return *a, true
}

// Acquire registers a call in flight
func (t *ActivationTable) Acquire(id string) bool {
	now := time.Now().UnixNano()

	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.data[id]
	if !ok {
		return false
	}
	a.Calls++
	a.markAccessed(now)
	return true
}

// Release ends a call started with Acquire. Returns false if the actor is
// not active or has no call in flight
func (t *ActivationTable) Release(id string) bool {
	now := time.Now().UnixNano()

	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.data[id]
	if !ok || a.Calls == 0 {
		return false
	}
	a.Calls--
	a.markAccessed(now)
	return true
}

// Len returns the number of active actors
func (t *ActivationTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.data)
}

// CollectIdle walks every activation once. Actors accessed or busy since the
// previous pass start counting from zero again; the others get one idle scan
// more and are deactivated once they reach maxIdleScans
func (t *ActivationTable) CollectIdle(maxIdleScans int64) ScanResult {
	if maxIdleScans < 1 {
		maxIdleScans = 1
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	res := ScanResult{}

	for id, a := range t.data {
		res.Scanned++

		if a.Calls > 0 || a.accessed {
			a.accessed = false
			a.IdleScans = 0
			continue
		}

		a.IdleScans++
		if a.IdleScans >= maxIdleScans {
			// deleting during range is safe in go
			delete(t.data, id)
			res.Collected = append(res.Collected, id)
		}
	}

	return res
}

// Snapshot serializes the table in Writer
func (t *ActivationTable) Snapshot(w io.Writer) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	header := make([]byte, recordHeaderSize)

	for id, a := range t.data {
		binary.LittleEndian.PutUint32(header[0:4], uint32(len(id)))
		binary.LittleEndian.PutUint64(header[4:12], uint64(a.ActivatedAt))
		binary.LittleEndian.PutUint64(header[12:20], uint64(a.LastAccess))
		binary.LittleEndian.PutUint64(header[20:28], uint64(a.IdleScans))

		if _, err := w.Write(header); err != nil {
			return err
		}

		if _, err := io.WriteString(w, id); err != nil {
			return err
		}
	}

	return nil
}

// Restore reads the stream and fills the table. Calls in flight are not restored.
// Nothing is applied unless the whole stream decodes
func (t *ActivationTable) Restore(r io.Reader) error {
	records, err := readRecords(r)
	if err != nil {
		return err
	}

	t.mu.Lock()
	for _, a := range records {
		t.data[a.ID] = a
	}
	t.mu.Unlock()
	return nil
}

// readRecords decodes snapshot records until EOF
func readRecords(r io.Reader) ([]*Activation, error) {
	header := make([]byte, recordHeaderSize)
	var records []*Activation

	for {
		_, err := io.ReadFull(r, header)
		if err == io.EOF {
			return records, nil // end of stream
		}
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrCorruptRecord, len(records), err)
		}

		idLen := binary.LittleEndian.Uint32(header[0:4])
		if idLen > MaxIDLen {
			return nil, fmt.Errorf("%w: record %d: id length %d", ErrCorruptRecord, len(records), idLen)
		}

		idBuf := make([]byte, idLen)
		if _, err := io.ReadFull(r, idBuf); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrCorruptRecord, len(records), err)
		}

		records = append(records, &Activation{
			ID:          string(idBuf),
			ActivatedAt: int64(binary.LittleEndian.Uint64(header[4:12])),
			LastAccess:  int64(binary.LittleEndian.Uint64(header[12:20])),
			IdleScans:   int64(binary.LittleEndian.Uint64(header[20:28])),
		})
	}
}

func (a *Activation) markAccessed(now int64) {
	a.LastAccess = now
	a.accessed = true
}
