package spinneret

import (
	"sync"
	"sync/atomic"
)

// DedupStore maps canonical fingerprints to a seen-bit. Insertion is
// idempotent: the first MarkIfNew for a key returns true, every later call
// returns false. Implementations must be safe for concurrent use.
//
// The storage package provides a Badger-backed implementation for crawls
// whose dedup index must survive restarts on its own; the in-memory store
// below relies on checkpointing for that.
type DedupStore interface {
	MarkIfNew(key string) (bool, error)
	Keys() ([]string, error)
	Len() int
}

// MemoryDedup is the default in-process DedupStore.
type MemoryDedup struct {
	seen  sync.Map
	count atomic.Int64
}

// NewMemoryDedup returns an empty in-memory dedup index.
func NewMemoryDedup() *MemoryDedup {
	return &MemoryDedup{}
}

// MarkIfNew stores the key if it has not been seen before and returns true.
func (d *MemoryDedup) MarkIfNew(key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	_, loaded := d.seen.LoadOrStore(key, struct{}{})
	if !loaded {
		d.count.Add(1)
	}
	return !loaded, nil
}

// Keys returns every recorded fingerprint, in no particular order.
func (d *MemoryDedup) Keys() ([]string, error) {
	keys := make([]string, 0, d.count.Load())
	d.seen.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	return keys, nil
}

// Len returns the number of recorded fingerprints.
func (d *MemoryDedup) Len() int {
	return int(d.count.Load())
}
