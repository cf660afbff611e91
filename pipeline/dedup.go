package pipeline

import (
	"context"

	"github.com/JakeFAU/spinneret"
)

// Dedup drops records whose key has been seen before. The key function
// decides record identity; returning an empty key exempts the record from
// filtering. Item keys live in the same store as request fingerprints when
// the crawl shares one, so checkpoints cover both.
type Dedup[T any] struct {
	store spinneret.DedupStore
	key   func(T) string
	stats *spinneret.Stats
}

// NewDedup builds the dedup stage. stats may be nil.
func NewDedup[T any](store spinneret.DedupStore, key func(T) string, stats *spinneret.Stats) *Dedup[T] {
	return &Dedup[T]{store: store, key: key, stats: stats}
}

// Name implements spinneret.Pipeline.
func (*Dedup[T]) Name() string { return "dedup" }

// Process passes new records through and silently drops repeats.
func (d *Dedup[T]) Process(_ context.Context, item T) (T, error) {
	key := d.key(item)
	if key == "" {
		return item, nil
	}
	fresh, err := d.store.MarkIfNew("item:" + key)
	if err != nil {
		return item, err
	}
	if !fresh {
		if d.stats != nil {
			d.stats.ItemsDeduplicated.Add(1)
		}
		return item, spinneret.ErrDropItem
	}
	return item, nil
}
