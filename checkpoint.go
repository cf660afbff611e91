package spinneret

import "context"

// Checkpoint is a resumable snapshot of crawl state. Snapshots are fuzzy:
// in-flight requests are captured alongside pending ones and re-fetched on
// resume, which is safe because the dedup index keeps completed work
// suppressed. Replaying a checkpoint therefore visits a superset, never a
// subset, of the records a continuous run would have produced.
type Checkpoint struct {
	// Seq increases monotonically across snapshots of one crawl run.
	Seq int64 `json:"seq"`
	// RunID identifies the crawl run that produced the snapshot.
	RunID string `json:"run_id"`

	Frontier  []Request     `json:"frontier"`
	DedupKeys []string      `json:"dedup_keys"`
	Stats     StatsSnapshot `json:"stats"`
}

// CheckpointStore persists checkpoints. Save overwrites the previous
// snapshot; Load returns (nil, nil) when no checkpoint exists yet.
// The checkpoint package ships file- and GCS-backed implementations.
type CheckpointStore interface {
	Save(ctx context.Context, cp *Checkpoint) error
	Load(ctx context.Context) (*Checkpoint, error)
}
