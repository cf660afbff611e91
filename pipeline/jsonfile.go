package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// JSONFile collects records and writes them as a single indented JSON array
// when the crawl finishes. Records are buffered in memory, so this exporter
// suits bounded crawls; use JSONLines for unbounded output.
type JSONFile[T any] struct {
	path string

	mu    sync.Mutex
	items []T
}

// NewJSONFile builds the exporter.
func NewJSONFile[T any](path string) *JSONFile[T] {
	return &JSONFile[T]{path: path}
}

// Name implements spinneret.Exporter.
func (*JSONFile[T]) Name() string { return "json" }

// Open implements spinneret.Exporter.
func (*JSONFile[T]) Open(context.Context) error { return nil }

// Write buffers one record.
func (j *JSONFile[T]) Write(_ context.Context, item T) error {
	j.mu.Lock()
	j.items = append(j.items, item)
	j.mu.Unlock()
	return nil
}

// Close marshals the collected records and writes the file in one shot.
func (j *JSONFile[T]) Close(context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	data, err := json.MarshalIndent(j.items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json records: %w", err)
	}
	if err := os.WriteFile(j.path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
