package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// JSONLines streams records to a file as newline-delimited JSON.
type JSONLines[T any] struct {
	path string

	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
}

// NewJSONLines builds the exporter.
func NewJSONLines[T any](path string) *JSONLines[T] {
	return &JSONLines[T]{path: path}
}

// Name implements spinneret.Exporter.
func (*JSONLines[T]) Name() string { return "jsonl" }

// Open creates (or truncates) the output file.
func (j *JSONLines[T]) Open(context.Context) error {
	file, err := os.Create(j.path)
	if err != nil {
		return fmt.Errorf("create jsonl file: %w", err)
	}
	j.file = file
	j.buf = bufio.NewWriter(file)
	j.enc = json.NewEncoder(j.buf)
	return nil
}

// Write appends one JSON line.
func (j *JSONLines[T]) Write(_ context.Context, item T) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(item); err != nil {
		return fmt.Errorf("encode jsonl record: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (j *JSONLines[T]) Close(context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.buf == nil {
		return nil
	}
	if err := j.buf.Flush(); err != nil {
		_ = j.file.Close()
		return fmt.Errorf("flush jsonl: %w", err)
	}
	return j.file.Close()
}
