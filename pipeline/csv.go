package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sync"
)

// CSV streams records to a CSV file, one row per record.
type CSV[T any] struct {
	path   string
	header []string
	row    func(T) []string

	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSV builds the exporter. header is written once at open; row converts
// a record into one CSV row.
func NewCSV[T any](path string, header []string, row func(T) []string) *CSV[T] {
	return &CSV[T]{path: path, header: header, row: row}
}

// Name implements spinneret.Exporter.
func (*CSV[T]) Name() string { return "csv" }

// Open creates (or truncates) the output file and writes the header.
func (c *CSV[T]) Open(context.Context) error {
	file, err := os.Create(c.path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	c.file = file
	c.writer = csv.NewWriter(file)
	if len(c.header) > 0 {
		if err := c.writer.Write(c.header); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	return nil
}

// Write appends one row.
func (c *CSV[T]) Write(_ context.Context, item T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.writer.Write(c.row(item)); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	return nil
}

// Close flushes buffered rows and closes the file.
func (c *CSV[T]) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writer == nil {
		return nil
	}
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		_ = c.file.Close()
		return fmt.Errorf("flush csv: %w", err)
	}
	return c.file.Close()
}
