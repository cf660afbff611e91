package pipeline

import (
	"context"

	"go.uber.org/zap"
)

// Console logs every record at info level. Useful while developing a spider.
type Console[T any] struct {
	logger *zap.Logger
}

// NewConsole builds the console exporter.
func NewConsole[T any](logger *zap.Logger) *Console[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console[T]{logger: logger}
}

// Name implements spinneret.Exporter.
func (*Console[T]) Name() string { return "console" }

// Open implements spinneret.Exporter.
func (*Console[T]) Open(context.Context) error { return nil }

// Write logs the record.
func (c *Console[T]) Write(_ context.Context, item T) error {
	c.logger.Info("scraped item", zap.Any("item", item))
	return nil
}

// Close implements spinneret.Exporter.
func (*Console[T]) Close(context.Context) error { return nil }
