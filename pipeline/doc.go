// Package pipeline bundles ready-made record stages and exporters: dedup
// and console stages, file-based CSV/JSON/JSONL writers, and SQLite,
// Postgres, and Pub/Sub sinks.
package pipeline
