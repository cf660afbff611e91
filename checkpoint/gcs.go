package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/spinneret"
)

// GCSStore persists checkpoints as a single JSON object in a Google Cloud
// Storage bucket. GCS object writes are atomic, so a crashed save leaves
// the previous snapshot readable.
type GCSStore struct {
	client *storage.Client
	bucket string
	object string
}

// NewGCSStore builds a store over an existing client. The object name
// defaults to "checkpoint.json".
func NewGCSStore(client *storage.Client, bucket, object string) (*GCSStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if object == "" {
		object = "checkpoint.json"
	}
	return &GCSStore{client: client, bucket: bucket, object: object}, nil
}

// Save overwrites the stored snapshot.
func (s *GCSStore) Save(ctx context.Context, cp *spinneret.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	writer := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := writer.Write(data); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return fmt.Errorf("write checkpoint object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write checkpoint object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close checkpoint writer: %w", err)
	}
	return nil
}

// Load reads the stored snapshot, returning (nil, nil) when none exists.
func (s *GCSStore) Load(ctx context.Context) (*spinneret.Checkpoint, error) {
	reader, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open checkpoint object: %w", err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint object: %w", err)
	}
	var cp spinneret.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &cp, nil
}
