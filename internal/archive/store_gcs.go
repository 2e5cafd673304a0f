package archive

import (
	"context"
	"fmt"

	gcs "cloud.google.com/go/storage"
)

// GCSStore implements Store using Google Cloud Storage.
type GCSStore struct {
	client *gcs.Client
	bucket string
	prefix string
}

// NewGCSStore creates a GCS-backed Store.
// It uses Application Default Credentials.
func NewGCSStore(ctx context.Context, bucket, prefix string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs archive: bucket is required")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *GCSStore) Location(key string) string {
	return "gs://" + s.bucket + "/" + joinKey(s.prefix, key)
}

func (s *GCSStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	full := joinKey(s.prefix, key)
	w := s.client.Bucket(s.bucket).Object(full).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("gcs write %s: %w", full, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close %s: %w", full, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
