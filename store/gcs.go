package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
)

// GCSStore keeps each document as an object under Prefix in Bucket.
// Object replacement is atomic per object.
type GCSStore struct {
	client *storage.Client
	Bucket string
	Prefix string
}

func NewGCSStore(ctx context.Context, client *storage.Client, bucket, prefix string) (*GCSStore, error) {
	if client == nil {
		return nil, errors.New("gcs client is nil")
	}
	if bucket == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		return nil, fmt.Errorf("gcs bucket %q not found or not accessible: %w", bucket, err)
	}
	return &GCSStore{client: client, Bucket: bucket, Prefix: prefix}, nil
}

func (s *GCSStore) object(name string) *storage.ObjectHandle {
	return s.client.Bucket(s.Bucket).Object(path.Join(s.Prefix, name))
}

func (s *GCSStore) Load(ctx context.Context, name string) ([]byte, error) {
	r, err := s.object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Save uploads docs one object at a time, in order. A failure part way leaves
// the earlier objects replaced; callers put the ledger last.
func (s *GCSStore) Save(ctx context.Context, docs ...Document) error {
	for _, d := range docs {
		wc := s.object(d.Name).NewWriter(ctx)
		wc.ContentType = "application/json"
		if _, err := wc.Write(d.Body); err != nil {
			_ = wc.Close()
			return fmt.Errorf("failed to upload %s to Google Cloud Storage: %w", d.Name, err)
		}
		if err := wc.Close(); err != nil {
			return fmt.Errorf("failed to close writer for %s: %w", d.Name, err)
		}
	}
	return nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
