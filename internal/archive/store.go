// Package archive writes finished estimations to a report store: a local
// directory, an S3 bucket or a GCS bucket.
package archive

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// Store abstracts blob storage for archived reports.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Location returns a human-readable address for key.
	Location(key string) string
}

// Open returns the Store for a destination URL. Plain paths are local
// directories; s3://bucket/prefix and gs://bucket/prefix select the cloud
// backends. S3 accepts ?region= and ?endpoint= query parameters.
func Open(ctx context.Context, rawURL string) (Store, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("archive destination is empty")
	}
	if !strings.Contains(rawURL, "://") {
		return NewLocalStore(rawURL), nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse archive url: %w", err)
	}
	prefix := strings.Trim(u.Path, "/")

	switch u.Scheme {
	case "file":
		return NewLocalStore(u.Path), nil
	case "s3":
		q := u.Query()
		return NewS3Store(ctx, S3Config{
			Bucket:    u.Host,
			Prefix:    prefix,
			Region:    q.Get("region"),
			Endpoint:  q.Get("endpoint"),
			AccessKey: os.Getenv("STORYSIZE_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("STORYSIZE_S3_SECRET_KEY"),
		})
	case "gs":
		return NewGCSStore(ctx, u.Host, prefix)
	default:
		return nil, fmt.Errorf("unsupported archive scheme %q", u.Scheme)
	}
}

// LocalStore implements Store using the local filesystem. Writes take an
// exclusive lock on the directory so that concurrent CLI runs and the
// daemon can share one archive.
type LocalStore struct {
	BaseDir string
}

// NewLocalStore creates a LocalStore rooted at the given directory.
func NewLocalStore(baseDir string) *LocalStore {
	return &LocalStore{BaseDir: baseDir}
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.BaseDir, filepath.FromSlash(key))
}

func (s *LocalStore) Location(key string) string {
	return s.path(key)
}

func (s *LocalStore) Put(ctx context.Context, key string, data []byte, _ string) error {
	if err := os.MkdirAll(s.BaseDir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	lock := flock.New(filepath.Join(s.BaseDir, ".lock"))
	locked, err := lock.TryLockContext(ctx, 25*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquire archive lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("acquire archive lock: %w", ctx.Err())
	}
	defer lock.Unlock()

	return atomicWrite(s.path(key), data)
}

// atomicWrite writes to a temp file in the target directory and renames
// it into place, so readers never see a partial report.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	ok = true
	return nil
}
