// Package storage keeps raw CSV blobs in a bucket directory on an afero
// filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// DefaultBucket is the bucket uploaded CSV files live in
const DefaultBucket = "csv-uploads"

var (
	ErrNotFound    = errors.New("object not found")
	ErrInvalidPath = errors.New("invalid object path")
)

// Store is a bucket of objects addressed by slash-separated keys
type Store struct {
	fs     afero.Fs
	bucket string
}

// NewStore wraps an existing filesystem
func NewStore(fs afero.Fs, bucket string) *Store {
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &Store{fs: fs, bucket: bucket}
}

// NewOsStore keeps the bucket under root on the local disk
func NewOsStore(root, bucket string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root not configured")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return NewStore(afero.NewBasePathFs(afero.NewOsFs(), root), bucket), nil
}

// Bucket returns the bucket name
func (s *Store) Bucket() string {
	return s.bucket
}

// Put writes an object, replacing any existing one, and returns its size
func (s *Store) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	full, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := s.fs.MkdirAll(path.Dir(full), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	f, err := s.fs.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s for writing: %w", key, err)
	}
	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		return n, fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("failed to close %s: %w", key, err)
	}
	return n, nil
}

// Get opens an object for reading
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	return f, nil
}

// Remove deletes objects. Missing objects are not an error.
func (s *Store) Remove(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		full, err := s.resolve(key)
		if err != nil {
			return err
		}
		if err := s.fs.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", key, err)
		}
	}
	return nil
}


func (s *Store) resolve(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
		}
	}
	return path.Join("/", s.bucket, key), nil
}
