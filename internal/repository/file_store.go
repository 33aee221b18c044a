package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tamzid2001/docuflux/internal/domain"

	storage_go "github.com/supabase-community/storage-go"
)

const localURLPrefix = "/uploads/"

func validKey(key string) error {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return &domain.ValidationError{Field: "key", Message: fmt.Sprintf("invalid file key %q", key)}
	}
	return nil
}

// LocalFileStore writes uploads into a directory on local disk.
type LocalFileStore struct {
	dir    string
	logger domain.Logger
}

func NewLocalFileStore(dir string, logger domain.Logger) *LocalFileStore {
	return &LocalFileStore{dir: dir, logger: logger}
}

func (s *LocalFileStore) Put(ctx context.Context, key, contentType string, data []byte) (*domain.StoredFile, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(s.dir, key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrFileExists, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", key, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", key, err)
	}

	s.logger.Debug("Stored upload on disk", "key", key, "bytes", len(data))
	return &domain.StoredFile{Key: key, Path: localURLPrefix + key}, nil
}

// SupabaseFileStore uploads into a Supabase Storage bucket.
type SupabaseFileStore struct {
	// the storage client keeps per-upload options in shared headers
	mu      sync.Mutex
	storage *storage_go.Client
	bucket  string
	logger  domain.Logger
}

func NewSupabaseFileStore(storage *storage_go.Client, bucket string, logger domain.Logger) *SupabaseFileStore {
	return &SupabaseFileStore{storage: storage, bucket: bucket, logger: logger}
}

func (s *SupabaseFileStore) Put(ctx context.Context, key, contentType string, data []byte) (*domain.StoredFile, error) {
	if s.storage == nil {
		return nil, domain.ErrNotInitialized
	}
	if err := validKey(key); err != nil {
		return nil, err
	}
	// the storage client takes no context; honour cancellation before sending
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	upsert := false

	s.mu.Lock()
	_, err := s.storage.UploadFile(s.bucket, key, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	publicURL := s.storage.GetPublicUrl(s.bucket, key).SignedURL
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Failed to upload file to storage", err, "bucket", s.bucket, "key", key)
		return nil, fmt.Errorf("failed to upload %s: %w", key, err)
	}

	s.logger.Info("Stored upload in bucket", "bucket", s.bucket, "key", key, "bytes", len(data))
	return &domain.StoredFile{
		Key:  key,
		Path: s.bucket + "/" + key,
		URL:  publicURL,
	}, nil
}
