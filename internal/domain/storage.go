package domain

import "context"

// StoredFile is an uploaded document kept as-is, without running the pipeline.
type StoredFile struct {
	Key  string `json:"key"`
	Path string `json:"path"`
	URL  string `json:"url,omitempty"`
}

// FileStore keeps raw uploads. Keys are unique per upload; an existing key is
// never overwritten.
type FileStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (*StoredFile, error)
}
