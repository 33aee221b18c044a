package repository

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/tamzid2001/docuflux/internal/domain"
	supaclient "github.com/tamzid2001/docuflux/internal/infra/supabase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFileStore_Put(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store := NewLocalFileStore(dir, nopLogger{})

	stored, err := store.Put(context.Background(), "1700000000000-notes.pdf", "application/pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/1700000000000-notes.pdf", stored.Path)

	data, err := os.ReadFile(filepath.Join(dir, "1700000000000-notes.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestLocalFileStore_NeverOverwrites(t *testing.T) {
	store := NewLocalFileStore(t.TempDir(), nopLogger{})
	ctx := context.Background()

	_, err := store.Put(ctx, "a.png", "image/png", []byte("first"))
	require.NoError(t, err)
	_, err = store.Put(ctx, "a.png", "image/png", []byte("second"))
	assert.True(t, errors.Is(err, domain.ErrFileExists), "got %v", err)
}

func TestLocalFileStore_RejectsPathKeys(t *testing.T) {
	store := NewLocalFileStore(t.TempDir(), nopLogger{})
	for _, key := range []string{"", "../escape.pdf", "nested/file.pdf", ".hidden"} {
		_, err := store.Put(context.Background(), key, "", []byte("x"))
		var vErr *domain.ValidationError
		assert.True(t, errors.As(err, &vErr), "key %q: got %v", key, err)
	}
}

type fakeStorage struct {
	mu          sync.Mutex
	paths       []string
	contentType string
	body        string
	status      int
}

func (f *fakeStorage) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.paths = append(f.paths, r.Method+" "+r.URL.Path)
		f.contentType = r.Header.Get("Content-Type")
		f.body = string(body)
		status := f.status
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if status >= 400 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"statusCode":"409","error":"Duplicate","message":"The resource already exists"}`))
			return
		}
		_, _ = w.Write([]byte(`{"Key":"uploads/doc.png"}`))
	})
}

func newSupabaseFileStore(t *testing.T, fake *fakeStorage) *SupabaseFileStore {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	client, err := supaclient.NewClient(srv.URL, "anon-key", nopLogger{})
	require.NoError(t, err)
	return NewSupabaseFileStore(client.Storage(), "uploads", nopLogger{})
}

func TestSupabaseFileStore_Put(t *testing.T) {
	fake := &fakeStorage{}
	store := newSupabaseFileStore(t, fake)

	stored, err := store.Put(context.Background(), "doc.png", "image/png", []byte("png-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "uploads/doc.png", stored.Path)
	assert.Contains(t, stored.URL, "/storage/v1/object/public/uploads/doc.png")
	require.Len(t, fake.paths, 1)
	assert.Equal(t, "POST /storage/v1/object/uploads/doc.png", fake.paths[0])
	assert.Equal(t, "image/png", fake.contentType)
	assert.Equal(t, "png-bytes", fake.body)
}

func TestSupabaseFileStore_UploadError(t *testing.T) {
	fake := &fakeStorage{status: http.StatusConflict}
	store := newSupabaseFileStore(t, fake)

	_, err := store.Put(context.Background(), "doc.png", "image/png", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "The resource already exists")
}

func TestSupabaseFileStore_CancelledBeforeUpload(t *testing.T) {
	fake := &fakeStorage{}
	store := newSupabaseFileStore(t, fake)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Put(ctx, "doc.png", "image/png", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.paths)
}

func TestSupabaseFileStore_NotInitialized(t *testing.T) {
	store := NewSupabaseFileStore(nil, "uploads", nopLogger{})
	_, err := store.Put(context.Background(), "doc.png", "image/png", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
}
