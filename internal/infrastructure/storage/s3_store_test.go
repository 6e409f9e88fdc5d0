package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeS3 serves path-style PutObject/GetObject/DeleteObject from memory
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.types[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
			return
		}
		w.Header().Set("Content-Type", f.types[key])
		_, _ = w.Write(body)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newS3Store(t *testing.T, fallback *LocalImageStore) (*S3ImageStore, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewS3ImageStore(context.Background(), S3Config{
		Endpoint:        srv.URL,
		Region:          "us-east-1",
		Bucket:          "crop-images",
		Prefix:          "/scans/",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		UsePathStyle:    true,
	}, fallback, zap.NewNop())
	require.NoError(t, err)
	return s, fake
}

func TestS3ImageStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, fake := newS3Store(t, nil)
	png := []byte("\x89PNG\r\n\x1a\n0000")

	uri, err := s.Save(ctx, "leaf.png", png)
	require.NoError(t, err)
	assert.Equal(t, "s3://crop-images/scans/leaf.png", uri)
	assert.Equal(t, "image/png", fake.types["crop-images/scans/leaf.png"])

	content, err := s.Load(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, png, content)

	require.NoError(t, s.Delete(ctx, uri))
	_, err = s.Load(ctx, uri)
	assert.Error(t, err)
}

func TestS3ImageStore_KeysStayUnderPrefix(t *testing.T) {
	s, _ := newS3Store(t, nil)

	uri, err := s.Save(context.Background(), "../../etc/leaf.jpg", []byte{0xFF, 0xD8, 0xFF})
	require.NoError(t, err)
	assert.Equal(t, "s3://crop-images/scans/etc/leaf.jpg", uri)

	_, err = s.Save(context.Background(), "", []byte("x"))
	assert.Error(t, err)
}

func TestS3ImageStore_Fallback(t *testing.T) {
	ctx := context.Background()
	local, err := NewLocalImageStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	localURI, err := local.Save(ctx, "old.jpg", []byte("legacy"))
	require.NoError(t, err)

	s, _ := newS3Store(t, local)
	content, err := s.Load(ctx, localURI)
	require.NoError(t, err)
	assert.Equal(t, []byte("legacy"), content)
	require.NoError(t, s.Delete(ctx, localURI))

	noFallback, _ := newS3Store(t, nil)
	_, err = noFallback.Load(ctx, localURI)
	assert.Error(t, err)
}

func TestNewS3ImageStore_RequiresBucket(t *testing.T) {
	_, err := NewS3ImageStore(context.Background(), S3Config{}, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		key     string
		wantErr bool
	}{
		{uri: "s3://bucket/a/b.jpg", bucket: "bucket", key: "a/b.jpg"},
		{uri: "s3://bucket/", wantErr: true},
		{uri: "s3://bucket", wantErr: true},
		{uri: "s3:///key", wantErr: true},
		{uri: "file:///tmp/a.jpg", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, key, err := ParseS3URI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}
