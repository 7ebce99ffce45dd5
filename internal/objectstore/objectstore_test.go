package objectstore

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio/internal/config"
	"github.com/folio/internal/imageload"
)

func TestLocalUploadWritesFile(t *testing.T) {
	dir := t.TempDir()
	store := NewLocal(dir, "/static/uploads/")

	err := store.Upload(context.Background(), "123-abc.png", strings.NewReader("png-bytes"), "image/png", 9)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "123-abc.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "/static/uploads/123-abc.png", store.PublicURL("123-abc.png"))
}

func TestLocalUploadRefusesOverwrite(t *testing.T) {
	store := NewLocal(t.TempDir(), "/static/uploads")
	require.NoError(t, store.Upload(context.Background(), "a.png", strings.NewReader("1"), "image/png", 1))
	assert.Error(t, store.Upload(context.Background(), "a.png", strings.NewReader("2"), "image/png", 1))
}

func TestLocalUploadRejectsTraversal(t *testing.T) {
	store := NewLocal(t.TempDir(), "/static/uploads")
	for _, name := range []string{"", "../escape.png", "a/../../b.png", "/abs.png", `..\win.png`} {
		err := store.Upload(context.Background(), name, strings.NewReader("x"), "image/png", 1)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

func TestLocalUploadHonorsCancelledContext(t *testing.T) {
	dir := t.TempDir()
	store := NewLocal(dir, "/static/uploads")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Upload(ctx, "late.png", strings.NewReader("x"), "image/png", 1)
	require.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(filepath.Join(dir, "late.png"))
	assert.True(t, os.IsNotExist(statErr), "partial file must be removed")
}

func TestS3UploadSendsPutObject(t *testing.T) {
	var (
		mu       sync.Mutex
		gotPath  string
		gotType  string
		gotBody  string
		gotCache string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		if r.Method == http.MethodPut {
			gotPath = r.URL.Path
			gotType = r.Header.Get("Content-Type")
			gotCache = r.Header.Get("Cache-Control")
			gotBody = string(body)
		}
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store, err := NewS3(config.S3Config{
		Endpoint:        server.URL,
		Region:          "us-east-1",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Bucket:          "designs",
		BasePath:        "/gallery/",
		ForcePathStyle:  true,
		PublicBaseURL:   "https://cdn.example.com/",
	})
	require.NoError(t, err)

	err = store.Upload(context.Background(), "1-abc.png", strings.NewReader("png-bytes"), "image/png", 9)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/designs/gallery/1-abc.png", gotPath)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, "max-age=3600", gotCache)
	assert.Equal(t, "png-bytes", gotBody)
	assert.Equal(t, "https://cdn.example.com/gallery/1-abc.png", store.PublicURL("1-abc.png"))
}

func TestS3PublicURLFallsBackToBucketHost(t *testing.T) {
	store, err := NewS3(config.S3Config{Bucket: "designs", Region: "us-east-1"})
	require.NoError(t, err)
	assert.Equal(t, "https://designs.s3.amazonaws.com/my%20file.png", store.PublicURL("my file.png"))
}

func TestS3RequiresBucket(t *testing.T) {
	_, err := NewS3(config.S3Config{})
	assert.Error(t, err)
}

func TestLocalUploadLoadsThroughSiteFetcher(t *testing.T) {
	staticDir := t.TempDir()
	uploadDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(staticDir, "designs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "designs", "logo.svg"),
		[]byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`), 0o644))

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 12, 30))))

	store := NewLocal(uploadDir, "/uploads")
	require.NoError(t, store.Upload(context.Background(), "a.png", bytes.NewReader(buf.Bytes()), "image/png", int64(buf.Len())))

	fetcher := imageload.NewSiteFetcher(staticDir, uploadDir, "/uploads", nil, 0)

	meta, err := fetcher.Fetch(context.Background(), store.PublicURL("a.png"))
	require.NoError(t, err)
	assert.Equal(t, 12, meta.Width)
	assert.Equal(t, 30, meta.Height)

	meta, err = fetcher.Fetch(context.Background(), "/static/designs/logo.svg")
	require.NoError(t, err)
	assert.Equal(t, "svg", meta.Format)

	_, err = fetcher.Fetch(context.Background(), "/elsewhere/a.png")
	assert.ErrorIs(t, err, imageload.ErrUnsupportedSource)
}
