package supabase

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/folio/internal/gallery"
)

// DefaultBucket holds uploaded design images.
const DefaultBucket = "design-images"

// Storage is a gallery.Storage over the Storage API of one public bucket.
type Storage struct {
	c      *Client
	bucket string
}

var _ gallery.Storage = (*Storage)(nil)

// Storage returns the bucket called name, or DefaultBucket when name is empty.
func (c *Client) Storage(bucket string) *Storage {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &Storage{c: c, bucket: bucket}
}

// Upload implements gallery.Storage. Existing objects are never overwritten.
func (s *Storage) Upload(ctx context.Context, name string, body io.Reader, contentType string, size int64) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return s.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/storage/v1/object/" + url.PathEscape(s.bucket) + "/" + escapeObject(name),
		body:   body,
		size:   size,
		ctype:  contentType,
		headers: map[string]string{
			"Cache-Control": "max-age=3600",
			"x-upsert":      "false",
		},
	}, nil)
}

// PublicURL implements gallery.Storage.
func (s *Storage) PublicURL(name string) string {
	return s.c.baseURL + "/storage/v1/object/public/" + url.PathEscape(s.bucket) + "/" + escapeObject(name)
}

func escapeObject(name string) string {
	parts := strings.Split(strings.TrimLeft(name, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
