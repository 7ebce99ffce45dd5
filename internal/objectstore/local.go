// Package objectstore holds the self-hosted gallery.Storage implementations.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/folio/internal/gallery"
)

var ErrInvalidName = errors.New("invalid object name")

// Local writes uploads below a directory served by the static handler.
type Local struct {
	dir     string
	urlPath string
}

var _ gallery.Storage = (*Local)(nil)

// NewLocal stores files in dir and publishes them under urlPath.
func NewLocal(dir, urlPath string) *Local {
	urlPath = "/" + strings.Trim(strings.TrimSpace(urlPath), "/")
	return &Local{dir: dir, urlPath: urlPath}
}

// Upload implements gallery.Storage. Existing objects are never overwritten.
func (l *Local) Upload(ctx context.Context, name string, body io.Reader, contentType string, size int64) error {
	clean, err := objectName(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	target := filepath.Join(l.dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", clean, err)
	}

	_, copyErr := io.Copy(f, readerWithContext(ctx, body))
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(target)
		return fmt.Errorf("write %s: %w", clean, errors.Join(copyErr, closeErr))
	}
	return nil
}

// PublicURL implements gallery.Storage.
func (l *Local) PublicURL(name string) string {
	return path.Join(l.urlPath, strings.TrimLeft(name, "/"))
}

func objectName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "\\") {
		return "", ErrInvalidName
	}
	clean := path.Clean("/" + name)[1:]
	if clean == "" || clean != name {
		return "", ErrInvalidName
	}
	return clean, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}
