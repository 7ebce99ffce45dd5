package imageload

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const defaultMaxBytes = 10 << 20

var (
	ErrNoFetcher         = errors.New("no image fetcher configured")
	ErrUnsupportedSource = errors.New("unsupported image source")
)

// Meta is what a successful fetch learned about the image.
type Meta struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Format      string `json:"format"`
	ContentType string `json:"content_type"`
}

// Fetcher retrieves an image and confirms it decodes. It does not retry.
type Fetcher interface {
	Fetch(ctx context.Context, src string) (Meta, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, src string) (Meta, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, src string) (Meta, error) {
	return f(ctx, src)
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPFetcher loads absolute http(s) sources.
type HTTPFetcher struct {
	http     httpDoer
	maxBytes int64
}

// NewHTTPFetcher returns a fetcher with a bounded client. A nil client gets a
// default one with a 10s timeout.
func NewHTTPFetcher(client httpDoer, maxBytes int64) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &HTTPFetcher{http: client, maxBytes: maxBytes}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, src string) (Meta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return Meta{}, fmt.Errorf("build image request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.http.Do(req)
	if err != nil {
		return Meta{}, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return Meta{}, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	return decodeMeta(io.LimitReader(resp.Body, f.maxBytes), resp.Header.Get("Content-Type"))
}

// FileFetcher serves site-relative sources such as /static/designs/x.svg from
// a directory on disk.
type FileFetcher struct {
	root   string
	prefix string
}

// NewFileFetcher maps urlPrefix (for example "/static") onto dir.
func NewFileFetcher(dir, urlPrefix string) *FileFetcher {
	prefix := "/" + strings.Trim(strings.TrimSpace(urlPrefix), "/")
	if prefix == "/" {
		prefix = ""
	}
	return &FileFetcher{root: dir, prefix: prefix}
}

// Fetch implements Fetcher.
func (f *FileFetcher) Fetch(ctx context.Context, src string) (Meta, error) {
	if err := ctx.Err(); err != nil {
		return Meta{}, err
	}
	rel, ok := f.relative(src)
	if !ok {
		return Meta{}, fmt.Errorf("%w: %s", ErrUnsupportedSource, src)
	}

	file, err := os.Open(filepath.Join(f.root, filepath.FromSlash(rel)))
	if err != nil {
		return Meta{}, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	return decodeMeta(io.LimitReader(file, defaultMaxBytes), "")
}

func (f *FileFetcher) relative(src string) (string, bool) {
	src = strings.TrimSpace(src)
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	if !strings.HasPrefix(src, "/") {
		return "", false
	}
	cleaned := path.Clean(src)
	if f.prefix != "" {
		if !strings.HasPrefix(cleaned, f.prefix+"/") {
			return "", false
		}
		cleaned = strings.TrimPrefix(cleaned, f.prefix)
	}
	rel := strings.TrimPrefix(cleaned, "/")
	if rel == "" || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return rel, true
}

// LocalDirs serves site paths from several directories. The first mapping
// whose prefix covers the source wins.
type LocalDirs []*FileFetcher

// Fetch implements Fetcher.
func (d LocalDirs) Fetch(ctx context.Context, src string) (Meta, error) {
	for _, f := range d {
		if _, ok := f.relative(src); ok {
			return f.Fetch(ctx, src)
		}
	}
	return Meta{}, fmt.Errorf("%w: %s", ErrUnsupportedSource, src)
}

// NewSiteFetcher mirrors what the router serves: uploads under uploadURLPath
// from uploadDir, everything else under /static from staticDir, and absolute
// URLs through client.
func NewSiteFetcher(staticDir, uploadDir, uploadURLPath string, client httpDoer, maxBytes int64) MuxFetcher {
	var local LocalDirs
	if uploads := NewFileFetcher(uploadDir, uploadURLPath); uploadDir != "" && uploads.prefix != "" {
		local = append(local, uploads)
	}
	if staticDir != "" {
		local = append(local, NewFileFetcher(staticDir, "/static"))
	}
	return MuxFetcher{Remote: NewHTTPFetcher(client, maxBytes), Local: local}
}

// MuxFetcher routes absolute URLs to Remote and site paths to Local.
type MuxFetcher struct {
	Remote Fetcher
	Local  Fetcher
}

// Fetch implements Fetcher.
func (m MuxFetcher) Fetch(ctx context.Context, src string) (Meta, error) {
	lower := strings.ToLower(strings.TrimSpace(src))
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		if m.Remote == nil {
			return Meta{}, ErrNoFetcher
		}
		return m.Remote.Fetch(ctx, src)
	case strings.HasPrefix(lower, "/") && !strings.HasPrefix(lower, "//"):
		if m.Local == nil {
			return Meta{}, ErrNoFetcher
		}
		return m.Local.Fetch(ctx, src)
	default:
		return Meta{}, fmt.Errorf("%w: %s", ErrUnsupportedSource, src)
	}
}

// decodeMeta reads the image header. SVG has no raster header, so it is
// accepted when the document opens with an <svg> element.
func decodeMeta(r io.Reader, contentType string) (Meta, error) {
	br := bufio.NewReaderSize(r, 4096)
	head, _ := br.Peek(512)
	if isSVG(contentType, head) {
		return Meta{Format: "svg", ContentType: "image/svg+xml"}, nil
	}

	cfg, format, err := image.DecodeConfig(br)
	if err != nil {
		return Meta{}, fmt.Errorf("decode image: %w", err)
	}
	if contentType == "" {
		contentType = http.DetectContentType(head)
	}
	return Meta{Width: cfg.Width, Height: cfg.Height, Format: format, ContentType: contentType}, nil
}

func isSVG(contentType string, head []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "svg") {
		return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
	}
	trimmed := bytes.TrimSpace(head)
	if !bytes.HasPrefix(trimmed, []byte("<")) {
		return false
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}
