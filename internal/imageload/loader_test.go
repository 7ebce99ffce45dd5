package imageload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingFetcher struct {
	calls atomic.Int32
	meta  Meta
	err   error
	block bool
}

func (f *countingFetcher) Fetch(ctx context.Context, src string) (Meta, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return Meta{}, ctx.Err()
	}
	return f.meta, f.err
}

type stubObserver struct {
	mu          sync.Mutex
	disconnects int
}

func (o *stubObserver) Disconnect() {
	o.mu.Lock()
	o.disconnects++
	o.mu.Unlock()
}

func (o *stubObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.disconnects
}

func waitDone(t *testing.T, l *Loader) {
	t.Helper()
	select {
	case <-l.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loader did not settle")
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNoFetchBeforeIntersection(t *testing.T) {
	fetcher := &countingFetcher{}
	l := New("https://cdn.example.com/a.png", "a", Options{}, fetcher)
	defer l.Close()

	assert.Equal(t, State{}, l.State())
	assert.Equal(t, ModeShimmer, l.View().Mode)

	assert.False(t, l.Intersect(context.Background(), Intersection{IsIntersecting: false, Ratio: 1}))
	assert.False(t, l.Intersect(context.Background(), Intersection{IsIntersecting: true, Ratio: 0.05}))
	assert.Equal(t, int32(0), fetcher.calls.Load())
	assert.False(t, l.State().InView)
}

func TestIntersectionIsOneShot(t *testing.T) {
	fetcher := &countingFetcher{meta: Meta{Width: 10, Height: 20, Format: "png"}}
	obs := &stubObserver{}
	l := New("https://cdn.example.com/a.png", "a", Options{}, fetcher)
	l.Observe(obs)

	require.True(t, l.Intersect(context.Background(), Intersection{IsIntersecting: true, Ratio: 0.5}))
	waitDone(t, l)

	for i := 0; i < 3; i++ {
		assert.False(t, l.Intersect(context.Background(), Intersection{IsIntersecting: i%2 == 0, Ratio: 1}))
	}
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, 1, obs.count())
	assert.True(t, l.State().InView)
}

func TestSuccessSetsOnlyLoaded(t *testing.T) {
	var loaded []Meta
	fetcher := &countingFetcher{meta: Meta{Width: 640, Height: 480, Format: "jpeg"}}
	l := New("https://cdn.example.com/a.jpg", "poster", Options{OnLoad: func(m Meta) { loaded = append(loaded, m) }}, fetcher)

	l.Intersect(context.Background(), Intersection{IsIntersecting: true, Ratio: 1})
	waitDone(t, l)

	assert.Equal(t, State{InView: true, Loaded: true, HasError: false}, l.State())
	view := l.View()
	assert.Equal(t, ModeImage, view.Mode)
	assert.Equal(t, "https://cdn.example.com/a.jpg", view.Src)
	assert.Equal(t, "poster", view.Alt)
	assert.Equal(t, 640, view.Width)
	require.Len(t, loaded, 1)
	assert.Equal(t, "jpeg", loaded[0].Format)
}

func TestFailureSetsOnlyHasError(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("status 404")}
	l := New("https://cdn.example.com/missing.png", "missing", Options{}, fetcher)

	l.Intersect(context.Background(), Intersection{IsIntersecting: true, Ratio: 1})
	waitDone(t, l)

	assert.Equal(t, State{InView: true, Loaded: false, HasError: true}, l.State())
	view := l.View()
	assert.Equal(t, ModeFallback, view.Mode)
	assert.Equal(t, FallbackMessage, view.Message)
	assert.Empty(t, view.Src)
}

func TestCloseCancelsInFlightFetch(t *testing.T) {
	fetcher := &countingFetcher{block: true}
	l := New("https://cdn.example.com/slow.png", "slow", Options{}, fetcher)

	require.True(t, l.Intersect(context.Background(), Intersection{IsIntersecting: true, Ratio: 1}))
	l.Close()
	waitDone(t, l)

	assert.Equal(t, PhaseInView, l.Phase())
	assert.False(t, l.State().Loaded)
	assert.False(t, l.State().HasError)
}

func TestCloseBeforeIntersection(t *testing.T) {
	obs := &stubObserver{}
	fetcher := &countingFetcher{}
	l := New("/static/designs/a.svg", "a", Options{Placeholder: PlaceholderBlank}, fetcher)
	l.Observe(obs)
	l.Close()

	waitDone(t, l)
	assert.Equal(t, 1, obs.count())
	assert.False(t, l.Intersect(context.Background(), Intersection{IsIntersecting: true, Ratio: 1}))
	assert.Equal(t, int32(0), fetcher.calls.Load())
	assert.Equal(t, ModeBlank, l.View().Mode)
}

func TestRequestContextCancelsFetch(t *testing.T) {
	fetcher := &countingFetcher{block: true}
	l := New("https://cdn.example.com/slow.png", "slow", Options{}, fetcher)
	ctx, cancel := context.WithCancel(context.Background())

	l.Intersect(ctx, Intersection{IsIntersecting: true, Ratio: 1})
	cancel()
	waitDone(t, l)

	assert.True(t, l.State().HasError)
}

func TestHTTPFetcherDecodesHeader(t *testing.T) {
	body := pngBytes(t, 30, 45)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(body)
		case "/logo.svg":
			w.Header().Set("Content-Type", "image/svg+xml")
			_, _ = w.Write([]byte(`<svg xmlns="http://www.w3.org/2000/svg" width="4" height="4"></svg>`))
		case "/text":
			_, _ = w.Write([]byte("hello"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	fetcher := NewHTTPFetcher(client, 0)
	ctx := context.Background()

	meta, err := fetcher.Fetch(ctx, srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, Meta{Width: 30, Height: 45, Format: "png", ContentType: "image/png"}, meta)

	meta, err = fetcher.Fetch(ctx, srv.URL+"/logo.svg")
	require.NoError(t, err)
	assert.Equal(t, "svg", meta.Format)

	_, err = fetcher.Fetch(ctx, srv.URL+"/missing.png")
	assert.Error(t, err)

	_, err = fetcher.Fetch(ctx, srv.URL+"/text")
	assert.Error(t, err)
}

func TestFileFetcherStaysInsideRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "designs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "designs", "a.png"), pngBytes(t, 8, 8), 0o644))

	fetcher := NewFileFetcher(dir, "/static")
	ctx := context.Background()

	meta, err := fetcher.Fetch(ctx, "/static/designs/a.png?v=2")
	require.NoError(t, err)
	assert.Equal(t, 8, meta.Width)

	_, err = fetcher.Fetch(ctx, "/static/../go.mod")
	assert.ErrorIs(t, err, ErrUnsupportedSource)

	_, err = fetcher.Fetch(ctx, "/uploads/a.png")
	assert.ErrorIs(t, err, ErrUnsupportedSource)
}

func TestMuxFetcherRoutesBySourceShape(t *testing.T) {
	var remote, local int
	mux := MuxFetcher{
		Remote: FetcherFunc(func(ctx context.Context, src string) (Meta, error) {
			remote++
			return Meta{Format: "png"}, nil
		}),
		Local: FetcherFunc(func(ctx context.Context, src string) (Meta, error) {
			local++
			return Meta{Format: "svg"}, nil
		}),
	}
	ctx := context.Background()

	_, err := mux.Fetch(ctx, "HTTPS://cdn.example.com/a.png")
	require.NoError(t, err)
	_, err = mux.Fetch(ctx, "/static/designs/a.svg")
	require.NoError(t, err)
	_, err = mux.Fetch(ctx, "//evil.example.com/a.png")
	assert.ErrorIs(t, err, ErrUnsupportedSource)
	_, err = mux.Fetch(ctx, "brand-identity")
	assert.ErrorIs(t, err, ErrUnsupportedSource)

	assert.Equal(t, 1, remote)
	assert.Equal(t, 1, local)
}

func TestBatchKeepsInputOrder(t *testing.T) {
	fetcher := FetcherFunc(func(ctx context.Context, src string) (Meta, error) {
		if src == "bad" {
			return Meta{}, errors.New("broken")
		}
		return Meta{Width: 1, Height: 1, Format: "png"}, nil
	})
	sources := []Source{
		{ID: "1", Src: "good-1"},
		{ID: "2", Src: "bad"},
		{ID: "3", Src: "good-3"},
	}

	reports := Batch(context.Background(), fetcher, sources, 2)
	require.Len(t, reports, 3)
	assert.Equal(t, "1", reports[0].ID)
	assert.True(t, reports[0].State.Loaded)
	assert.True(t, reports[1].State.HasError)
	assert.Equal(t, "good-3", reports[2].Src)
	assert.True(t, reports[2].State.Loaded)
}
