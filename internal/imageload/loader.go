// Package imageload runs the lazy image pipeline behind each gallery card.
//
// A Loader waits for one viewport-intersection signal, then fetches its source
// exactly once and settles into either a loaded or a failed state. The
// rendering side only ever asks for View.
package imageload

import (
	"context"
	"sync"
)

const (
	DefaultRootMargin = 100
	DefaultThreshold  = 0.1

	// FallbackMessage is shown in place of an image that could not be loaded.
	FallbackMessage = "Failed to load"
)

// Phase is the single source of truth for a loader's lifecycle.
type Phase int

const (
	PhasePending Phase = iota
	PhaseInView
	PhaseLoaded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseInView:
		return "in-view"
	case PhaseLoaded:
		return "loaded"
	case PhaseFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Terminal reports whether no further transition can happen.
func (p Phase) Terminal() bool {
	return p == PhaseLoaded || p == PhaseFailed
}

// State is the flag view of a Phase. Loaded and HasError are never both set.
type State struct {
	InView   bool `json:"in_view"`
	Loaded   bool `json:"loaded"`
	HasError bool `json:"has_error"`
}

// State derives the flags for p.
func (p Phase) State() State {
	return State{
		InView:   p != PhasePending,
		Loaded:   p == PhaseLoaded,
		HasError: p == PhaseFailed,
	}
}

// Placeholder picks what is drawn before the image is ready.
type Placeholder int

const (
	PlaceholderShimmer Placeholder = iota
	PlaceholderBlank
)

// Options configures a loader. Zero values select the defaults.
type Options struct {
	// RootMargin is how many pixels before entering the viewport loading
	// should begin. It is handed to the page as a trigger hint.
	RootMargin int
	// Threshold is the minimum visible ratio that counts as intersecting.
	Threshold   float64
	Placeholder Placeholder
	// OnLoad runs once after a successful fetch.
	OnLoad func(Meta)
}

func (o Options) withDefaults() Options {
	if o.RootMargin <= 0 {
		o.RootMargin = DefaultRootMargin
	}
	if o.Threshold <= 0 || o.Threshold > 1 {
		o.Threshold = DefaultThreshold
	}
	return o
}

// Intersection is one visibility notification for the observed element.
type Intersection struct {
	IsIntersecting bool
	Ratio          float64
}

// Observer is the visibility source feeding a loader. It is disconnected
// after the first qualifying signal.
type Observer interface {
	Disconnect()
}

// Loader owns the lifecycle of a single image.
type Loader struct {
	src     string
	alt     string
	opts    Options
	fetcher Fetcher

	mu       sync.Mutex
	phase    Phase
	meta     Meta
	observer Observer
	cancel   context.CancelFunc
	started  bool
	closed   bool
	done     chan struct{}
	doneOnce sync.Once
}

// New prepares a loader for src. Nothing is fetched until Intersect fires.
func New(src, alt string, opts Options, fetcher Fetcher) *Loader {
	return &Loader{
		src:     src,
		alt:     alt,
		opts:    opts.withDefaults(),
		fetcher: fetcher,
		done:    make(chan struct{}),
	}
}

// Src returns the source the loader was created for.
func (l *Loader) Src() string {
	return l.src
}

// Options returns the effective options.
func (l *Loader) Options() Options {
	return l.opts
}

// Observe attaches the visibility source. If the loader is already past
// pending the observer is disconnected straight away.
func (l *Loader) Observe(obs Observer) {
	if obs == nil {
		return
	}
	l.mu.Lock()
	if l.phase != PhasePending || l.closed {
		l.mu.Unlock()
		obs.Disconnect()
		return
	}
	previous := l.observer
	l.observer = obs
	l.mu.Unlock()

	if previous != nil && previous != obs {
		previous.Disconnect()
	}
}

// Intersect feeds one visibility signal. The first signal that is
// intersecting at or above the threshold moves the loader in view,
// disconnects the observer and starts the fetch; it returns true only then.
// The fetch is bound to ctx and to Close.
func (l *Loader) Intersect(ctx context.Context, sig Intersection) bool {
	if !sig.IsIntersecting || sig.Ratio < l.opts.Threshold {
		return false
	}

	l.mu.Lock()
	if l.phase != PhasePending || l.closed {
		l.mu.Unlock()
		return false
	}
	l.phase = PhaseInView
	l.started = true
	obs := l.observer
	l.observer = nil
	if ctx == nil {
		ctx = context.Background()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.mu.Unlock()

	if obs != nil {
		obs.Disconnect()
	}

	go l.fetch(fetchCtx)
	return true
}

func (l *Loader) fetch(ctx context.Context) {
	var (
		meta Meta
		err  error
	)
	if l.fetcher == nil {
		err = ErrNoFetcher
	} else {
		meta, err = l.fetcher.Fetch(ctx, l.src)
	}
	l.complete(meta, err)
}

func (l *Loader) complete(meta Meta, err error) {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	if l.closed || l.phase != PhaseInView {
		l.mu.Unlock()
		l.finish()
		return
	}
	if err != nil {
		l.phase = PhaseFailed
	} else {
		l.phase = PhaseLoaded
		l.meta = meta
	}
	phase := l.phase
	onLoad := l.opts.OnLoad
	l.mu.Unlock()

	if phase == PhaseLoaded && onLoad != nil {
		onLoad(meta)
	}
	l.finish()
}

func (l *Loader) finish() {
	l.doneOnce.Do(func() { close(l.done) })
}

// Done is closed once the loader settles, or once it is closed with no
// fetch left running.
func (l *Loader) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until Done or ctx ends and returns the state at that point.
func (l *Loader) Wait(ctx context.Context) State {
	select {
	case <-l.done:
	case <-ctx.Done():
	}
	return l.State()
}

// Phase returns the current phase.
func (l *Loader) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

// State returns the current flags.
func (l *Loader) State() State {
	return l.Phase().State()
}

// Meta returns what the fetch learned about the image. Zero until loaded.
func (l *Loader) Meta() Meta {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.meta
}

// Close is unmount: the in-flight fetch is cancelled and any completion
// arriving afterwards is ignored.
func (l *Loader) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	obs := l.observer
	l.observer = nil
	cancel := l.cancel
	started := l.started
	l.mu.Unlock()

	if obs != nil {
		obs.Disconnect()
	}
	if cancel != nil {
		cancel()
	}
	if !started {
		l.finish()
	}
}
