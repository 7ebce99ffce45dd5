package imageload

// Mode is what the card should draw right now.
type Mode string

const (
	ModeShimmer  Mode = "shimmer"
	ModeBlank    Mode = "blank"
	ModeFallback Mode = "fallback"
	ModeImage    Mode = "image"
)

// View is the render contract handed to templates.
type View struct {
	Mode       Mode
	Src        string
	Alt        string
	Width      int
	Height     int
	Message    string
	RootMargin int
	Threshold  float64
}

// Placeholder reports whether the view is still waiting for the image.
func (v View) Placeholder() bool {
	return v.Mode == ModeShimmer || v.Mode == ModeBlank
}

// View maps the current phase onto the render contract.
func (l *Loader) View() View {
	l.mu.Lock()
	phase := l.phase
	meta := l.meta
	l.mu.Unlock()

	v := View{
		Alt:        l.alt,
		RootMargin: l.opts.RootMargin,
		Threshold:  l.opts.Threshold,
	}
	switch phase {
	case PhaseLoaded:
		v.Mode = ModeImage
		v.Src = l.src
		v.Width = meta.Width
		v.Height = meta.Height
	case PhaseFailed:
		v.Mode = ModeFallback
		v.Message = FallbackMessage
	default:
		v.Mode = ModeShimmer
		if l.opts.Placeholder == PlaceholderBlank {
			v.Mode = ModeBlank
		}
	}
	return v
}
