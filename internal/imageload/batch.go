package imageload

import (
	"context"

	"golang.org/x/sync/errgroup"
)

const defaultBatchLimit = 4

// Source is one image to check.
type Source struct {
	ID  string
	Src string
	Alt string
}

// Report is the settled state of one loader in a batch.
type Report struct {
	ID    string `json:"id"`
	Src   string `json:"src"`
	State State  `json:"state"`
	Meta  Meta   `json:"meta"`
}

// Batch loads every source with at most limit fetches in flight and returns
// the reports in input order. Each loader receives a single full
// intersection, exactly as if its card had been scrolled into view.
func Batch(ctx context.Context, fetcher Fetcher, sources []Source, limit int) []Report {
	if limit <= 0 {
		limit = defaultBatchLimit
	}
	reports := make([]Report, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, source := range sources {
		g.Go(func() error {
			loader := New(source.Src, source.Alt, Options{Placeholder: PlaceholderBlank}, fetcher)
			loader.Intersect(gctx, Intersection{IsIntersecting: true, Ratio: 1})
			state := loader.Wait(gctx)
			reports[i] = Report{ID: source.ID, Src: source.Src, State: state, Meta: loader.Meta()}

			loader.Close()
			<-loader.Done()
			return nil
		})
	}
	_ = g.Wait()
	return reports
}
