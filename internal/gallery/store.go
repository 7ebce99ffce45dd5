package gallery

import (
	"context"
	"io"
)

// Table is the remote row store holding gallery entries.
type Table interface {
	// SelectAll returns every entry ordered by creation time, newest first.
	SelectAll(ctx context.Context) ([]Entry, error)
	// Insert creates a row and returns it with the server-assigned id.
	Insert(ctx context.Context, fields Fields) (Entry, error)
	// Update overwrites the writable columns of the row with the given id.
	Update(ctx context.Context, id string, fields Fields) (Entry, error)
	// Delete removes the row with the given id.
	Delete(ctx context.Context, id string) error
}

// Storage is the remote object store for uploaded images.
type Storage interface {
	Upload(ctx context.Context, name string, body io.Reader, contentType string, size int64) error
	PublicURL(name string) string
}
