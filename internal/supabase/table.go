package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/folio/internal/gallery"
)

// DefaultTable is the PostgREST relation holding gallery rows.
const DefaultTable = "design_works"

// Table is a gallery.Table over PostgREST.
type Table struct {
	c    *Client
	name string
}

var _ gallery.Table = (*Table)(nil)

// Table returns the relation called name, or DefaultTable when name is empty.
func (c *Client) Table(name string) *Table {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultTable
	}
	return &Table{c: c, name: name}
}

func (t *Table) path() string {
	return "/rest/v1/" + url.PathEscape(t.name)
}

func representation() map[string]string {
	return map[string]string{"Prefer": "return=representation"}
}

// SelectAll implements gallery.Table.
func (t *Table) SelectAll(ctx context.Context) ([]gallery.Entry, error) {
	query := url.Values{}
	query.Set("select", "*")
	query.Set("order", "created_at.desc")

	var rows []gallery.Entry
	if err := t.c.do(ctx, request{method: http.MethodGet, path: t.path(), query: query}, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Insert implements gallery.Table.
func (t *Table) Insert(ctx context.Context, fields gallery.Fields) (gallery.Entry, error) {
	var rows []gallery.Entry
	err := t.c.do(ctx, request{
		method:  http.MethodPost,
		path:    t.path(),
		json:    fields,
		headers: representation(),
	}, &rows)
	if err != nil {
		return gallery.Entry{}, err
	}
	if len(rows) == 0 {
		return gallery.Entry{}, fmt.Errorf("insert into %s returned no row", t.name)
	}
	return rows[0], nil
}

// Update implements gallery.Table. A filter matching no visible row is
// reported as gallery.ErrEntryNotFound.
func (t *Table) Update(ctx context.Context, id string, fields gallery.Fields) (gallery.Entry, error) {
	var rows []gallery.Entry
	err := t.c.do(ctx, request{
		method:  http.MethodPatch,
		path:    t.path(),
		query:   idFilter(id),
		json:    fields,
		headers: representation(),
	}, &rows)
	if err != nil {
		return gallery.Entry{}, err
	}
	if len(rows) == 0 {
		return gallery.Entry{}, gallery.ErrEntryNotFound
	}
	return rows[0], nil
}

// Delete implements gallery.Table.
func (t *Table) Delete(ctx context.Context, id string) error {
	var rows []gallery.Entry
	err := t.c.do(ctx, request{
		method:  http.MethodDelete,
		path:    t.path(),
		query:   idFilter(id),
		headers: representation(),
	}, &rows)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return gallery.ErrEntryNotFound
	}
	return nil
}

func idFilter(id string) url.Values {
	query := url.Values{}
	query.Set("id", "eq."+id)
	return query
}
