package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"os"
	"strings"
	"testing"

	"github.com/pressly/goose/v3"

	"github.com/folio/internal/gallery"
)

func TestMigrationsAreEmbedded(t *testing.T) {
	names, err := fs.Glob(Migrations, "migrations/*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 migrations, got %v", names)
	}
	for _, name := range names {
		body, err := fs.ReadFile(Migrations, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(string(body), "-- +goose Up") || !strings.Contains(string(body), "-- +goose Down") {
			t.Fatalf("%s is missing goose annotations", name)
		}
	}
}

func TestRunMigrationsUsesEmbeddedRoot(t *testing.T) {
	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	if err := RunMigrations(context.Background(), nil); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	if gotDir != "." {
		t.Fatalf("expected migrations from embedded root, got %q", gotDir)
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, _, err := Open(context.Background(), " "); !errors.Is(err, ErrDSNRequired) {
		t.Fatalf("expected ErrDSNRequired, got %v", err)
	}
}

func TestInvalidIDIsNotFound(t *testing.T) {
	store := New(nil)
	if _, err := store.Update(context.Background(), "not-a-uuid", gallery.Fields{}); !errors.Is(err, gallery.ErrEntryNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Delete(context.Background(), "42"); !errors.Is(err, gallery.ErrEntryNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// TestStoreAgainstPostgres runs only when POSTGRES_TEST_DSN points at a
// disposable database.
func TestStoreAgainstPostgres(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx := context.Background()
	conn, store, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, `TRUNCATE design_works`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	created, err := store.Insert(ctx, gallery.Fields{Title: "X", Category: "New", Image: "http://x/y.png", Height: gallery.HeightTall})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	updated, err := store.Update(ctx, created.ID, gallery.Fields{Title: "Y", Category: "New", Image: "http://x/y.png", Height: gallery.HeightShort})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Y" || updated.ID != created.ID {
		t.Fatalf("unexpected update: %+v", updated)
	}

	entries, err := store.SelectAll(ctx)
	if err != nil || len(entries) != 1 {
		t.Fatalf("select: %v %+v", err, entries)
	}
	if err := store.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, created.ID); !errors.Is(err, gallery.ErrEntryNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
