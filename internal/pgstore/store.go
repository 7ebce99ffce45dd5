// Package pgstore is the gallery table on a directly reachable Postgres,
// using the same schema as the hosted backend.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/folio/internal/gallery"
)

var ErrDSNRequired = errors.New("postgres dsn is required")

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements gallery.Table.
type Store struct {
	db DBTX
}

var _ gallery.Table = (*Store)(nil)

// gooseUpContext is a seam for tests.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Open connects through the pgx stdlib driver and applies migrations.
func Open(ctx context.Context, dsn string) (*sql.DB, *Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, nil, ErrDSNRequired
	}
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := RunMigrations(ctx, conn); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("migration error: %w", err)
	}
	return conn, New(conn), nil
}

// RunMigrations applies the embedded migrations.
func RunMigrations(ctx context.Context, conn *sql.DB) error {
	migrations, err := fs.Sub(Migrations, "migrations")
	if err != nil {
		return err
	}
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, conn, ".")
}

// New binds a store to an open connection or transaction.
func New(db DBTX) *Store {
	return &Store{db: db}
}

const selectColumns = `id::text, title, category, image, height, created_at`

// SelectAll implements gallery.Table.
func (s *Store) SelectAll(ctx context.Context) ([]gallery.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM design_works ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to select design works: %w", err)
	}
	defer rows.Close()

	var result []gallery.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Insert implements gallery.Table.
func (s *Store) Insert(ctx context.Context, fields gallery.Fields) (gallery.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO design_works (title, category, image, height)
		VALUES ($1, $2, $3, $4)
		RETURNING `+selectColumns,
		fields.Title, fields.Category, fields.Image, heightOrDefault(fields.Height))
	entry, err := scanEntry(row)
	if err != nil {
		return gallery.Entry{}, fmt.Errorf("db error: %w", err)
	}
	return entry, nil
}

// Update implements gallery.Table.
func (s *Store) Update(ctx context.Context, id string, fields gallery.Fields) (gallery.Entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return gallery.Entry{}, gallery.ErrEntryNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE design_works
		SET title = $2, category = $3, image = $4, height = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+selectColumns,
		id, fields.Title, fields.Category, fields.Image, heightOrDefault(fields.Height))
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return gallery.Entry{}, gallery.ErrEntryNotFound
	}
	if err != nil {
		return gallery.Entry{}, fmt.Errorf("db error: %w", err)
	}
	return entry, nil
}

// Delete implements gallery.Table.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return gallery.ErrEntryNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM design_works WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return gallery.ErrEntryNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (gallery.Entry, error) {
	var (
		entry  gallery.Entry
		height string
	)
	if err := row.Scan(&entry.ID, &entry.Title, &entry.Category, &entry.Image, &height, &entry.CreatedAt); err != nil {
		return gallery.Entry{}, err
	}
	entry.Height = gallery.Height(height)
	return entry, nil
}

func heightOrDefault(h gallery.Height) string {
	if !h.Valid() {
		return string(gallery.HeightMedium)
	}
	return string(h)
}
