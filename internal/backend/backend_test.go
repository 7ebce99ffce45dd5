package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio/internal/config"
	"github.com/folio/internal/db"
	"github.com/folio/internal/gallery"
	"github.com/folio/internal/objectstore"
	"github.com/folio/internal/service"
	"github.com/folio/internal/supabase"
)

func localConfig(t *testing.T) config.AppConfig {
	return config.AppConfig{
		SessionSecret:    "test-secret",
		UploadDir:        t.TempDir(),
		UploadURLPath:    "/static/uploads",
		TableBackend:     config.BackendLocal,
		StorageBackend:   config.BackendLocal,
		AuthBackend:      config.BackendLocal,
		CallTimeout:      time.Second,
		ContactRateLimit: 5,
		Supabase: config.SupabaseConfig{
			Table:      "design_works",
			RolesTable: "user_roles",
			Bucket:     "design-images",
		},
	}
}

func TestBuildLocal(t *testing.T) {
	gdb, err := db.Open(fmt.Sprintf("file:backend-%d?mode=memory&cache=shared", time.Now().UnixNano()))
	require.NoError(t, err)

	b, err := Build(context.Background(), localConfig(t), gdb)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	assert.IsType(t, &service.DesignWorkService{}, b.Table)
	assert.IsType(t, &objectstore.Local{}, b.Storage)
	assert.IsType(t, &service.LocalAuthService{}, b.Auth)
	assert.Equal(t, b.Auth, b.Provisioner)
	assert.Nil(t, b.Mailer, "no SMTP host means no mailer")
	assert.Nil(t, b.ContactLimiter, "no Redis address means no limiter")
	assert.Equal(t, Names{Table: "local", Storage: "local", Auth: "local"}, b.Names)
}

func TestBuildSupabase(t *testing.T) {
	cfg := localConfig(t)
	cfg.TableBackend = config.BackendSupabase
	cfg.StorageBackend = config.BackendSupabase
	cfg.AuthBackend = config.BackendSupabase
	cfg.Supabase.URL = "https://project.supabase.co"
	cfg.Supabase.AnonKey = "anon"
	cfg.SMTP = config.SMTPConfig{Host: "smtp.example.com", From: "site@example.com"}

	b, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.IsType(t, &supabase.Table{}, b.Table)
	assert.IsType(t, &supabase.Storage{}, b.Storage)
	assert.IsType(t, &supabase.Auth{}, b.Auth)
	assert.IsType(t, &supabase.Provisioner{}, b.Provisioner)
	assert.NotNil(t, b.Mailer)
	assert.Equal(t, "https://project.supabase.co/storage/v1/object/public/design-images/x.png", b.Storage.PublicURL("x.png"))
}

func TestBuildSupabaseRequiresProject(t *testing.T) {
	cfg := localConfig(t)
	cfg.AuthBackend = config.BackendSupabase

	_, err := Build(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, ErrSupabaseRequired)
}

func TestBuildPostgresAndS3(t *testing.T) {
	opened := ""
	original := openPostgres
	openPostgres = func(ctx context.Context, dsn string) (*sql.DB, gallery.Table, error) {
		opened = dsn
		return nil, nil, errors.New("connection refused")
	}
	t.Cleanup(func() { openPostgres = original })

	cfg := localConfig(t)
	cfg.TableBackend = config.BackendPostgres
	cfg.Postgres.DSN = "postgres://localhost/folio"

	_, err := Build(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, "postgres://localhost/folio", opened)

	cfg = localConfig(t)
	cfg.StorageBackend = config.BackendS3
	_, err = Build(context.Background(), cfg, nil)
	require.Error(t, err, "s3 needs a bucket")

	cfg.S3 = config.S3Config{Bucket: "folio", Region: "us-east-1", PublicBaseURL: "https://cdn.example"}
	gdb, err := db.Open(fmt.Sprintf("file:backend-s3-%d?mode=memory&cache=shared", time.Now().UnixNano()))
	require.NoError(t, err)
	b, err := Build(context.Background(), cfg, gdb)
	require.NoError(t, err)
	assert.IsType(t, &objectstore.S3{}, b.Storage)
	assert.Equal(t, "https://cdn.example/x.png", b.Storage.PublicURL("x.png"))
}

func TestBuildRejectsUnknownBackend(t *testing.T) {
	cfg := localConfig(t)
	cfg.TableBackend = "mongo"
	_, err := Build(context.Background(), cfg, nil)
	assert.EqualError(t, err, `unknown table backend "mongo"`)
}

func TestUnreachableRedisDisablesLimiter(t *testing.T) {
	cfg := localConfig(t)
	cfg.Redis.Addr = "127.0.0.1:1"

	limiter, closer := contactLimiter(context.Background(), cfg)
	assert.Nil(t, limiter)
	assert.Nil(t, closer)
}
