// Package backend picks and builds the remote services the site runs on:
// the gallery table, object storage, sign-in, mail and the contact limiter.
package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/folio/internal/auth"
	"github.com/folio/internal/config"
	"github.com/folio/internal/gallery"
	"github.com/folio/internal/logger"
	"github.com/folio/internal/middleware"
	"github.com/folio/internal/objectstore"
	"github.com/folio/internal/pgstore"
	"github.com/folio/internal/service"
	"github.com/folio/internal/supabase"
)

const contactWindow = time.Minute

var ErrSupabaseRequired = errors.New("supabase backend selected but SUPABASE_URL or SUPABASE_ANON_KEY is missing")

// Backend is the set of services chosen by configuration.
type Backend struct {
	Table       gallery.Table
	Storage     gallery.Storage
	Auth        auth.Authenticator
	Provisioner auth.Provisioner
	// Mailer is nil when SMTP is not configured.
	Mailer service.Mailer
	// ContactLimiter is nil when Redis is not configured or unreachable.
	ContactLimiter middleware.Limiter

	Names Names

	closers []func() error
}

// Names records which implementation was picked for each concern.
type Names struct {
	Table   string
	Storage string
	Auth    string
}

// openPostgres is a seam for tests.
var openPostgres = func(ctx context.Context, dsn string) (*sql.DB, gallery.Table, error) {
	conn, store, err := pgstore.Open(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return conn, store, nil
}

// Build wires every service. gdb is the local sqlite database used by the
// local table and local auth.
func Build(ctx context.Context, cfg config.AppConfig, gdb *gorm.DB) (*Backend, error) {
	log := logger.Component("backend")
	b := &Backend{}

	if mailer := service.NewSMTPMailer(cfg.SMTP); mailer != nil {
		b.Mailer = mailer
	}

	var client *supabase.Client
	supabaseClient := func() (*supabase.Client, error) {
		if client != nil {
			return client, nil
		}
		c, err := supabase.New(supabase.Config{
			URL:            cfg.Supabase.URL,
			AnonKey:        cfg.Supabase.AnonKey,
			ServiceRoleKey: cfg.Supabase.ServiceRoleKey,
			JWTSecret:      cfg.Supabase.JWTSecret,
			Timeout:        cfg.CallTimeout,
		})
		if err != nil {
			if errors.Is(err, supabase.ErrNotConfigured) {
				return nil, ErrSupabaseRequired
			}
			return nil, err
		}
		client = c
		return client, nil
	}
	b.Names.Table = cfg.TableBackend
	switch b.Names.Table {
	case config.BackendLocal:
		b.Table = service.NewDesignWorkService(gdb)
	case config.BackendSupabase:
		c, err := supabaseClient()
		if err != nil {
			return nil, err
		}
		b.Table = c.Table(cfg.Supabase.Table)
	case config.BackendPostgres:
		conn, table, err := openPostgres(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres table: %w", err)
		}
		b.Table = table
		b.closers = append(b.closers, conn.Close)
	default:
		return nil, fmt.Errorf("unknown table backend %q", b.Names.Table)
	}

	b.Names.Storage = cfg.StorageBackend
	switch b.Names.Storage {
	case config.BackendLocal:
		b.Storage = objectstore.NewLocal(cfg.UploadDir, cfg.UploadURLPath)
	case config.BackendSupabase:
		c, err := supabaseClient()
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Storage = c.Storage(cfg.Supabase.Bucket)
	case config.BackendS3:
		s3Store, err := objectstore.NewS3(cfg.S3)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Storage = s3Store
	default:
		b.Close()
		return nil, fmt.Errorf("unknown storage backend %q", b.Names.Storage)
	}

	b.Names.Auth = cfg.AuthBackend
	switch b.Names.Auth {
	case config.BackendLocal:
		local, err := service.NewLocalAuthService(gdb, cfg.SessionSecret, b.Mailer)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Auth = local
		b.Provisioner = local
	case config.BackendSupabase:
		c, err := supabaseClient()
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Auth = c.Auth(cfg.Supabase.RolesTable)
		b.Provisioner = c.Provisioner(cfg.Supabase.RolesTable)
	default:
		b.Close()
		return nil, fmt.Errorf("unknown auth backend %q", b.Names.Auth)
	}

	if limiter, closer := contactLimiter(ctx, cfg); limiter != nil {
		b.ContactLimiter = limiter
		b.closers = append(b.closers, closer)
	}

	log.Info().
		Str("table", b.Names.Table).
		Str("storage", b.Names.Storage).
		Str("auth", b.Names.Auth).
		Bool("mail", b.Mailer != nil).
		Bool("rate_limit", b.ContactLimiter != nil).
		Msg("backend ready")
	return b, nil
}

// Close releases connections opened by Build.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// contactLimiter connects to Redis. An unreachable server is logged and the
// site keeps running without the limit.
func contactLimiter(ctx context.Context, cfg config.AppConfig) (*middleware.RedisLimiter, func() error) {
	if cfg.Redis.Addr == "" || cfg.ContactRateLimit <= 0 {
		return nil, nil
	}
	log := logger.Component("backend")

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect to Redis, continuing without contact rate limit")
		client.Close()
		return nil, nil
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
	return middleware.NewRedisLimiter(client, cfg.ContactRateLimit, contactWindow, "folio:contact:"), client.Close
}
