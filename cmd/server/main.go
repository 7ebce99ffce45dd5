package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/folio/internal/backend"
	"github.com/folio/internal/config"
	"github.com/folio/internal/content"
	"github.com/folio/internal/db"
	"github.com/folio/internal/gallery"
	"github.com/folio/internal/handler"
	"github.com/folio/internal/imageload"
	"github.com/folio/internal/logger"
	"github.com/folio/internal/router"
	"github.com/folio/internal/service"
)

const shutdownTimeout = 10 * time.Second

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Portfolio site with a managed design gallery",
	Long: `folio serves a single-page portfolio with a design gallery, a contact
form and an admin area for managing gallery entries.

Run without arguments to start the HTTP server.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadDotEnv()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), config.Load())
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.AppConfig) error {
	logger.Init(cfg.IsDevelopment())
	log := logger.Component("server")
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	services, err := backend.Build(ctx, cfg, db.DB)
	if err != nil {
		return err
	}
	defer services.Close()

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		result, err := services.Provisioner.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			log.Warn().Err(err).Str("email", cfg.AdminEmail).Msg("admin provisioning failed")
		} else {
			log.Info().Str("email", cfg.AdminEmail).Bool("created", result.Created).Msg(result.Message)
		}
	}

	manager := gallery.NewManager(services.Table, services.Storage, gallery.Options{CallTimeout: cfg.CallTimeout})
	defer manager.Close()
	if _, err := manager.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("initial gallery load failed, serving an empty gallery")
	}

	site, err := content.NewStore(cfg.ContentPath)
	if err != nil {
		return fmt.Errorf("failed to load site content: %w", err)
	}

	api := handler.NewAPI(handler.Deps{
		Gallery: manager,
		Auth:    services.Auth,
		Content: site,
		Contact: service.NewContactService(db.DB, services.Mailer, cfg.SMTP.To, cfg.SessionSecret),
		Fetcher: imageload.NewSiteFetcher(cfg.StaticDir, cfg.UploadDir, cfg.UploadURLPath,
			&http.Client{Timeout: cfg.CallTimeout}, 0),
		SiteURL: cfg.SiteBaseURL,
	})

	engine := router.SetupRouter(api, router.Options{
		SessionSecret:  cfg.SessionSecret,
		TemplateGlob:   cfg.TemplateGlob,
		StaticDir:      cfg.StaticDir,
		UploadDir:      cfg.UploadDir,
		UploadURLPath:  cfg.UploadURLPath,
		SecureCookies:  !cfg.IsDevelopment(),
		ContactLimiter: services.ContactLimiter,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.ListenAddr).Str("env", cfg.Env).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to run server: %w", err)
		}
		return nil
	})
	if cfg.ContentPath != "" {
		g.Go(func() error {
			if err := site.Watch(gctx); err != nil {
				log.Warn().Err(err).Str("path", cfg.ContentPath).Msg("content watcher stopped")
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
