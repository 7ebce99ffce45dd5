package router

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/folio/internal/handler"
	"github.com/folio/internal/middleware"
	"github.com/folio/internal/view"
)

// Options configure the engine around the handler set.
type Options struct {
	SessionSecret string
	// TemplateGlob is skipped when empty, e.g. in tests with a stub renderer.
	TemplateGlob  string
	StaticDir     string
	UploadDir     string
	UploadURLPath string
	SecureCookies bool

	// ContactLimiter throttles the contact form; nil disables the limit.
	ContactLimiter middleware.Limiter
}

// SetupRouter configures the Gin engine and routes.
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(handler.SessionName, store))

	r.SetFuncMap(view.FuncMap())
	if opts.TemplateGlob != "" {
		r.LoadHTMLGlob(opts.TemplateGlob)
	}

	if opts.StaticDir != "" {
		r.Static("/static", opts.StaticDir)
	}
	uploadPath := "/" + strings.Trim(opts.UploadURLPath, "/")
	if opts.UploadDir != "" && uploadPath != "/" && !strings.HasPrefix(uploadPath+"/", "/static/") {
		r.Static(uploadPath, opts.UploadDir)
	}

	r.GET("/healthz", api.Health)

	r.GET("/", api.ShowHome)
	r.GET("/gallery", api.ShowGallery)
	r.GET("/gallery/entries/:id/image", api.ShowGalleryImage)
	r.POST("/theme", api.ToggleTheme)
	r.POST("/contact", middleware.RateLimit(opts.ContactLimiter, middleware.RateLimitConfig{
		Message:   "Too many messages, please try again in a minute.",
		OnLimited: api.ContactRateLimited,
	}), api.SubmitContact)

	authGroup := r.Group("/auth")
	{
		authGroup.GET("/login", api.ShowLoginPage)
		authGroup.POST("/login", api.Login)
		authGroup.POST("/logout", api.Logout)
		authGroup.GET("/reset", api.ShowPasswordResetPage)
		authGroup.POST("/reset", api.RequestPasswordReset)
		authGroup.GET("/recover", api.ShowRecoveryPage)
		authGroup.POST("/recover", api.CompleteRecovery)
	}

	account := r.Group("/admin")
	account.Use(api.RequireSignIn())
	{
		account.GET("/password", api.ShowChangePasswordPage)
		account.POST("/password", api.ChangePassword)
	}

	admin := r.Group("/admin")
	admin.Use(api.RequireAdmin())
	{
		admin.GET("/gallery", api.ShowGalleryManagement)

		apiGroup := admin.Group("/api")
		{
			apiGroup.GET("/gallery", api.ListGalleryEntries)
			apiGroup.POST("/gallery", api.CreateGalleryEntry)
			apiGroup.PUT("/gallery/:id", api.UpdateGalleryEntry)
			apiGroup.DELETE("/gallery/:id", api.DeleteGalleryEntry)
			apiGroup.POST("/gallery/refresh", api.RefreshGallery)
			apiGroup.GET("/gallery/categories", api.ListGalleryCategories)
			apiGroup.GET("/gallery/health", api.GalleryHealth)

			apiGroup.GET("/contact-messages", api.ListContactMessages)
		}
	}

	return r
}
