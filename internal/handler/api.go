package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/folio/internal/auth"
	"github.com/folio/internal/content"
	"github.com/folio/internal/gallery"
	"github.com/folio/internal/imageload"
	"github.com/folio/internal/service"
)

const defaultMaxUploadBytes = 10 << 20

// Deps are the services the handlers need. Contact and Content may be nil in
// tests that do not touch those routes.
type Deps struct {
	Gallery  *gallery.Manager
	Auth     auth.Authenticator
	Content  *content.Store
	Contact  *service.ContactService
	Fetcher  imageload.Fetcher
	Loader   imageload.Options
	SiteURL  string
	MaxBytes int64
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	gallery  *gallery.Manager
	auth     auth.Authenticator
	content  *content.Store
	contact  *service.ContactService
	fetcher  imageload.Fetcher
	loader   imageload.Options
	siteURL  string
	maxBytes int64
	now      func() time.Time
}

// NewAPI constructs a handler set with shared services.
func NewAPI(deps Deps) *API {
	maxBytes := deps.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &API{
		gallery:  deps.Gallery,
		auth:     deps.Auth,
		content:  deps.Content,
		contact:  deps.Contact,
		fetcher:  deps.Fetcher,
		loader:   deps.Loader,
		siteURL:  strings.TrimRight(deps.SiteURL, "/"),
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

func (a *API) renderHTML(c *gin.Context, status int, template string, data gin.H) {
	payload := gin.H{}
	for key, value := range data {
		payload[key] = value
	}

	if _, exists := payload["site"]; !exists && a.content != nil {
		payload["site"] = a.content.Site()
	}
	if _, exists := payload["session"]; !exists {
		payload["session"] = a.sessionView(c)
	}
	if _, exists := payload["toasts"]; !exists {
		payload["toasts"] = popToasts(c)
	}
	if _, exists := payload["theme"]; !exists {
		payload["theme"] = themeFrom(c)
	}

	c.HTML(status, template, payload)
}
