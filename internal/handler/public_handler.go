package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/folio/internal/gallery"
	"github.com/folio/internal/imageload"
)

const (
	emptyGalleryMessage = "No designs found in this category."
	imageWaitLimit      = 10 * time.Second
)

type galleryCard struct {
	ID       string
	Title    string
	Category string
	Height   gallery.Height
	ImageURL string
	View     imageload.View
}

type galleryViewModel struct {
	Category     string
	Categories   []string
	Cards        []galleryCard
	EmptyMessage string
}

func (a *API) galleryView(category string) galleryViewModel {
	category = strings.TrimSpace(category)
	if category == "" {
		category = gallery.AllCategory
	}
	entries := a.gallery.List(category)

	cards := make([]galleryCard, 0, len(entries))
	for _, entry := range entries {
		pending := imageload.New(a.gallery.ResolveImage(entry), entry.Title, a.loader, nil)
		cards = append(cards, galleryCard{
			ID:       entry.ID,
			Title:    entry.Title,
			Category: entry.Category,
			Height:   entry.Height,
			ImageURL: "/gallery/entries/" + entry.ID + "/image",
			View:     pending.View(),
		})
	}

	view := galleryViewModel{
		Category:   category,
		Categories: a.gallery.Categories(),
		Cards:      cards,
	}
	if len(cards) == 0 {
		view.EmptyMessage = emptyGalleryMessage
	}
	return view
}

// ShowHome renders the full portfolio page.
func (a *API) ShowHome(c *gin.Context) {
	a.renderHTML(c, http.StatusOK, "index.html", gin.H{
		"gallery": a.galleryView(c.Query("category")),
	})
}

// ShowGallery renders the gallery grid fragment for one category.
func (a *API) ShowGallery(c *gin.Context) {
	a.renderHTML(c, http.StatusOK, "gallery_grid.html", gin.H{
		"gallery": a.galleryView(c.Query("category")),
	})
}

// ShowGalleryImage runs one image loader for the card that just scrolled into
// view and renders the image or the fallback glyph. A signal below the
// threshold keeps the placeholder so the client can report again.
func (a *API) ShowGalleryImage(c *gin.Context) {
	entry, ok := a.gallery.Get(c.Param("id"))
	if !ok {
		fallback := imageload.New("", "", a.loader, nil)
		fallback.Intersect(c.Request.Context(), imageload.Intersection{IsIntersecting: true, Ratio: 1})
		<-fallback.Done()
		a.renderHTML(c, http.StatusNotFound, "gallery_image.html", gin.H{"view": fallback.View()})
		return
	}

	signal := imageload.Intersection{IsIntersecting: true, Ratio: 1}
	if raw := strings.TrimSpace(c.Query("ratio")); raw != "" {
		if ratio, err := strconv.ParseFloat(raw, 64); err == nil {
			signal.Ratio = ratio
		}
	}
	if raw := strings.TrimSpace(c.Query("intersecting")); raw != "" {
		signal.IsIntersecting = raw == "true" || raw == "1"
	}

	loader := imageload.New(a.gallery.ResolveImage(entry), entry.Title, a.loader, a.fetcher)
	defer func() {
		loader.Close()
		<-loader.Done()
	}()

	if !loader.Intersect(c.Request.Context(), signal) {
		a.renderHTML(c, http.StatusOK, "gallery_image.html", gin.H{
			"view":  loader.View(),
			"entry": entry,
			"retry": "/gallery/entries/" + entry.ID + "/image",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), imageWaitLimit)
	defer cancel()
	loader.Wait(ctx)

	a.renderHTML(c, http.StatusOK, "gallery_image.html", gin.H{
		"view":  loader.View(),
		"entry": entry,
	})
}

// ToggleTheme stores the light/dark preference in a cookie.
func (a *API) ToggleTheme(c *gin.Context) {
	next := strings.ToLower(strings.TrimSpace(c.PostForm("theme")))
	if next != "light" && next != "dark" {
		next = "dark"
		if themeFrom(c) == "dark" {
			next = "light"
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(themeCookie, next, 365*24*60*60, "/", "", false, false)

	if isHTMX(c) {
		c.Status(http.StatusNoContent)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// Health reports liveness and the number of cached gallery entries.
func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"entries": len(a.gallery.Entries()),
	})
}
