package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/folio/internal/gallery"
	"github.com/folio/internal/imageload"
)

type galleryPayload struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	ImageURL string `json:"image_url"`
	Height   string `json:"height"`
}

type galleryPatchPayload struct {
	Title    *string `json:"title"`
	Category *string `json:"category"`
	ImageURL *string `json:"image_url"`
	Height   *string `json:"height"`
}

func (p galleryPatchPayload) toPatch() gallery.Patch {
	patch := gallery.Patch{Title: p.Title, Category: p.Category, Image: p.ImageURL}
	if p.Height != nil {
		height := gallery.Height(*p.Height)
		patch.Height = &height
	}
	return patch
}

// ShowGalleryManagement renders the admin gallery page.
func (a *API) ShowGalleryManagement(c *gin.Context) {
	a.renderHTML(c, http.StatusOK, "admin_gallery.html", gin.H{
		"title":      "Manage Designs",
		"items":      a.gallery.Entries(),
		"categories": a.gallery.Categories(),
		"heights":    []gallery.Height{gallery.HeightTall, gallery.HeightMedium, gallery.HeightShort},
	})
}

// ListGalleryEntries returns the cached entries, optionally filtered.
func (a *API) ListGalleryEntries(c *gin.Context) {
	category := strings.TrimSpace(c.Query("category"))
	if category == "" {
		category = gallery.AllCategory
	}
	c.JSON(http.StatusOK, gin.H{
		"items":      a.gallery.List(category),
		"categories": a.gallery.Categories(),
	})
}

// ListGalleryCategories returns the derived filter facet.
func (a *API) ListGalleryCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": a.gallery.Categories()})
}

// CreateGalleryEntry accepts JSON or a multipart form with an optional file.
func (a *API) CreateGalleryEntry(c *gin.Context) {
	var draft gallery.Draft
	if isMultipart(c) {
		file, err := a.readUpload(c)
		if err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		draft = gallery.Draft{
			Title:    c.PostForm("title"),
			Category: c.PostForm("category"),
			ImageURL: c.PostForm("image_url"),
			Height:   gallery.Height(c.PostForm("height")),
			File:     file,
		}
	} else {
		var payload galleryPayload
		if !bindJSON(c, &payload, "invalid request body") {
			return
		}
		draft = gallery.Draft{
			Title:    payload.Title,
			Category: payload.Category,
			ImageURL: payload.ImageURL,
			Height:   gallery.Height(payload.Height),
		}
	}

	result, err := a.gallery.Add(c.Request.Context(), draft)
	if err != nil {
		handleGalleryError(c, result, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"item":    result.Entry,
		"items":   result.Entries,
		"message": result.Notice.Message,
	})
}

// UpdateGalleryEntry applies a partial update. Multipart requests may carry a
// replacement file.
func (a *API) UpdateGalleryEntry(c *gin.Context) {
	var patch gallery.Patch
	if isMultipart(c) {
		file, err := a.readUpload(c)
		if err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		patch = gallery.Patch{
			Title:    optionalForm(c, "title"),
			Category: optionalForm(c, "category"),
			Image:    optionalForm(c, "image_url"),
			File:     file,
		}
		if height := optionalForm(c, "height"); height != nil {
			h := gallery.Height(*height)
			patch.Height = &h
		}
	} else {
		var payload galleryPatchPayload
		if !bindJSON(c, &payload, "invalid request body") {
			return
		}
		patch = payload.toPatch()
	}

	result, err := a.gallery.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		handleGalleryError(c, result, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"item":    result.Entry,
		"items":   result.Entries,
		"message": result.Notice.Message,
	})
}

// DeleteGalleryEntry removes an entry.
func (a *API) DeleteGalleryEntry(c *gin.Context) {
	result, err := a.gallery.Remove(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleGalleryError(c, result, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":   result.Entries,
		"message": result.Notice.Message,
	})
}

// RefreshGallery reloads the cache from the remote table.
func (a *API) RefreshGallery(c *gin.Context) {
	result, err := a.gallery.Refresh(c.Request.Context())
	if err != nil {
		handleGalleryError(c, result, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":   result.Entries,
		"message": fmt.Sprintf("Loaded %d designs", len(result.Entries)),
	})
}

// GalleryHealth loads every entry's image and reports which ones fail.
func (a *API) GalleryHealth(c *gin.Context) {
	entries := a.gallery.Entries()
	sources := make([]imageload.Source, 0, len(entries))
	for _, entry := range entries {
		sources = append(sources, imageload.Source{
			ID:  entry.ID,
			Src: a.gallery.ResolveImage(entry),
			Alt: entry.Title,
		})
	}

	reports := imageload.Batch(c.Request.Context(), a.fetcher, sources, parseIntQuery(c, "concurrency", 4))
	failed := 0
	for _, report := range reports {
		if report.State.HasError {
			failed++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"reports": reports,
		"total":   len(reports),
		"failed":  failed,
	})
}

func handleGalleryError(c *gin.Context, result gallery.Result, err error) {
	message := result.Notice.Message
	if message == "" {
		message = errorMessage(err)
	}
	switch {
	case gallery.IsValidation(err):
		respondError(c, http.StatusBadRequest, message)
	case errors.Is(err, gallery.ErrEntryNotFound):
		respondError(c, http.StatusNotFound, message)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(c, http.StatusGatewayTimeout, message)
	case errors.Is(err, context.Canceled):
		respondError(c, http.StatusServiceUnavailable, message)
	default:
		c.Error(err)
		respondError(c, http.StatusBadGateway, message)
	}
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

func optionalForm(c *gin.Context, key string) *string {
	value, ok := c.GetPostForm(key)
	if !ok {
		return nil
	}
	return &value
}

// readUpload returns nil when the form carries no file.
func (a *API) readUpload(c *gin.Context) (*gallery.File, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, a.maxBytes+1<<20)
	header, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("upload exceeds %d MB", a.maxBytes>>20)
		}
		return nil, fmt.Errorf("invalid upload: %w", err)
	}
	if header.Size > a.maxBytes {
		return nil, fmt.Errorf("upload exceeds %d MB", a.maxBytes>>20)
	}
	return readFileHeader(header)
}

func readFileHeader(header *multipart.FileHeader) (*gallery.File, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return &gallery.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
