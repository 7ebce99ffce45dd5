// Package gallery owns the locally cached list of design-portfolio entries and
// mediates every create, update and delete through the remote table and object
// storage. Local state only changes after the remote store confirms a write.
package gallery

import (
	"errors"
	"strings"
	"time"
)

// AllCategory is the synthetic filter value that matches every entry.
const AllCategory = "All"

// DefaultCategories are always offered as filters, even with no matching entry.
var DefaultCategories = []string{"Branding", "Social Media", "Print", "Digital"}

var (
	ErrTitleRequired    = errors.New("title is required")
	ErrCategoryRequired = errors.New("category is required")
	ErrImageRequired    = errors.New("an image file or image URL is required")
	ErrImageAmbiguous   = errors.New("provide either an image file or an image URL, not both")
	ErrHeightInvalid    = errors.New("height must be tall, medium or short")
	ErrFileNotImage     = errors.New("uploaded file is not an image")
	ErrEntryNotFound    = errors.New("gallery entry not found")
)

// Height is a presentation hint for the masonry grid.
type Height string

const (
	HeightTall   Height = "tall"
	HeightMedium Height = "medium"
	HeightShort  Height = "short"
)

// Valid reports whether h is one of the known sizes.
func (h Height) Valid() bool {
	switch h {
	case HeightTall, HeightMedium, HeightShort:
		return true
	}
	return false
}

// ParseHeight normalizes user input. An empty string yields "" without error
// so callers can apply their own default.
func ParseHeight(raw string) (Height, error) {
	value := Height(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", nil
	}
	if !value.Valid() {
		return "", ErrHeightInvalid
	}
	return value, nil
}

// Entry is one gallery item as confirmed by the remote table.
type Entry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Image     string    `json:"image"`
	Height    Height    `json:"height"`
	CreatedAt time.Time `json:"created_at"`
}

// Fields are the writable columns of a row.
type Fields struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Image    string `json:"image"`
	Height   Height `json:"height"`
}

// Fields returns the writable part of the entry.
func (e Entry) Fields() Fields {
	return Fields{Title: e.Title, Category: e.Category, Image: e.Image, Height: e.Height}
}

// File is an image selected for upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Draft describes a new entry. Exactly one of File or ImageURL must be set.
type Draft struct {
	Title    string
	Category string
	ImageURL string
	Height   Height
	File     *File
}

// Patch carries optional changes for an existing entry; nil fields are kept.
// File replaces the image with a fresh upload.
type Patch struct {
	Title    *string
	Category *string
	Image    *string
	Height   *Height
	File     *File
}

func validateFields(f Fields) error {
	if f.Title == "" {
		return ErrTitleRequired
	}
	if f.Category == "" {
		return ErrCategoryRequired
	}
	if f.Image == "" {
		return ErrImageRequired
	}
	if !f.Height.Valid() {
		return ErrHeightInvalid
	}
	return nil
}

// IsValidation reports whether err was raised before any remote call.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrTitleRequired,
		ErrCategoryRequired,
		ErrImageRequired,
		ErrImageAmbiguous,
		ErrHeightInvalid,
		ErrFileNotImage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
