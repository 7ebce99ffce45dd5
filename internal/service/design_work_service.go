package service

import (
	"context"
	"errors"
	"strings"

	"github.com/folio/internal/db"
	"github.com/folio/internal/gallery"
	"gorm.io/gorm"
)

// DesignWorkService is the self-hosted gallery table backed by gorm.
type DesignWorkService struct {
	db *gorm.DB
}

var _ gallery.Table = (*DesignWorkService)(nil)

// NewDesignWorkService creates a DesignWorkService instance.
func NewDesignWorkService(gdb *gorm.DB) *DesignWorkService {
	return &DesignWorkService{db: gdb}
}

// SelectAll returns every design work, newest first.
func (s *DesignWorkService) SelectAll(ctx context.Context) ([]gallery.Entry, error) {
	var rows []db.DesignWork
	if err := s.db.WithContext(ctx).Order("created_at desc").Order("id desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]gallery.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, toEntry(row))
	}
	return entries, nil
}

// Insert creates a design work and returns it with its generated id.
func (s *DesignWorkService) Insert(ctx context.Context, fields gallery.Fields) (gallery.Entry, error) {
	row := db.DesignWork{
		Title:    strings.TrimSpace(fields.Title),
		Category: strings.TrimSpace(fields.Category),
		Image:    strings.TrimSpace(fields.Image),
		Height:   normalizeHeight(fields.Height),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return gallery.Entry{}, err
	}
	return toEntry(row), nil
}

// Update overwrites the writable columns of an existing design work.
func (s *DesignWorkService) Update(ctx context.Context, id string, fields gallery.Fields) (gallery.Entry, error) {
	var row db.DesignWork
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return gallery.Entry{}, gallery.ErrEntryNotFound
		}
		return gallery.Entry{}, err
	}

	row.Title = strings.TrimSpace(fields.Title)
	row.Category = strings.TrimSpace(fields.Category)
	row.Image = strings.TrimSpace(fields.Image)
	row.Height = normalizeHeight(fields.Height)

	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return gallery.Entry{}, err
	}
	return toEntry(row), nil
}

// Delete removes a design work.
func (s *DesignWorkService) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&db.DesignWork{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gallery.ErrEntryNotFound
	}
	return nil
}

func normalizeHeight(h gallery.Height) string {
	value := gallery.Height(strings.ToLower(strings.TrimSpace(string(h))))
	if !value.Valid() {
		return string(gallery.HeightMedium)
	}
	return string(value)
}

func toEntry(row db.DesignWork) gallery.Entry {
	return gallery.Entry{
		ID:        row.ID,
		Title:     row.Title,
		Category:  row.Category,
		Image:     row.Image,
		Height:    gallery.Height(row.Height),
		CreatedAt: row.CreatedAt,
	}
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func normalizePerPage(perPage, fallback int) int {
	if perPage <= 0 {
		return fallback
	}
	return perPage
}

func calculateTotalPages(total int64, perPage int) int {
	if perPage <= 0 {
		return 1
	}
	if total == 0 {
		return 1
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}
