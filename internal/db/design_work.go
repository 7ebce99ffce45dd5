package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DesignWork is one row of the design gallery.
type DesignWork struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Title     string    `gorm:"size:200;not null"`
	Category  string    `gorm:"size:100;not null;index"`
	Image     string    `gorm:"size:1024;not null"`
	Height    string    `gorm:"size:10;not null;default:medium"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// TableName keeps the hosted schema's relation name.
func (DesignWork) TableName() string {
	return "design_works"
}

// BeforeCreate assigns a uuid when the caller did not.
func (w *DesignWork) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}
