package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PropertyImage represents one photo in a property gallery.
// At most one image per property carries IsPrimary; ties in DisplayOrder
// are broken by CreatedAt.
type PropertyImage struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	PropertyID   string    `gorm:"type:varchar(36);not null;index:idx_property_images_order,priority:1" json:"property_id"`
	ImageURL     string    `gorm:"type:text;not null" json:"image_url"`
	DisplayOrder int       `gorm:"not null;default:0;index:idx_property_images_order,priority:2" json:"display_order"`
	IsPrimary    bool      `gorm:"not null;default:false" json:"is_primary"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for PropertyImage
func (PropertyImage) TableName() string {
	return "property_images"
}

// BeforeCreate assigns an id when the caller did not
func (i *PropertyImage) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
