package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Property is a listing managed from the admin dashboard
type Property struct {
	ID     string `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID string `gorm:"type:varchar(36);index" json:"user_id,omitempty"`

	// Basic information
	Title    string `gorm:"type:varchar(255);not null" json:"title"`
	Address  string `gorm:"type:varchar(255);not null" json:"address"`
	City     string `gorm:"type:varchar(100);not null;index" json:"city"`
	District string `gorm:"type:varchar(4);index" json:"district"`

	// Filterable attributes
	Price     float64        `gorm:"type:decimal(14,2);not null;index" json:"price"`
	Area      float64        `gorm:"type:decimal(10,2);not null" json:"area"`
	Rooms     int            `gorm:"not null;default:0" json:"rooms"`
	Bathrooms int            `gorm:"not null;default:0" json:"bathrooms"`
	Type      PropertyType   `gorm:"type:varchar(20);not null;index" json:"type"`
	Status    PropertyStatus `gorm:"type:varchar(20);not null;default:'available';index" json:"status"`

	// ImageURL mirrors the primary gallery image, nil when the gallery is empty
	ImageURL *string `gorm:"type:text" json:"image_url"`
	VideoURL *string `gorm:"type:text" json:"video_url"`

	Description       string                      `gorm:"type:text" json:"description"`
	Features          datatypes.JSONSlice[string] `json:"features"`
	IsPropertyOfMonth bool                        `gorm:"not null;default:false;index" json:"is_property_of_month"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// PropertyType is the kind of real estate
type PropertyType string

const (
	PropertyTypeHouse      PropertyType = "house"
	PropertyTypeApartment  PropertyType = "apartment"
	PropertyTypeCommercial PropertyType = "commercial"
	PropertyTypeLand       PropertyType = "land"
)

// PropertyStatus is the sales lifecycle status
type PropertyStatus string

const (
	PropertyStatusAvailable PropertyStatus = "available"
	PropertyStatusReserved  PropertyStatus = "reserved"
	PropertyStatusSold      PropertyStatus = "sold"
)

// TableName specifies the table name
func (Property) TableName() string {
	return "properties"
}

// BeforeCreate assigns an id when the caller did not
func (p *Property) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// IsResidential reports whether rooms and bathrooms are mandatory for this type
func (p *Property) IsResidential() bool {
	return p.Type == PropertyTypeHouse || p.Type == PropertyTypeApartment
}
