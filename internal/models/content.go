package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BlogPost is an article shown on the public site
type BlogPost struct {
	ID               string                      `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID           string                      `gorm:"type:varchar(36);index" json:"user_id,omitempty"`
	Title            string                      `gorm:"type:varchar(255);not null" json:"title"`
	Slug             string                      `gorm:"type:varchar(255);not null;uniqueIndex" json:"slug"`
	Excerpt          string                      `gorm:"type:text" json:"excerpt"`
	Content          string                      `gorm:"type:text;not null" json:"content"`
	FeaturedImageURL *string                     `gorm:"type:text" json:"featured_image_url"`
	Author           string                      `gorm:"type:varchar(255)" json:"author"`
	PublishedAt      *time.Time                  `json:"published_at"`
	IsPublished      bool                        `gorm:"not null;default:false;index" json:"is_published"`
	ReadingTime      int                         `gorm:"not null;default:0" json:"reading_time"`
	Tags             datatypes.JSONSlice[string] `json:"tags"`
	CreatedAt        time.Time                   `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time                   `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (BlogPost) TableName() string {
	return "blog_posts"
}

func (b *BlogPost) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// TeamMember is a staff profile
type TeamMember struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID       string    `gorm:"type:varchar(36);index" json:"user_id,omitempty"`
	Name         string    `gorm:"type:varchar(255);not null" json:"name"`
	Position     string    `gorm:"type:varchar(255);not null" json:"position"`
	Description  string    `gorm:"type:text" json:"description"`
	Email        string    `gorm:"type:varchar(255)" json:"email"`
	PhotoURL     *string   `gorm:"type:text" json:"photo_url"`
	DisplayOrder int       `gorm:"not null;default:0;index" json:"display_order"`
	IsActive     bool      `gorm:"not null" json:"is_active"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (TeamMember) TableName() string {
	return "team_members"
}

func (m *TeamMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// Testimonial is a client quote
type Testimonial struct {
	ID              string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID          string    `gorm:"type:varchar(36);index" json:"user_id,omitempty"`
	ClientName      string    `gorm:"type:varchar(255);not null" json:"client_name"`
	ClientPosition  string    `gorm:"type:varchar(255)" json:"client_position"`
	ClientCompany   string    `gorm:"type:varchar(255)" json:"client_company"`
	TestimonialText string    `gorm:"type:text;not null" json:"testimonial_text"`
	Rating          *int      `json:"rating"`
	PhotoURL        *string   `gorm:"type:text" json:"photo_url"`
	DisplayOrder    int       `gorm:"not null;default:0;index" json:"display_order"`
	IsActive        bool      `gorm:"not null" json:"is_active"`
	CreatedAt       time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Testimonial) TableName() string {
	return "testimonials"
}

func (t *Testimonial) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// All returns every model managed by AutoMigrate
func All() []interface{} {
	return []interface{}{
		&Property{},
		&PropertyImage{},
		&PropertyStatusChange{},
		&BlogPost{},
		&TeamMember{},
		&Testimonial{},
		&OrphanBlob{},
	}
}
